//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package tool provides local tools: leaf callables wrapping Go functions.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
)

// Func is the body of a tool.
type Func func(ctx context.Context, args call.Arguments) (any, error)

// Declaration describes the metadata of a tool, such as its name, description, and expected arguments.
type Declaration struct {
	// Name is the unique identifier of the tool
	Name string `json:"name"`

	// Description explains the tool's purpose and functionality
	Description string `json:"description"`

	// InputSchema defines the expected query of the tool in JSON schema format.
	InputSchema *Schema `json:"inputSchema,omitempty"`

	// OutputSchema defines the expected output for the tool in JSON schema format.
	OutputSchema *Schema `json:"outputSchema,omitempty"`
}

// Tool is a local callable of category tool.
type Tool struct {
	info         engine.Info
	fn           Func
	inputSchema  *Schema
	outputSchema *Schema
}

// Option is a function that configures a Tool.
type Option func(*toolOptions)

type toolOptions struct {
	description string
	resource    string
	timeout     time.Duration
	retries     int
}

// WithDescription sets the description of the tool.
func WithDescription(description string) Option {
	return func(opts *toolOptions) {
		opts.description = description
	}
}

// WithResource sets the admission resource of the tool.
func WithResource(resource string) Option {
	return func(opts *toolOptions) {
		opts.resource = resource
	}
}

// WithTimeout sets the timeout of one attempt.
func WithTimeout(d time.Duration) Option {
	return func(opts *toolOptions) {
		opts.timeout = d
	}
}

// WithRetries sets the retry budget of the tool.
func WithRetries(n int) Option {
	return func(opts *toolOptions) {
		opts.retries = n
	}
}

// New creates a tool over fn.
func New(name string, fn Func, opts ...Option) (*Tool, error) {
	if name == "" {
		return nil, errors.New("tool: name is empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool: %s: nil function", name)
	}
	o := toolOptions{retries: engine.DefaultRetries}
	for _, opt := range opts {
		opt(&o)
	}
	return &Tool{
		info: engine.Info{
			Name:        name,
			Description: o.description,
			Category:    call.CategoryTool,
			Resource:    o.resource,
			Timeout:     o.timeout,
			Retries:     o.retries,
		},
		fn: fn,
	}, nil
}

// NewFunction creates a tool over a typed function. The query of the
// arguments is decoded into I: a string query is parsed as JSON, any other
// value is converted through its JSON encoding.
func NewFunction[I, O any](name string, fn func(context.Context, I) (O, error), opts ...Option) (*Tool, error) {
	if fn == nil {
		return nil, fmt.Errorf("tool: %s: nil function", name)
	}
	t, err := New(name, func(ctx context.Context, args call.Arguments) (any, error) {
		var input I
		if err := decodeQuery(args.Query, &input); err != nil {
			return nil, call.WrapError(call.ErrorTypeValidation, fmt.Errorf("tool %s: decode arguments: %w", name, err))
		}
		return fn(ctx, input)
	}, opts...)
	if err != nil {
		return nil, err
	}
	var (
		emptyI I
		emptyO O
	)
	t.inputSchema = GenerateJSONSchema(reflect.TypeOf(emptyI))
	t.outputSchema = GenerateJSONSchema(reflect.TypeOf(emptyO))
	return t, nil
}

func decodeQuery(query any, v any) error {
	var raw []byte
	switch q := query.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(q)
	case []byte:
		raw = q
	case json.RawMessage:
		raw = q
	default:
		b, err := json.Marshal(q)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, v)
}

// Info implements engine.Callable.
func (t *Tool) Info() engine.Info {
	return t.info
}

// Invoke implements engine.Callable.
func (t *Tool) Invoke(ctx context.Context, c *engine.Context) (any, error) {
	return t.fn(ctx, c.Request().Arguments)
}

// Declaration returns the tool's declaration information.
func (t *Tool) Declaration() *Declaration {
	return &Declaration{
		Name:         t.info.Name,
		Description:  t.info.Description,
		InputSchema:  t.inputSchema,
		OutputSchema: t.outputSchema,
	}
}
