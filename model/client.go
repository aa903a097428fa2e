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

package model

import (
	"context"
	"errors"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
)

// Client runs a Model as a callee of category model. Partial responses are
// pushed as stream events of the node, reasoning deltas as think events.
// Its output is the text of the final response.
type Client struct {
	info      engine.Info
	model     Model
	system    string
	config    GenerationConfig
	callbacks *Callbacks
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	name        string
	description string
	resource    string
	system      string
	config      GenerationConfig
	timeout     time.Duration
	retries     int
	callbacks   *Callbacks
}

// WithName sets the callee name. The default is the model name.
func WithName(name string) Option {
	return func(o *clientOptions) {
		o.name = name
	}
}

// WithDescription sets the description.
func WithDescription(description string) Option {
	return func(o *clientOptions) {
		o.description = description
	}
}

// WithResource sets the admission resource. The default is the model name,
// so every client of one model shares its permits.
func WithResource(resource string) Option {
	return func(o *clientOptions) {
		o.resource = resource
	}
}

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(prompt string) Option {
	return func(o *clientOptions) {
		o.system = prompt
	}
}

// WithGenerationConfig sets the generation parameters.
func WithGenerationConfig(config GenerationConfig) Option {
	return func(o *clientOptions) {
		o.config = config
	}
}

// WithTimeout sets the timeout of one attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithRetries sets the retry budget.
func WithRetries(n int) Option {
	return func(o *clientOptions) {
		o.retries = n
	}
}

// WithCallbacks sets the hooks run around each request.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(o *clientOptions) {
		o.callbacks = callbacks
	}
}

// New creates a Client over m.
func New(m Model, opts ...Option) (*Client, error) {
	if m == nil {
		return nil, errors.New("model: nil model")
	}
	o := clientOptions{
		config:  GenerationConfig{Stream: true},
		retries: engine.DefaultRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = m.Info().Name
	}
	if o.name == "" {
		return nil, errors.New("model: client name is empty")
	}
	if o.resource == "" {
		o.resource = m.Info().Name
	}
	return &Client{
		info: engine.Info{
			Name:        o.name,
			Description: o.description,
			Category:    call.CategoryModel,
			Resource:    o.resource,
			Timeout:     o.timeout,
			Retries:     o.retries,
		},
		model:     m,
		system:    o.system,
		config:    o.config,
		callbacks: o.callbacks,
	}, nil
}

// Info implements engine.Callable.
func (c *Client) Info() engine.Info {
	return c.info
}

// Invoke implements engine.Callable.
func (c *Client) Invoke(ctx context.Context, cc *engine.Context) (any, error) {
	req := &Request{GenerationConfig: c.config}
	if c.system != "" {
		req.Messages = append(req.Messages, NewSystemMessage(c.system))
	}
	req.Messages = append(req.Messages, MessagesFromArguments(cc.Request().Arguments)...)
	if len(req.Messages) == 0 {
		return nil, call.NewError(call.ErrorTypeValidation, "model %s: empty conversation", c.info.Name)
	}

	custom, err := c.callbacks.runBefore(ctx, cc, req)
	if err != nil {
		return nil, err
	}
	if custom != nil {
		return responseText(custom), nil
	}

	final, err := c.generate(ctx, cc, req)
	if err != nil {
		return nil, err
	}
	if final, err = c.callbacks.runAfter(ctx, cc, final); err != nil {
		return nil, err
	}
	return responseText(final), nil
}

// generate drains the model stream and returns the final response. When the
// model sends only partial responses, their deltas are joined into one.
func (c *Client) generate(ctx context.Context, cc *engine.Context, req *Request) (*Response, error) {
	responses, err := c.model.GenerateContent(ctx, req)
	if err != nil {
		return nil, call.WrapError(call.ErrorTypeValidation, err)
	}

	var (
		partial strings.Builder
		final   *Response
	)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case rsp, ok := <-responses:
			if !ok {
				if final != nil && len(final.Choices) > 0 {
					return final, nil
				}
				return &Response{
					Done:    true,
					Choices: []Choice{{Message: NewAssistantMessage(partial.String())}},
				}, nil
			}
			if rsp.Error != nil {
				return nil, call.NewError(call.ErrorTypeExecution, "model %s: %s: %s",
					c.info.Name, rsp.Error.Type, rsp.Error.Message)
			}
			if rsp.IsPartial {
				if len(rsp.Choices) == 0 {
					continue
				}
				delta := rsp.Choices[0].Delta
				if delta.ReasoningContent != "" {
					cc.Think(ctx, delta.ReasoningContent, event.WithPersist(false))
				}
				if delta.Content != "" {
					partial.WriteString(delta.Content)
					cc.Stream(ctx, delta.Content)
				}
				continue
			}
			final = rsp
		}
	}
}
