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

// Package agent provides local agents and flows: callables that run Go code
// and dispatch further calls through their engine.Context.
package agent

import (
	"context"
	"errors"
	"time"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
)

// Func is the body of an agent.
type Func func(ctx context.Context, c *engine.Context) (any, error)

// PostprocessFunc turns the raw output of an agent into the output handed to
// its caller.
type PostprocessFunc func(ctx context.Context, c *engine.Context, out any) (any, error)

// Agent is a local callable of category agent or flow.
type Agent struct {
	info        engine.Info
	fn          Func
	postprocess PostprocessFunc
}

// Option configures an Agent.
type Option func(*Options)

// Options contains the configuration of an Agent.
type Options struct {
	description string
	resource    string
	trustMode   bool
	timeout     time.Duration
	retries     int
	postprocess PostprocessFunc
}

// WithDescription sets the description.
func WithDescription(description string) Option {
	return func(o *Options) { o.description = description }
}

// WithResource sets the admission resource of the agent.
func WithResource(resource string) Option {
	return func(o *Options) { o.resource = resource }
}

// WithTrustMode hands the raw outputs of callees to the agent, without
// postprocessing.
func WithTrustMode(trust bool) Option {
	return func(o *Options) { o.trustMode = trust }
}

// WithTimeout sets the timeout of one attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.timeout = d }
}

// WithRetries sets the retry budget of the agent.
func WithRetries(n int) Option {
	return func(o *Options) { o.retries = n }
}

// WithPostprocess sets the postprocessing of the agent output.
func WithPostprocess(fn PostprocessFunc) Option {
	return func(o *Options) { o.postprocess = fn }
}

// New creates a local agent.
func New(name string, fn Func, opts ...Option) (*Agent, error) {
	return newAgent(name, call.CategoryAgent, fn, opts...)
}

// NewFlow creates a local flow. A flow only orchestrates other callees.
func NewFlow(name string, fn Func, opts ...Option) (*Agent, error) {
	return newAgent(name, call.CategoryFlow, fn, opts...)
}

func newAgent(name string, category call.Category, fn Func, opts ...Option) (*Agent, error) {
	if name == "" {
		return nil, errors.New("agent: name is empty")
	}
	if fn == nil {
		return nil, errors.New("agent: " + name + ": nil function")
	}
	o := Options{retries: engine.DefaultRetries}
	for _, opt := range opts {
		opt(&o)
	}
	return &Agent{
		info: engine.Info{
			Name:        name,
			Description: o.description,
			Category:    category,
			Resource:    o.resource,
			TrustMode:   o.trustMode,
			Timeout:     o.timeout,
			Retries:     o.retries,
		},
		fn:          fn,
		postprocess: o.postprocess,
	}, nil
}

// Info implements engine.Callable.
func (a *Agent) Info() engine.Info {
	return a.info
}

// Invoke implements engine.Callable.
func (a *Agent) Invoke(ctx context.Context, c *engine.Context) (any, error) {
	return a.fn(ctx, c)
}

// Postprocess implements engine.Postprocessor.
func (a *Agent) Postprocess(ctx context.Context, c *engine.Context, out any) (any, error) {
	if a.postprocess == nil {
		return out, nil
	}
	return a.postprocess(ctx, c, out)
}
