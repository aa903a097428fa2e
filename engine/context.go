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

package engine

import (
	"context"
	"time"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
)

// Context is handed to a running callable. It is bound to the node of the
// call.
type Context struct {
	engine *Engine
	trace  *traceState
	req    *call.Request
	info   Info

	// trusted is set when the caller of the node runs in trust mode.
	trusted bool
	// attempt is the attempt of the node this context belongs to. Each
	// attempt gets its own copy of the context.
	attempt int
}

// Request returns the request of the node.
func (c *Context) Request() *call.Request {
	return c.req
}

// Info returns the description of the running callable.
func (c *Context) Info() Info {
	return c.info
}

// Engine returns the engine running the node.
func (c *Context) Engine() *Engine {
	return c.engine
}

// ReplayPlan returns the plan of a replayed trace, or nil.
func (c *Context) ReplayPlan() *ReplayPlan {
	return c.trace.plan
}

// Shared returns the data shared by every node of the trace.
func (c *Context) Shared() *call.Data {
	return c.req.SharedData
}

// Group returns the data of the group namespace of the node, or nil when
// the node belongs to no group.
func (c *Context) Group() *call.Data {
	return c.req.GroupData
}

// Global returns the data of the engine.
func (c *Context) Global() *call.Data {
	return c.req.GlobalData
}

// Call dispatches one callee and waits for its response.
func (c *Context) Call(ctx context.Context, callee string, args call.Arguments, opts ...CallOption) *call.Response {
	return c.dispatch(ctx, []Call{{Callee: callee, Arguments: args, Options: opts}}, false)[0]
}

// FanOut dispatches calls concurrently as one parallel group and waits for
// all of them. Responses are in the order of calls, which is also their
// sibling order.
func (c *Context) FanOut(ctx context.Context, calls []Call) []*call.Response {
	if len(calls) == 0 {
		return nil
	}
	return c.dispatch(ctx, calls, true)
}

// Emit pushes an event on behalf of the node.
func (c *Context) Emit(ctx context.Context, kind event.Kind, content any, opts ...event.Option) {
	base := []event.Option{
		event.WithNodeID(c.req.NodeID),
		event.WithCallStack(c.req.CallStack),
		event.WithParties(c.req.Caller, c.req.Callee),
	}
	c.engine.publish(ctx, event.New(c.req.TraceID, kind, content, append(base, opts...)...))
}

// Think emits intermediate reasoning.
func (c *Context) Think(ctx context.Context, text string, opts ...event.Option) {
	c.Emit(ctx, event.KindThink, text, opts...)
}

// Answer emits a final textual result.
func (c *Context) Answer(ctx context.Context, text string, opts ...event.Option) {
	c.Emit(ctx, event.KindAnswer, text, opts...)
}

// Stream emits an incremental output fragment.
func (c *Context) Stream(ctx context.Context, delta string, opts ...event.Option) {
	c.Emit(ctx, event.KindStream, delta, opts...)
}

// Call is one entry of a fan-out.
type Call struct {
	Callee    string
	Arguments call.Arguments
	Options   []CallOption
}

type callOptions struct {
	group   string
	timeout time.Duration
	retries *int
}

// CallOption configures one dispatched call.
type CallOption func(*callOptions)

// WithGroup runs the callee and its descendants in the group data
// namespace name.
func WithGroup(name string) CallOption {
	return func(o *callOptions) {
		o.group = name
	}
}

// WithCallTimeout overrides the timeout of the callee.
func WithCallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// WithCallRetries overrides the retry budget of the callee.
func WithCallRetries(n int) CallOption {
	return func(o *callOptions) {
		o.retries = &n
	}
}
