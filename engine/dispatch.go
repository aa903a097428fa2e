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
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
	itelemetry "trpc.group/trpc-go/trpc-callgraph-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
	"trpc.group/trpc-go/trpc-callgraph-go/telemetry/trace"
)

// dispatch runs calls as children of c. A parallel dispatch shares one
// parallel id and runs the children concurrently.
func (c *Context) dispatch(ctx context.Context, calls []Call, parallel bool) []*call.Response {
	e := c.engine
	orders, pre := c.trace.allocate(c.req.NodeID, c.attempt, len(calls))
	var parallelID string
	if parallel {
		parallelID = uuid.NewString()
	}

	resps := make([]*call.Response, len(calls))
	children := make([]*Context, len(calls))
	callables := make([]Callable, len(calls))
	options := make([]callOptions, len(calls))
	for i, cl := range calls {
		callable, ok := e.registry.lookup(cl.Callee)
		if !ok {
			err := call.NewError(call.ErrorTypeValidation, "callee %s is not registered", cl.Callee)
			resps[i] = &call.Response{State: call.StateFailed, Error: err}
			c.Emit(ctx, event.KindError, err.Error(), event.WithState(string(call.StateFailed)))
			continue
		}
		for _, opt := range cl.Options {
			opt(&options[i])
		}
		info := callable.Info()
		req := c.req.Child(uuid.NewString(), info.Name, info.Category, cl.Arguments, orders[i])
		req.ParallelID = parallelID
		req.PreNodeIDs = pre
		req.FatherAttempt = c.attempt
		if options[i].group != "" {
			req.Group = options[i].group
			req.GroupData = c.trace.group(options[i].group)
		}
		children[i] = &Context{engine: e, trace: c.trace, req: req, info: info, trusted: c.info.TrustMode}
		callables[i] = callable
	}

	if parallel {
		var g errgroup.Group
		for i := range calls {
			if children[i] == nil {
				continue
			}
			g.Go(func() error {
				resps[i] = e.execute(ctx, children[i], callables[i], options[i])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range calls {
			if children[i] != nil {
				resps[i] = e.execute(ctx, children[i], callables[i], options[i])
			}
		}
	}

	var done []string
	for _, child := range children {
		if child != nil {
			done = append(done, child.req.NodeID)
		}
	}
	c.trace.advance(c.req.NodeID, c.attempt, done)
	return resps
}

// execute runs one node to its terminal state: announce, substitute or
// invoke, report, persist.
func (e *Engine) execute(ctx context.Context, c *Context, callable Callable, opts callOptions) *call.Response {
	req := c.req
	ctx, span := trace.Tracer.Start(ctx, itelemetry.NewCallSpanName(req.CalleeCategory, req.Callee))
	defer span.End()
	itelemetry.TraceRequest(span, req)
	end := e.metrics.begin(ctx, req)

	c.Emit(ctx, event.KindToolCall, req.Arguments)

	var resp *call.Response
	if ov, ok := c.trace.plan.lookup(req.Path); ok {
		log.Debugf("engine: node %s at %s replays %s", req.NodeID, req.Path, ov.NodeID)
		resp = &call.Response{State: call.StateSkipped, Output: ov.Output}
		resp.SetExtra(call.ExtraReplayedFrom, ov.NodeID)
	} else {
		resp = e.run(ctx, c, callable, 1, e.retries(c.info, opts), e.timeout(c.info, opts))
	}
	resp.Request = req

	if resp.OK() {
		c.Emit(ctx, event.KindObservation, resp.Output, event.WithState(string(resp.State)))
	} else {
		c.Emit(ctx, event.KindError, resp.Error.Message, event.WithState(string(resp.State)))
	}
	e.persist(ctx, req, resp)

	itelemetry.TraceResponse(span, resp)
	end(resp)
	return resp
}

func (e *Engine) retries(info Info, opts callOptions) int {
	switch {
	case opts.retries != nil:
		return *opts.retries
	case info.Retries >= 0:
		return info.Retries
	}
	return e.opts.retries
}

func (e *Engine) timeout(info Info, opts callOptions) time.Duration {
	switch {
	case opts.timeout > 0:
		return opts.timeout
	case info.Timeout > 0:
		return info.Timeout
	}
	return e.opts.timeout
}

// run invokes the callable up to 1+retries times on retryable failures,
// keeping one logical node. Attempts are numbered from first.
func (e *Engine) run(ctx context.Context, c *Context, callable Callable, first, retries int,
	timeout time.Duration) *call.Response {
	for attempt := first; ; attempt++ {
		ac := *c
		ac.attempt = attempt
		out, err := e.invoke(ctx, &ac, callable, timeout)
		if err == nil {
			out, err = postprocess(ctx, &ac, callable, out)
		}
		var resp *call.Response
		if err == nil {
			resp = call.NewResponse(c.req, out)
		} else {
			resp = call.NewFailedResponse(c.req, err)
		}
		resp.SetExtra(call.ExtraAttempts, attempt)
		if resp.OK() || attempt-first >= retries || !resp.Error.Retryable() || ctx.Err() != nil {
			return resp
		}
		log.Warnf("engine: %s (node %s) attempt %d failed, retrying: %v",
			c.req.Callee, c.req.NodeID, attempt, resp.Error)
		select {
		case <-time.After(e.opts.retryBackoff * time.Duration(attempt-first+1)):
		case <-ctx.Done():
			resp = call.NewFailedResponse(c.req, ctx.Err())
			resp.SetExtra(call.ExtraAttempts, attempt)
			return resp
		}
	}
}

type result struct {
	out any
	err error
}

// invoke runs one attempt. The callable runs in its own goroutine holding
// an admission permit until it returns, even when the attempt is abandoned
// on timeout.
func (e *Engine) invoke(ctx context.Context, c *Context, callable Callable, timeout time.Duration) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release, err := e.limiter.Acquire(ctx, c.info.ResourceName())
	if err != nil {
		return nil, err
	}

	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("engine: %s (node %s) panicked: %v\n%s", c.req.Callee, c.req.NodeID, r, debug.Stack())
				done <- result{err: call.NewError(call.ErrorTypeExecution, "callee %s panicked: %v", c.req.Callee, r)}
			}
		}()
		out, err := callable.Invoke(callCtx, c)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-callCtx.Done():
		select {
		case r := <-done:
			return r.out, r.err
		default:
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, call.NewError(call.ErrorTypeTimeout, "callee %s timed out after %s", c.req.Callee, timeout)
	}
}

// postprocess turns a raw output into the output handed to the caller. A
// caller in trust mode gets the raw output.
func postprocess(ctx context.Context, c *Context, callable Callable, out any) (any, error) {
	if c.trusted {
		return out, nil
	}
	if err, ok := out.(error); ok && err != nil {
		return nil, call.WrapError(call.ErrorTypeExecution, fmt.Errorf("callee %s returned an error value: %w", c.req.Callee, err))
	}
	if p, ok := callable.(Postprocessor); ok {
		return p.Postprocess(ctx, c, out)
	}
	return out, nil
}
