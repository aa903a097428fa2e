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

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
)

// Payload is a top-level call.
type Payload struct {
	// Callee is the root callee. Empty means the entry of the engine.
	Callee    string         `json:"callee,omitempty"`
	Arguments call.Arguments `json:"arguments"`
	// TraceID is used as the trace id when set, so observers can subscribe
	// before the call starts.
	TraceID string `json:"trace_id,omitempty"`
	// FromTraceID records the trace a replay originates from.
	FromTraceID string         `json:"from_trace_id,omitempty"`
	SharedData  map[string]any `json:"shared_data,omitempty"`
	Replay      *ReplayPlan    `json:"replay,omitempty"`
}

// Run is a top-level call running in the background.
type Run struct {
	TraceID string

	done   chan struct{}
	resp   *call.Response
	cancel context.CancelFunc
}

// Done is closed once the run has a response.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run ends or ctx ends.
func (r *Run) Wait(ctx context.Context) (*call.Response, error) {
	select {
	case <-r.done:
		return r.resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel cancels the run.
func (r *Run) Cancel() {
	r.cancel()
}

// Chat runs a top-level call and returns its response. Failures are
// reported in the response, never as a panic.
func (e *Engine) Chat(ctx context.Context, p Payload) *call.Response {
	traceID := e.traceID(p)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.hub.Attach(traceID, cancel)
	return e.runTrace(ctx, traceID, p)
}

// Start runs a top-level call in the background and returns as soon as the
// trace id is known. The run is not bound to ctx; it ends on its own, on
// Cancel, or when the last observer of the trace leaves.
func (e *Engine) Start(ctx context.Context, p Payload) (*Run, error) {
	if _, err := e.root(p); err != nil {
		return nil, err
	}
	traceID := e.traceID(p)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Run{TraceID: traceID, done: make(chan struct{}), cancel: cancel}
	e.hub.Attach(traceID, cancel)
	go func() {
		defer cancel()
		r.resp = e.runTrace(runCtx, traceID, p)
		close(r.done)
	}()
	return r, nil
}

// Batch runs independent top-level calls with bounded parallelism and
// returns their responses in order once all are done. With returnTraceID,
// each response carries its trace id in Extra.
func (e *Engine) Batch(ctx context.Context, payloads []Payload, returnTraceID bool) []*call.Response {
	resps := make([]*call.Response, len(payloads))
	err := e.pool.Run(ctx, len(payloads), func(ctx context.Context, i int) {
		p := payloads[i]
		p.TraceID = e.traceID(p)
		resp := e.Chat(ctx, p)
		if returnTraceID {
			resp.SetExtra(call.ExtraTraceID, p.TraceID)
		}
		resps[i] = resp
	})
	if err != nil {
		log.Errorf("engine: batch of %d payloads: %v", len(payloads), err)
		for i := range resps {
			if resps[i] == nil {
				resps[i] = call.NewFailedResponse(nil, err)
			}
		}
	}
	return resps
}

func (e *Engine) traceID(p Payload) string {
	if p.TraceID != "" {
		return p.TraceID
	}
	return uuid.NewString()
}

func (e *Engine) root(p Payload) (Callable, error) {
	name := p.Callee
	if name == "" {
		name = e.opts.entry
	}
	if name == "" {
		return nil, call.NewError(call.ErrorTypeValidation, "payload names no callee and the engine has no entry")
	}
	callable, ok := e.registry.lookup(name)
	if !ok {
		return nil, call.NewError(call.ErrorTypeValidation, "callee %s is not registered", name)
	}
	return callable, nil
}

// runTrace runs the root node of a trace and closes its channel.
func (e *Engine) runTrace(ctx context.Context, traceID string, p Payload) *call.Response {
	callable, err := e.root(p)
	if err != nil {
		resp := call.NewFailedResponse(nil, err)
		e.publish(ctx, event.New(traceID, event.KindError, resp.Error.Message,
			event.WithState(string(resp.State)), event.WithFinal()))
		return resp
	}

	ts := newTraceState(traceID, p.FromTraceID, p.SharedData, p.Replay)
	info := callable.Info()
	nodeID := uuid.NewString()
	req := &call.Request{
		NodeID:         nodeID,
		TraceID:        traceID,
		FromTraceID:    p.FromTraceID,
		CallStack:      []string{info.Name},
		NodeIDStack:    []string{nodeID},
		Caller:         call.UserCaller,
		Callee:         info.Name,
		CallerCategory: call.CategoryUser,
		CalleeCategory: info.Category,
		Arguments:      p.Arguments,
		SharedData:     ts.shared,
		GlobalData:     e.global,
		Path:           call.PathSegment(info.Name, 0),
		CreateTime:     time.Now(),
	}
	c := &Context{engine: e, trace: ts, req: req, info: info}
	resp := e.execute(ctx, c, callable, callOptions{})

	opts := []event.Option{
		event.WithNodeID(nodeID),
		event.WithCallStack(req.CallStack),
		event.WithParties(req.Caller, req.Callee),
		event.WithState(string(resp.State)),
	}
	if resp.OK() {
		e.publish(ctx, event.New(traceID, event.KindDone, resp.Output, append(opts, event.WithFinal())...))
	} else {
		e.publish(ctx, event.New(traceID, event.KindError, resp.Error.Message, append(opts, event.WithFinal())...))
	}
	return resp
}
