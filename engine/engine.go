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

// Package engine executes call graphs: it dispatches named calls, allocates
// node identity, emits trace events and persists every terminal node.
package engine

import (
	"context"
	"sync/atomic"

	"trpc.group/trpc-go/trpc-callgraph-go/admission"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
	"trpc.group/trpc-go/trpc-callgraph-go/node/inmemory"
	"trpc.group/trpc-go/trpc-callgraph-go/stream"
)

// Engine runs call graphs over a registry of callables. Its global data
// lives as long as the engine.
type Engine struct {
	opts     Options
	registry *registry
	store    node.Store
	hub      *stream.Hub
	limiter  *admission.Limiter
	pool     *admission.Pool
	global   *call.Data
	metrics  *instruments
	closed   atomic.Bool
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	o := Options{
		retries:      defaultRetries,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{
		opts:     o,
		registry: newRegistry(),
		store:    o.store,
		hub:      o.hub,
		limiter:  o.limiter,
		pool:     admission.NewPool(o.batchConcurrency),
		global:   call.NewData(o.globalData),
		metrics:  newInstruments(),
	}
	if e.store == nil {
		e.store = inmemory.NewStore()
	}
	if e.hub == nil {
		e.hub = stream.NewHub(nil)
	}
	if e.limiter == nil {
		e.limiter = admission.NewLimiter(nil)
	}
	return e
}

// Register adds callables to the registry. Empty and duplicate names are
// validation errors.
func (e *Engine) Register(callables ...Callable) error {
	for _, c := range callables {
		if err := e.registry.register(c); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the callable registered under name.
func (e *Engine) Lookup(name string) (Callable, bool) {
	return e.registry.lookup(name)
}

// Names returns the registered callable names.
func (e *Engine) Names() []string {
	return e.registry.names()
}

// Store returns the node store.
func (e *Engine) Store() node.Store {
	return e.store
}

// Hub returns the stream hub.
func (e *Engine) Hub() *stream.Hub {
	return e.hub
}

// Limiter returns the admission limiter.
func (e *Engine) Limiter() *admission.Limiter {
	return e.limiter
}

// Global returns the global data of the engine.
func (e *Engine) Global() *call.Data {
	return e.global
}

// Tree rebuilds the execution tree of traceID from the store.
func (e *Engine) Tree(ctx context.Context, traceID string) (*node.Tree, error) {
	recs, err := e.store.Nodes(ctx, traceID)
	if err != nil {
		return nil, err
	}
	return node.BuildTree(recs)
}

// Close tears the engine down: global data is dropped and the store is
// closed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.global.Clear()
	return e.store.Close()
}

// publish writes ev to the store when it asks to persist and to the hub.
// Infrastructure failures are logged, never returned to callees.
func (e *Engine) publish(ctx context.Context, ev *event.Event) {
	ctx = context.WithoutCancel(ctx)
	if ev.Persist {
		if err := e.store.AppendEvent(ctx, ev); err != nil {
			log.Errorf("engine: persist %s event of trace %s: %v", ev.Kind, ev.TraceID, err)
		}
	}
	if err := e.hub.Publish(ctx, ev); err != nil {
		log.Debugf("engine: publish %s event of trace %s: %v", ev.Kind, ev.TraceID, err)
	}
}

// persist flattens a terminal node into the store.
func (e *Engine) persist(ctx context.Context, req *call.Request, resp *call.Response) {
	if err := e.store.AppendNode(context.WithoutCancel(ctx), node.FromCall(req, resp)); err != nil {
		log.Errorf("engine: persist node %s of trace %s: %v", req.NodeID, req.TraceID, err)
	}
}
