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

// Package replay re-runs a recorded trace with the output of one of its
// nodes replaced.
package replay

import (
	"context"
	"strings"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
)

// Request asks for a replay of ReferenceTraceID where the node
// RestartNodeID returns RestartNodeOutput.
type Request struct {
	// Query replaces the query of the reference root when set.
	Query any `json:"query,omitempty"`
	// FromTraceID names the reference trace when ReferenceTraceID is empty.
	FromTraceID       string `json:"from_trace_id,omitempty"`
	ReferenceTraceID  string `json:"reference_trace_id"`
	RestartNodeID     string `json:"restart_node_id"`
	RestartNodeOutput any    `json:"restart_node_output"`
}

func (r Request) reference() string {
	if r.ReferenceTraceID != "" {
		return r.ReferenceTraceID
	}
	return r.FromTraceID
}

// Option configures a Replayer.
type Option func(*options)

type options struct {
	reuse bool
}

// WithReuseCompleted controls whether nodes that completed before the
// restart node, outside its ancestry, return their recorded outputs instead
// of running again. It is on by default.
//
// Outputs are read back from the node store. Stores that persist records
// as JSON (redis, postgres) return them decoded into generic values:
// numbers become float64 and structs become map[string]any.
func WithReuseCompleted(reuse bool) Option {
	return func(o *options) {
		o.reuse = reuse
	}
}

// Replayer builds replay plans from the node store of an engine and runs
// them on that engine.
type Replayer struct {
	engine *engine.Engine
	opts   options
}

// New creates a Replayer over e.
func New(e *engine.Engine, opts ...Option) *Replayer {
	o := options{reuse: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Replayer{engine: e, opts: o}
}

// Plan loads the reference trace and returns the payload of the replayed
// top-level call.
func (r *Replayer) Plan(ctx context.Context, req Request) (engine.Payload, error) {
	ref := req.reference()
	if ref == "" {
		return engine.Payload{}, call.NewError(call.ErrorTypeValidation, "replay request names no reference trace")
	}
	if req.RestartNodeID == "" {
		return engine.Payload{}, call.NewError(call.ErrorTypeValidation, "replay request names no restart node")
	}
	recs, err := r.engine.Store().Nodes(ctx, ref)
	if err != nil {
		return engine.Payload{}, call.WrapError(call.ErrorTypeReplay, err)
	}
	if len(recs) == 0 {
		return engine.Payload{}, call.NewError(call.ErrorTypeReplay, "reference trace %s not found", ref)
	}
	idx, err := node.NewIndex(recs)
	if err != nil {
		return engine.Payload{}, err
	}
	target, ok := idx.ByID[req.RestartNodeID]
	if !ok {
		return engine.Payload{}, call.NewError(call.ErrorTypeReplay,
			"node %s is not part of trace %s", req.RestartNodeID, ref)
	}
	if idx.Superseded(target.NodeID) {
		return engine.Payload{}, call.NewError(call.ErrorTypeReplay,
			"node %s belongs to an attempt that was retried in trace %s", req.RestartNodeID, ref)
	}

	plan := &engine.ReplayPlan{
		ReferenceTraceID: ref,
		Overrides: map[string]engine.Override{
			pathOf(idx, target): {NodeID: target.NodeID, Output: req.RestartNodeOutput, Restart: true},
		},
	}
	if r.opts.reuse {
		r.reuse(idx, target, plan)
	}

	args := idx.Root.Input.Clone()
	if req.Query != nil {
		args.Query = req.Query
	}
	return engine.Payload{
		Callee:      idx.Root.Callee,
		Arguments:   args,
		FromTraceID: ref,
		Replay:      plan,
	}, nil
}

// Replay runs the replayed trace and waits for its response. The response
// carries the new trace id in Extra.
func (r *Replayer) Replay(ctx context.Context, req Request) (*call.Response, error) {
	p, err := r.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Infof("replay: rerunning trace %s from node %s", p.FromTraceID, req.RestartNodeID)
	resp := r.engine.Chat(ctx, p)
	if resp.Request != nil {
		resp.SetExtra(call.ExtraTraceID, resp.Request.TraceID)
	}
	return resp, nil
}

// Start runs the replayed trace in the background.
func (r *Replayer) Start(ctx context.Context, req Request) (*engine.Run, error) {
	p, err := r.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.engine.Start(ctx, p)
}

// reuse adds the outputs of the nodes that succeeded before target started.
// Such nodes cannot be ancestors of target. Descendants of a reused node
// are never dispatched and are left out, as are nodes of attempts that were
// retried.
func (r *Replayer) reuse(idx *node.Index, target *node.Record, plan *engine.ReplayPlan) {
	var reused []string
	for _, rec := range idx.Records {
		if rec == target || rec.IsRoot() || !rec.State.Succeeded() || idx.Superseded(rec.NodeID) {
			continue
		}
		if rec.UpdateTime.IsZero() || !rec.UpdateTime.Before(target.CreateTime) {
			continue
		}
		path := pathOf(idx, rec)
		if under(path, reused) {
			continue
		}
		if _, ok := plan.Overrides[path]; ok {
			continue
		}
		plan.Overrides[path] = engine.Override{NodeID: rec.NodeID, Output: rec.Output}
		reused = append(reused, path)
	}
}

// pathOf returns the logical path of rec, rebuilding it from the ancestors
// when the record carries none.
func pathOf(idx *node.Index, rec *node.Record) string {
	if rec.Path != "" {
		return rec.Path
	}
	var segs []string
	for _, a := range idx.Ancestors(rec.NodeID) {
		segs = append(segs, call.PathSegment(a.Callee, a.Order))
	}
	segs = append(segs, call.PathSegment(rec.Callee, rec.Order))
	return strings.Join(segs, "/")
}

func under(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if call.HasPathPrefix(path, p) {
			return true
		}
	}
	return false
}
