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

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
)

// RemoteCall is what crosses the network when a node runs on a peer: the
// arguments and the trace context of the node, never the registry.
type RemoteCall struct {
	// Callee is the name of the callable on the peer.
	Callee         string         `json:"callee"`
	Arguments      call.Arguments `json:"arguments"`
	TraceID        string         `json:"trace_id"`
	FromTraceID    string         `json:"from_trace_id,omitempty"`
	NodeID         string         `json:"node_id"`
	FatherNodeID   string         `json:"father_node_id,omitempty"`
	CallStack      []string       `json:"call_stack"`
	NodeIDStack    []string       `json:"node_id_stack"`
	Caller         string         `json:"caller"`
	CallerCategory call.Category  `json:"caller_category,omitempty"`
	Order          int            `json:"order"`
	FatherAttempt  int            `json:"father_attempt,omitempty"`
	// Attempt is the attempt of the caller's proxy node sending the call.
	Attempt    int      `json:"attempt,omitempty"`
	ParallelID string   `json:"parallel_id,omitempty"`
	PreNodeIDs []string `json:"pre_node_ids,omitempty"`
	Path       string   `json:"path"`
	Group      string   `json:"group,omitempty"`
	// TrustMode is the trust mode of the caller of the node.
	TrustMode bool        `json:"trust_mode,omitempty"`
	Replay    *ReplayPlan `json:"replay,omitempty"`
}

// NewRemoteCall describes the node of c for the peer callable named callee.
func NewRemoteCall(c *Context, callee string) RemoteCall {
	req := c.Request()
	return RemoteCall{
		Callee:         callee,
		Arguments:      req.Arguments,
		TraceID:        req.TraceID,
		FromTraceID:    req.FromTraceID,
		NodeID:         req.NodeID,
		FatherNodeID:   req.FatherNodeID,
		CallStack:      req.CallStack,
		NodeIDStack:    req.NodeIDStack,
		Caller:         req.Caller,
		CallerCategory: req.CallerCategory,
		Order:          req.Order,
		FatherAttempt:  req.FatherAttempt,
		Attempt:        c.attempt,
		ParallelID:     req.ParallelID,
		PreNodeIDs:     req.PreNodeIDs,
		Path:           req.Path,
		Group:          req.Group,
		TrustMode:      c.trusted,
		Replay:         c.ReplayPlan(),
	}
}

// ServeRemote runs a node on behalf of a remote caller. The callable runs
// as the node announced by the caller, so the nodes it creates attach to
// the caller's tree. The node itself is reported and persisted by the
// caller; only its descendants are recorded here.
func (e *Engine) ServeRemote(ctx context.Context, rc RemoteCall) *call.Response {
	if rc.TraceID == "" || rc.NodeID == "" {
		return call.NewFailedResponse(nil, call.NewError(call.ErrorTypeValidation, "remote call without trace context"))
	}
	callable, ok := e.registry.lookup(rc.Callee)
	if !ok {
		return call.NewFailedResponse(nil, call.NewError(call.ErrorTypeValidation, "callee %s is not registered", rc.Callee))
	}
	info := callable.Info()
	ts := newTraceState(rc.TraceID, rc.FromTraceID, nil, rc.Replay)
	req := &call.Request{
		NodeID:         rc.NodeID,
		FatherNodeID:   rc.FatherNodeID,
		TraceID:        rc.TraceID,
		FromTraceID:    rc.FromTraceID,
		CallStack:      append([]string(nil), rc.CallStack...),
		NodeIDStack:    append([]string(nil), rc.NodeIDStack...),
		Caller:         rc.Caller,
		Callee:         info.Name,
		CallerCategory: rc.CallerCategory,
		CalleeCategory: info.Category,
		Arguments:      rc.Arguments,
		SharedData:     ts.shared,
		GlobalData:     e.global,
		Group:          rc.Group,
		Order:          rc.Order,
		FatherAttempt:  rc.FatherAttempt,
		ParallelID:     rc.ParallelID,
		PreNodeIDs:     rc.PreNodeIDs,
		Path:           rc.Path,
	}
	if rc.Group != "" {
		req.GroupData = ts.group(rc.Group)
	}
	log.Debugf("engine: serving remote node %s of trace %s with %s", rc.NodeID, rc.TraceID, info.Name)
	c := &Context{engine: e, trace: ts, req: req, info: info, trusted: rc.TrustMode}
	// Retries belong to the caller. The attempt of the caller numbers the
	// single attempt run here, so the children of a retried call are told
	// apart from those of earlier tries.
	resp := e.run(ctx, c, callable, max(rc.Attempt, 1), 0, e.timeout(info, callOptions{}))
	resp.Request = req
	resp.SetExtra(call.ExtraRemote, true)
	return resp
}
