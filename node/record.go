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

// Package node persists terminal call-graph nodes and rebuilds execution
// trees from them.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
)

var (
	// ErrNodeExists is returned when a record with the same node id was
	// already written. Records are never mutated.
	ErrNodeExists = errors.New("node: record already exists")
	// ErrNoRoot is returned when a trace has no root record.
	ErrNoRoot = errors.New("node: trace has no root")
	// ErrMultipleRoots is returned when a trace has more than one root.
	ErrMultipleRoots = errors.New("node: trace has more than one root")
	// ErrDuplicateNode is returned when two records share a node id.
	ErrDuplicateNode = errors.New("node: duplicate node id")
	// ErrOrphanNode is returned when a record cannot be reached from the
	// root, because its father is missing or lies on a cycle.
	ErrOrphanNode = errors.New("node: node is not reachable from the root")
)

// Record is the durable flattened form of a terminal request and its
// response.
type Record struct {
	NodeID         string         `json:"node_id"`
	FatherNodeID   string         `json:"father_node_id,omitempty"`
	TraceID        string         `json:"trace_id"`
	FromTraceID    string         `json:"from_trace_id,omitempty"`
	PreNodeIDs     []string       `json:"pre_node_ids,omitempty"`
	CallStack      []string       `json:"call_stack"`
	NodeIDStack    []string       `json:"node_id_stack"`
	Caller         string         `json:"caller"`
	Callee         string         `json:"callee"`
	CallerCategory call.Category  `json:"caller_category,omitempty"`
	CalleeCategory call.Category  `json:"callee_category"`
	Order          int            `json:"order"`
	FatherAttempt  int            `json:"father_attempt,omitempty"`
	ParallelID     string         `json:"parallel_id,omitempty"`
	Path           string         `json:"path"`
	Group          string         `json:"group,omitempty"`
	Input          call.Arguments `json:"input"`
	Output         any            `json:"output,omitempty"`
	State          call.State     `json:"state"`
	Error          *call.Error    `json:"error,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
	CreateTime     time.Time      `json:"create_time"`
	UpdateTime     time.Time      `json:"update_time"`
}

// FromCall flattens a terminal request and response into a Record.
func FromCall(req *call.Request, resp *call.Response) *Record {
	rec := &Record{
		NodeID:         req.NodeID,
		FatherNodeID:   req.FatherNodeID,
		TraceID:        req.TraceID,
		FromTraceID:    req.FromTraceID,
		PreNodeIDs:     append([]string(nil), req.PreNodeIDs...),
		CallStack:      append([]string(nil), req.CallStack...),
		NodeIDStack:    append([]string(nil), req.NodeIDStack...),
		Caller:         req.Caller,
		Callee:         req.Callee,
		CallerCategory: req.CallerCategory,
		CalleeCategory: req.CalleeCategory,
		Order:          req.Order,
		FatherAttempt:  req.FatherAttempt,
		ParallelID:     req.ParallelID,
		Path:           req.Path,
		Group:          req.Group,
		Input:          req.Arguments.Clone(),
		CreateTime:     req.CreateTime,
		UpdateTime:     time.Now(),
	}
	if resp != nil {
		rec.State = resp.State
		rec.Output = resp.Output
		rec.Error = resp.Error
		if len(resp.Extra) > 0 {
			rec.Extra = make(map[string]any, len(resp.Extra))
			for k, v := range resp.Extra {
				rec.Extra[k] = v
			}
		}
	}
	return rec
}

// Attempts returns the number of attempts recorded for r, or 0 when none
// was. Records read back from JSON carry the count as a float64.
func (r *Record) Attempts() int {
	switch n := r.Extra[call.ExtraAttempts].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		v, _ := n.Int64()
		return int(v)
	}
	return 0
}

// IsRoot reports whether r is the root of its trace.
func (r *Record) IsRoot() bool {
	return r.FatherNodeID == ""
}

// Store appends node records and persisted events, keyed by trace id.
type Store interface {
	// AppendNode writes rec. It returns ErrNodeExists when a record with
	// the same node id already exists in the trace.
	AppendNode(ctx context.Context, rec *Record) error
	// Nodes returns every record of traceID, in no particular order.
	Nodes(ctx context.Context, traceID string) ([]*Record, error)
	// AppendEvent writes a persisted event.
	AppendEvent(ctx context.Context, ev *event.Event) error
	// Events returns the persisted events of traceID in append order.
	Events(ctx context.Context, traceID string) ([]*event.Event, error)
	// Close releases the resources of the store.
	Close() error
}
