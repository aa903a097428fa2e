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

package call

import (
	"strconv"
	"strings"
	"time"
)

// Request is one invocation instance, i.e. one node of the call graph.
type Request struct {
	// NodeID is unique for the lifetime of the engine process.
	NodeID string `json:"nodeId"`
	// FatherNodeID is empty only for a trace root.
	FatherNodeID string `json:"fatherNodeId,omitempty"`
	// TraceID groups every node produced by one top-level call.
	TraceID string `json:"traceId"`
	// FromTraceID is set when the trace was started by a replay.
	FromTraceID string `json:"fromTraceId,omitempty"`
	// CallStack lists callee names from the trace root to this node.
	CallStack []string `json:"callStack"`
	// NodeIDStack lists the node ids matching CallStack.
	NodeIDStack []string `json:"nodeIdStack"`

	Caller         string   `json:"caller"`
	Callee         string   `json:"callee"`
	CallerCategory Category `json:"callerCategory"`
	CalleeCategory Category `json:"calleeCategory"`

	Arguments Arguments `json:"arguments"`

	// SharedData is visible to every node of the trace.
	SharedData *Data `json:"-"`
	// GroupData is scoped to the namespace named by Group.
	GroupData *Data `json:"-"`
	// GlobalData belongs to the engine instance and outlives the trace.
	GlobalData *Data `json:"-"`
	// Group is the group_data namespace this node resolves to.
	Group string `json:"group,omitempty"`

	// Order is the sequence number among the siblings of one father.
	Order int `json:"order"`
	// ParallelID is set when the node was dispatched in a fan-out group.
	ParallelID string `json:"parallelId,omitempty"`
	// PreNodeIDs lists the nodes that completed right before this one
	// under the same father.
	PreNodeIDs []string `json:"preNodeIds,omitempty"`
	// FatherAttempt is the attempt of the father during which the node was
	// dispatched. Children of an attempt that was retried are superseded by
	// those of the father's last attempt.
	FatherAttempt int `json:"fatherAttempt,omitempty"`
	// Path is the logical position of the node, "name#order" segments from
	// the root joined by "/". It is stable across runs of the same graph.
	Path string `json:"path"`

	CreateTime time.Time `json:"createTime"`
}

// IsRoot reports whether r is a trace root.
func (r *Request) IsRoot() bool {
	return r.FatherNodeID == ""
}

// Depth returns the number of callees from the root to r.
func (r *Request) Depth() int {
	return len(r.CallStack)
}

// PathSegment builds one segment of a logical path.
func PathSegment(callee string, order int) string {
	return callee + "#" + strconv.Itoa(order)
}

// JoinPath appends a segment to a parent path.
func JoinPath(parent, segment string) string {
	if parent == "" {
		return segment
	}
	return parent + "/" + segment
}

// HasPathPrefix reports whether path equals prefix or lies under it.
func HasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Child derives the request of a callee dispatched by r. Stacks are copied,
// shared and global data are passed by reference and arguments are replaced.
func (r *Request) Child(nodeID, callee string, category Category, args Arguments, order int) *Request {
	child := &Request{
		NodeID:         nodeID,
		FatherNodeID:   r.NodeID,
		TraceID:        r.TraceID,
		FromTraceID:    r.FromTraceID,
		CallStack:      appendCopy(r.CallStack, callee),
		NodeIDStack:    appendCopy(r.NodeIDStack, nodeID),
		Caller:         r.Callee,
		Callee:         callee,
		CallerCategory: r.CalleeCategory,
		CalleeCategory: category,
		Arguments:      args,
		SharedData:     r.SharedData,
		GroupData:      r.GroupData,
		GlobalData:     r.GlobalData,
		Group:          r.Group,
		Order:          order,
		Path:           JoinPath(r.Path, PathSegment(callee, order)),
		CreateTime:     time.Now(),
	}
	return child
}

func appendCopy(s []string, v string) []string {
	out := make([]string, 0, len(s)+1)
	out = append(out, s...)
	return append(out, v)
}
