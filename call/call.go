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

// Package call defines the request/response model shared by every node of a
// call graph: what a caller hands to a callee, what comes back, and the
// concurrency-safe data bags visible across a trace.
package call

// Category classifies a callee.
type Category string

// Callee categories.
const (
	CategoryAgent Category = "agent"
	CategoryTool  Category = "tool"
	CategoryModel Category = "model"
	CategoryFlow  Category = "flow"
	// CategoryUser is only used as the caller category of a trace root.
	CategoryUser Category = "user"
)

// Valid reports whether c is one of the callee categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAgent, CategoryTool, CategoryModel, CategoryFlow:
		return true
	}
	return false
}

// State is the lifecycle state of a node.
type State string

// Node states.
const (
	StateCreated   State = "CREATED"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateSuccess   State = "SUCCESS"
	StateFailed    State = "FAILED"
	StatePaused    State = "PAUSED"
	StateSkipped   State = "SKIPPED"
	StateCanceled  State = "CANCELED"
)

// Terminal reports whether no further transition is expected from s.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateSuccess, StateFailed, StateSkipped, StateCanceled:
		return true
	}
	return false
}

// Succeeded reports whether s carries a usable output.
func (s State) Succeeded() bool {
	switch s {
	case StateCompleted, StateSuccess, StateSkipped:
		return true
	}
	return false
}

// UserCaller is the caller name recorded on trace roots.
const UserCaller = "user"
