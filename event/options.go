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

package event

// Option is a function that can be used to configure the Event.
type Option func(*Event)

// WithNodeID sets the emitting node.
func WithNodeID(nodeID string) Option {
	return func(e *Event) {
		e.NodeID = nodeID
	}
}

// WithCallStack sets the call stack of the emitting node.
func WithCallStack(stack []string) Option {
	return func(e *Event) {
		e.CallStack = append([]string(nil), stack...)
	}
}

// WithParties sets caller and callee.
func WithParties(caller, callee string) Option {
	return func(e *Event) {
		e.Caller = caller
		e.Callee = callee
	}
}

// WithState sets the node state.
func WithState(state string) Option {
	return func(e *Event) {
		e.State = state
	}
}

// WithPersist overrides the persist flag.
func WithPersist(persist bool) Option {
	return func(e *Event) {
		e.Persist = persist
	}
}

// WithBroadcast overrides the broadcast flag.
func WithBroadcast(broadcast bool) Option {
	return func(e *Event) {
		e.Broadcast = broadcast
	}
}

// WithFinal marks the event as the terminal marker of its trace.
func WithFinal() Option {
	return func(e *Event) {
		e.Final = true
	}
}
