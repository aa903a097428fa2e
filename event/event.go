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

// Package event defines the messages pushed while a trace executes.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the semantic kind of an event.
type Kind string

// Event kinds.
const (
	// KindToolCall describes a callee right before it is invoked.
	KindToolCall Kind = "tool_call"
	// KindObservation carries the output of the callee announced by the
	// matching tool_call.
	KindObservation Kind = "observation"
	// KindThink carries free-form intermediate reasoning.
	KindThink Kind = "think"
	// KindAnswer carries a final textual result.
	KindAnswer Kind = "answer"
	// KindStream carries an incremental output fragment.
	KindStream Kind = "stream"
	// KindError reports a failure. It closes the trace channel only when
	// Final is set.
	KindError Kind = "error"
	// KindDone is the terminal marker of a trace.
	KindDone Kind = "done"
)

// Event is one message of a trace channel. Each event carries enough
// context to be interpreted without the rest of the stream.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id"`
	// Kind is the semantic kind of the event.
	Kind Kind `json:"kind"`
	// TraceID is the trace the event belongs to.
	TraceID string `json:"traceId"`
	// NodeID is the node that emitted the event.
	NodeID string `json:"nodeId,omitempty"`
	// CallStack is the call stack of that node.
	CallStack []string `json:"callStack,omitempty"`
	// Caller and Callee of the emitting node.
	Caller string `json:"caller,omitempty"`
	Callee string `json:"callee,omitempty"`
	// Content is the payload: arguments for tool_call, output for
	// observation, text for think/answer/stream, message for error.
	Content any `json:"content,omitempty"`
	// State is the node state for observation and error events.
	State string `json:"state,omitempty"`
	// Final marks the event that closes the trace channel.
	Final bool `json:"final,omitempty"`
	// Persist asks for the event to be written to the durable store.
	Persist bool `json:"persist"`
	// Broadcast asks for the event to be forwarded on the live channel.
	Broadcast bool `json:"broadcast"`
	// Timestamp is the emission time.
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event of kind k with the default flags of that kind.
func New(traceID string, k Kind, content any, opts ...Option) *Event {
	e := &Event{
		ID:        uuid.New().String(),
		Kind:      k,
		TraceID:   traceID,
		Content:   content,
		Persist:   defaultPersist(k),
		Broadcast: true,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewErrorEvent creates an error event for nodeID.
func NewErrorEvent(traceID, nodeID, message string, opts ...Option) *Event {
	return New(traceID, KindError, message, append([]Option{WithNodeID(nodeID)}, opts...)...)
}

// NewDoneEvent creates the terminal marker of a trace.
func NewDoneEvent(traceID string, content any) *Event {
	return New(traceID, KindDone, content, WithFinal())
}

// defaultPersist keeps textual results durable; tool_call and observation
// are already covered by node records and stream fragments are transient.
func defaultPersist(k Kind) bool {
	switch k {
	case KindThink, KindAnswer, KindError:
		return true
	}
	return false
}

// Terminal reports whether e closes its trace channel.
func (e *Event) Terminal() bool {
	return e != nil && e.Final
}

// Clone returns a copy of e whose call stack is not shared.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	if e.CallStack != nil {
		clone.CallStack = append([]string(nil), e.CallStack...)
	}
	return &clone
}
