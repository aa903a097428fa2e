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
	"encoding/json"
	"fmt"
)

// Extra keys set by the engine.
const (
	ExtraAttempts     = "attempts"
	ExtraReplayedFrom = "replayed_from"
	ExtraTraceID      = "trace_id"
	ExtraRemote       = "remote"
)

// Response is what a callee returns to its caller.
type Response struct {
	State   State          `json:"state"`
	Output  any            `json:"output,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
	Error   *Error         `json:"error,omitempty"`
	Request *Request       `json:"-"`
}

// NewResponse returns a COMPLETED response carrying output.
func NewResponse(req *Request, output any) *Response {
	return &Response{State: StateCompleted, Output: output, Request: req}
}

// NewFailedResponse returns a FAILED response, or a CANCELED one when err is
// a cancellation error.
func NewFailedResponse(req *Request, err error) *Response {
	e := Classify(err)
	state := StateFailed
	if e != nil && e.Type == ErrorTypeCancellation {
		state = StateCanceled
	}
	return &Response{State: state, Error: e, Request: req}
}

// OK reports whether the response carries a usable output.
func (r *Response) OK() bool {
	return r != nil && r.State.Succeeded()
}

// Err returns the failure of a non-successful response.
func (r *Response) Err() error {
	if r == nil {
		return NewError(ErrorTypeExecution, "nil response")
	}
	if r.OK() {
		return nil
	}
	if r.Error != nil {
		return r.Error
	}
	return NewError(ErrorTypeExecution, "callee ended in state %s", r.State)
}

// SetExtra stores an extra value.
func (r *Response) SetExtra(key string, value any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = value
}

// Text renders Output as text: strings are returned as is, other values as
// JSON.
func (r *Response) Text() string {
	if r == nil || r.Output == nil {
		return ""
	}
	switch v := r.Output.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	b, err := json.Marshal(r.Output)
	if err != nil {
		return fmt.Sprint(r.Output)
	}
	return string(b)
}

// Outputs collects the outputs of responses, in order. Failed responses
// contribute nil.
func Outputs(resps []*Response) []any {
	out := make([]any, len(resps))
	for i, r := range resps {
		if r.OK() {
			out[i] = r.Output
		}
	}
	return out
}
