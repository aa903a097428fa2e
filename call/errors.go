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
	"context"
	"errors"
	"fmt"
)

// ErrorType classifies a failure.
type ErrorType string

// Error types.
const (
	ErrorTypeValidation     ErrorType = "validation_error"
	ErrorTypeExecution      ErrorType = "execution_error"
	ErrorTypeTimeout        ErrorType = "timeout_error"
	ErrorTypeCancellation   ErrorType = "cancellation_error"
	ErrorTypeTransport      ErrorType = "transport_error"
	ErrorTypeReconstruction ErrorType = "reconstruction_error"
	ErrorTypeReplay         ErrorType = "replay_error"
)

// Error is a classified failure. It is what a FAILED or CANCELED response
// carries back to its caller.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewError returns an Error of type t.
func NewError(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err as t. A nil err yields nil.
func WrapError(t ErrorType, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	return string(e.Type) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a retry with identical arguments may succeed.
func (e *Error) Retryable() bool {
	return e.Type == ErrorTypeExecution || e.Type == ErrorTypeTransport
}

// IsType reports whether err is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// Classify turns an arbitrary callee error into an *Error. Errors that are
// already classified keep their type; context errors become timeout or
// cancellation errors; anything else is an execution error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(ErrorTypeTimeout, err)
	case errors.Is(err, context.Canceled):
		return WrapError(ErrorTypeCancellation, err)
	}
	return WrapError(ErrorTypeExecution, err)
}
