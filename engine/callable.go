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
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
)

// DefaultRetries asks for the retry budget of the engine.
const DefaultRetries = -1

// Info describes a callable. It is built once by the constructor of the
// callable and never changes afterwards.
type Info struct {
	// Name is the registry key of the callable.
	Name string
	// Description is a human readable summary.
	Description string
	// Category is the kind of the callable.
	Category call.Category
	// Resource is the admission resource a call holds a permit of while
	// it runs. Empty means the callable name.
	Resource string
	// TrustMode returns the raw results of the callees of this callable,
	// without post-processing.
	TrustMode bool
	// Timeout bounds one attempt. Zero means the engine default.
	Timeout time.Duration
	// Retries is the number of extra attempts on retryable failures.
	// DefaultRetries means the engine default.
	Retries int
}

// ResourceName returns the admission resource of the callable.
func (i Info) ResourceName() string {
	if i.Resource != "" {
		return i.Resource
	}
	return i.Name
}

// Callable is a named call target.
type Callable interface {
	// Info returns the description of the callable.
	Info() Info
	// Invoke runs the callable. c gives access to the request of the node
	// and lets the callable call further callees and emit events.
	Invoke(ctx context.Context, c *Context) (any, error)
}

// Postprocessor is implemented by callables whose raw output is turned into
// the final output before it reaches a caller not running in trust mode.
type Postprocessor interface {
	Postprocess(ctx context.Context, c *Context, output any) (any, error)
}

// registry maps names to callables. It is filled at startup and read at
// dispatch.
type registry struct {
	mu        sync.RWMutex
	callables map[string]Callable
}

func newRegistry() *registry {
	return &registry{callables: make(map[string]Callable)}
}

func (r *registry) register(c Callable) error {
	if c == nil {
		return call.NewError(call.ErrorTypeValidation, "nil callable")
	}
	info := c.Info()
	if info.Name == "" {
		return call.NewError(call.ErrorTypeValidation, "callable without name")
	}
	if info.Name == call.UserCaller {
		return call.NewError(call.ErrorTypeValidation, "callable name %q is reserved", info.Name)
	}
	if !info.Category.Valid() {
		return call.NewError(call.ErrorTypeValidation, "callable %s has invalid category %q", info.Name, info.Category)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callables[info.Name]; ok {
		return call.NewError(call.ErrorTypeValidation, "callable %s already registered", info.Name)
	}
	r.callables[info.Name] = c
	return nil
}

func (r *registry) lookup(name string) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.callables[name]
	return c, ok
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callables))
	for n := range r.callables {
		names = append(names, n)
	}
	return names
}
