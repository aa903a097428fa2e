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
	"time"

	"trpc.group/trpc-go/trpc-callgraph-go/admission"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
	"trpc.group/trpc-go/trpc-callgraph-go/stream"
)

const (
	defaultRetries      = 2
	defaultRetryBackoff = 200 * time.Millisecond
)

// Options holds the configuration of an Engine.
type Options struct {
	store            node.Store
	hub              *stream.Hub
	limiter          *admission.Limiter
	batchConcurrency int
	timeout          time.Duration
	retries          int
	retryBackoff     time.Duration
	entry            string
	globalData       map[string]any
}

// Option configures an Engine.
type Option func(*Options)

// WithStore sets the node store. The default is an in-memory store.
func WithStore(store node.Store) Option {
	return func(o *Options) {
		o.store = store
	}
}

// WithHub sets the stream hub.
func WithHub(hub *stream.Hub) Option {
	return func(o *Options) {
		o.hub = hub
	}
}

// WithBroker wraps broker in a new hub.
func WithBroker(broker stream.Broker) Option {
	return func(o *Options) {
		o.hub = stream.NewHub(broker)
	}
}

// WithLimiter sets the admission limiter.
func WithLimiter(limiter *admission.Limiter) Option {
	return func(o *Options) {
		o.limiter = limiter
	}
}

// WithPermits limits the named resources to the given permit counts.
func WithPermits(permits map[string]int) Option {
	return func(o *Options) {
		o.limiter = admission.NewLimiter(permits)
	}
}

// WithBatchConcurrency bounds how many payloads of one batch run at once.
// Zero runs every payload of a batch at once.
func WithBatchConcurrency(n int) Option {
	return func(o *Options) {
		o.batchConcurrency = n
	}
}

// WithTimeout sets the default timeout of one call attempt. Zero disables
// it.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.timeout = d
	}
}

// WithRetries sets the default number of extra attempts on retryable
// failures.
func WithRetries(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithRetryBackoff sets the base of the linear backoff between attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.retryBackoff = d
		}
	}
}

// WithEntry sets the callee of payloads that name none.
func WithEntry(name string) Option {
	return func(o *Options) {
		o.entry = name
	}
}

// WithGlobalData seeds the global data of the engine.
func WithGlobalData(data map[string]any) Option {
	return func(o *Options) {
		o.globalData = data
	}
}
