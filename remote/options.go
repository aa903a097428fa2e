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

package remote

import (
	"net/http"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/client"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
)

const defaultHTTPTimeout = 5 * time.Minute

type options struct {
	description string
	category    call.Category
	resource    string
	trustMode   bool
	timeout     time.Duration
	retries     int
	peerCallee  string
	httpClient  *http.Client
	headers     map[string]string
	a2aOptions  []client.Option
}

func newOptions(opts ...Option) *options {
	o := &options{
		category: call.CategoryAgent,
		retries:  engine.DefaultRetries,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return o
}

// Option configures a remote callable.
type Option func(*options)

// WithDescription sets the description of the callable.
func WithDescription(d string) Option {
	return func(o *options) {
		o.description = d
	}
}

// WithCategory sets the category of the callable. Defaults to agent.
func WithCategory(c call.Category) Option {
	return func(o *options) {
		o.category = c
	}
}

// WithResource sets the admission resource of the callable.
func WithResource(r string) Option {
	return func(o *options) {
		o.resource = r
	}
}

// WithTrustMode sets the trust mode announced to the peer.
func WithTrustMode(trust bool) Option {
	return func(o *options) {
		o.trustMode = trust
	}
}

// WithTimeout bounds one attempt of the remote call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithRetries sets the retry budget. Transport failures are retried.
func WithRetries(n int) Option {
	return func(o *options) {
		o.retries = n
	}
}

// WithPeerCallee names the callable on the peer.
func WithPeerCallee(name string) Option {
	return func(o *options) {
		o.peerCallee = name
	}
}

// WithHTTPClient sets the http client used to reach the peer.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithHeader adds a header to every request sent to the peer.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithA2AClientOptions passes options to the A2A client.
func WithA2AClientOptions(opts ...client.Option) Option {
	return func(o *options) {
		o.a2aOptions = append(o.a2aOptions, opts...)
	}
}
