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

package server

import (
	"net/http"
	"time"

	"github.com/rs/cors"
	"trpc.group/trpc-go/trpc-callgraph-go/replay"
)

const defaultKeepAlive = 15 * time.Second

type options struct {
	cors          cors.Options
	keepAlive     time.Duration
	replayOptions []replay.Option
}

func newOptions(opts ...Option) *options {
	o := &options{
		cors: cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowCredentials: true,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		},
		keepAlive: defaultKeepAlive,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a Server.
type Option func(*options)

// WithCORS replaces the CORS policy. All origins are allowed by default.
func WithCORS(c cors.Options) Option {
	return func(o *options) {
		o.cors = c
	}
}

// WithKeepAlive sets the interval of keep-alive comments on trace streams.
// A non-positive interval disables them.
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) {
		o.keepAlive = d
	}
}

// WithReplayOptions configures the replays started through the server.
func WithReplayOptions(opts ...replay.Option) Option {
	return func(o *options) {
		o.replayOptions = append(o.replayOptions, opts...)
	}
}
