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

// Package redis resolves the redis clients shared by the node store and the
// stream broker. Clients are built from named instances or plain URLs.
package redis

import (
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

var (
	registryMu sync.RWMutex
	registry   = map[string][]ClientBuilderOpt{}
)

// ClientBuilder builds a redis client from options.
type ClientBuilder func(builderOpts ...ClientBuilderOpt) (redis.UniversalClient, error)

var globalBuilder ClientBuilder = DefaultClientBuilder

// SetClientBuilder replaces the builder used by NewClient.
func SetClientBuilder(builder ClientBuilder) {
	globalBuilder = builder
}

// GetClientBuilder returns the builder used by NewClient.
func GetClientBuilder() ClientBuilder {
	return globalBuilder
}

// DefaultClientBuilder parses the URL option into universal options.
func DefaultClientBuilder(builderOpts ...ClientBuilderOpt) (redis.UniversalClient, error) {
	o := &ClientBuilderOpts{}
	for _, opt := range builderOpts {
		opt(o)
	}
	if o.URL == "" {
		return nil, fmt.Errorf("redis: url is empty")
	}

	opts, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url %s: %w", o.URL, err)
	}
	universalOpts := &redis.UniversalOptions{
		Addrs:                 []string{opts.Addr},
		DB:                    opts.DB,
		Username:              opts.Username,
		Password:              opts.Password,
		Protocol:              opts.Protocol,
		ClientName:            opts.ClientName,
		TLSConfig:             opts.TLSConfig,
		MaxRetries:            opts.MaxRetries,
		DialTimeout:           opts.DialTimeout,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ContextTimeoutEnabled: opts.ContextTimeoutEnabled,
		PoolSize:              opts.PoolSize,
		PoolTimeout:           opts.PoolTimeout,
		MinIdleConns:          opts.MinIdleConns,
		MaxIdleConns:          opts.MaxIdleConns,
		ConnMaxIdleTime:       opts.ConnMaxIdleTime,
		ConnMaxLifetime:       opts.ConnMaxLifetime,
	}
	return redis.NewUniversalClient(universalOpts), nil
}

// ClientBuilderOpt is the option for the redis client.
type ClientBuilderOpt func(*ClientBuilderOpts)

// ClientBuilderOpts is the options for the redis client.
type ClientBuilderOpts struct {
	URL string
	// ExtraOptions are passed through to custom builders.
	ExtraOptions []any
}

// WithClientBuilderURL sets the redis url.
// scheme: redis://<username>:<password>@<host>:<port>/<db>?<options>
func WithClientBuilderURL(url string) ClientBuilderOpt {
	return func(opts *ClientBuilderOpts) {
		opts.URL = url
	}
}

// WithExtraOptions appends options for custom builders.
func WithExtraOptions(extraOptions ...any) ClientBuilderOpt {
	return func(opts *ClientBuilderOpts) {
		opts.ExtraOptions = append(opts.ExtraOptions, extraOptions...)
	}
}

// RegisterInstance registers options under an instance name. Repeated calls
// append.
func RegisterInstance(name string, opts ...ClientBuilderOpt) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = append(registry[name], opts...)
}

// GetInstance returns the options of a registered instance.
func GetInstance(name string) ([]ClientBuilderOpt, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	opts, ok := registry[name]
	return opts, ok
}

// NewClient builds a client for target, which is either a registered
// instance name or a redis:// URL.
func NewClient(target string) (redis.UniversalClient, error) {
	if opts, ok := GetInstance(target); ok {
		return globalBuilder(opts...)
	}
	if strings.Contains(target, "://") {
		return globalBuilder(WithClientBuilderURL(target))
	}
	return nil, fmt.Errorf("redis: unknown instance %q", target)
}
