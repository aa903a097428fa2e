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

// Package telemetry starts span and metric export together.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	itelemetry "trpc.group/trpc-go/trpc-callgraph-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-callgraph-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-callgraph-go/telemetry/trace"
)

// Config selects what is exported and where. Empty endpoints fall back to
// the OTEL_EXPORTER_OTLP_* environment variables.
type Config struct {
	Traces          bool
	Metrics         bool
	Protocol        string
	TracesEndpoint  string
	MetricsEndpoint string
	ServiceName     string
	SampleRatio     float64
}

// Start starts the exporters enabled by cfg. The returned function shuts
// down every exporter that was started, also when Start fails halfway.
func Start(ctx context.Context, cfg Config) (clean func() error, err error) {
	var cleans []func() error
	clean = func() error {
		var errs []error
		for _, c := range cleans {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
	protocol := cfg.Protocol
	if protocol == "" {
		protocol = itelemetry.ProtocolGRPC
	}

	if cfg.Traces {
		opts := []trace.Option{trace.WithProtocol(protocol)}
		if cfg.TracesEndpoint != "" {
			opts = append(opts, trace.WithEndpoint(cfg.TracesEndpoint))
		}
		if cfg.ServiceName != "" {
			opts = append(opts, trace.WithServiceName(cfg.ServiceName))
		}
		if cfg.SampleRatio > 0 {
			opts = append(opts, trace.WithSampleRatio(cfg.SampleRatio))
		}
		c, err := trace.Start(ctx, opts...)
		if err != nil {
			return clean, fmt.Errorf("start traces: %w", err)
		}
		cleans = append(cleans, c)
	}
	if cfg.Metrics {
		opts := []metric.Option{metric.WithProtocol(protocol)}
		if cfg.MetricsEndpoint != "" {
			opts = append(opts, metric.WithEndpoint(cfg.MetricsEndpoint))
		}
		if cfg.ServiceName != "" {
			opts = append(opts, metric.WithServiceName(cfg.ServiceName))
		}
		c, err := metric.Start(ctx, opts...)
		if err != nil {
			return clean, fmt.Errorf("start metrics: %w", err)
		}
		cleans = append(cleans, c)
	}
	return clean, nil
}
