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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	itelemetry "trpc.group/trpc-go/trpc-callgraph-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
	ametric "trpc.group/trpc-go/trpc-callgraph-go/telemetry/metric"
)

// instruments are the metrics recorded per dispatched call.
type instruments struct {
	calls    metric.Int64Counter
	failures metric.Int64Counter
	inflight metric.Int64UpDownCounter
	duration metric.Float64Histogram
}

func newInstruments() *instruments {
	m := ametric.Meter
	ins := &instruments{}
	var err error
	if ins.calls, err = m.Int64Counter("callgraph.calls",
		metric.WithDescription("The number of dispatched calls")); err != nil {
		log.Warnf("engine: create calls counter: %v", err)
	}
	if ins.failures, err = m.Int64Counter("callgraph.failures",
		metric.WithDescription("The number of calls ending FAILED or CANCELED")); err != nil {
		log.Warnf("engine: create failures counter: %v", err)
	}
	if ins.inflight, err = m.Int64UpDownCounter("callgraph.inflight",
		metric.WithDescription("The number of calls currently running")); err != nil {
		log.Warnf("engine: create inflight counter: %v", err)
	}
	if ins.duration, err = m.Float64Histogram("callgraph.duration",
		metric.WithDescription("The duration of calls"), metric.WithUnit("s")); err != nil {
		log.Warnf("engine: create duration histogram: %v", err)
	}
	return ins
}

func (ins *instruments) begin(ctx context.Context, req *call.Request) func(resp *call.Response) {
	attrs := metric.WithAttributes(
		attribute.String(itelemetry.KeyCallee, req.Callee),
		attribute.String(itelemetry.KeyCategory, string(req.CalleeCategory)),
	)
	if ins.inflight != nil {
		ins.inflight.Add(ctx, 1, attrs)
	}
	start := time.Now()
	return func(resp *call.Response) {
		if ins.inflight != nil {
			ins.inflight.Add(ctx, -1, attrs)
		}
		if ins.calls != nil {
			ins.calls.Add(ctx, 1, attrs)
		}
		if ins.failures != nil && !resp.OK() {
			ins.failures.Add(ctx, 1, attrs)
		}
		if ins.duration != nil {
			ins.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
	}
}
