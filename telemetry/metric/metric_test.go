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

package metric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	itelemetry "trpc.group/trpc-go/trpc-callgraph-go/internal/telemetry"
)

func TestMetricsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "localhost:4317", metricsEndpoint(itelemetry.ProtocolGRPC))
	assert.Equal(t, "localhost:4318", metricsEndpoint(itelemetry.ProtocolHTTP))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic:4317")
	assert.Equal(t, "generic:4317", metricsEndpoint(itelemetry.ProtocolGRPC))
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "metrics:4317")
	assert.Equal(t, "metrics:4317", metricsEndpoint(itelemetry.ProtocolGRPC))
}

func TestStart(t *testing.T) {
	_, err := Start(context.Background(), WithProtocol("smoke-signals"))
	assert.Error(t, err)

	clean, err := Start(context.Background(),
		WithEndpoint("localhost:4317"),
		WithServiceName("callgraph-test"),
		WithInterval(time.Hour),
	)
	require.NoError(t, err)
	require.NotNil(t, clean)
	assert.NotNil(t, Meter)
	// No collector runs in tests.
	_ = clean()
}
