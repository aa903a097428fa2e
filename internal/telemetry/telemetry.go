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

// Package telemetry holds the names and span helpers shared by the tracing
// and metric packages and by the engine.
package telemetry

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
)

// telemetry service constants.
const (
	ServiceName      = "callgraph"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-callgraph"
	InstrumentName   = "trpc.callgraph.go"

	SpanNamePrefixCall = "call"
	SpanNameChat       = "chat"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attributes constants.
var (
	KeyTraceID      = "trpc.go.callgraph.trace_id"
	KeyFromTraceID  = "trpc.go.callgraph.from_trace_id"
	KeyNodeID       = "trpc.go.callgraph.node_id"
	KeyFatherNodeID = "trpc.go.callgraph.father_node_id"
	KeyCaller       = "trpc.go.callgraph.caller"
	KeyCallee       = "trpc.go.callgraph.callee"
	KeyCategory     = "trpc.go.callgraph.category"
	KeyPath         = "trpc.go.callgraph.path"
	KeyParallelID   = "trpc.go.callgraph.parallel_id"
	KeyState        = "trpc.go.callgraph.state"
	KeyAttempts     = "trpc.go.callgraph.attempts"
	KeyErrorType    = "trpc.go.callgraph.error_type"
	KeyArguments    = "trpc.go.callgraph.arguments"
	KeyOutput       = "trpc.go.callgraph.output"
)

// NewCallSpanName returns the span name of one dispatched call.
func NewCallSpanName(category call.Category, callee string) string {
	name := SpanNamePrefixCall
	if category != "" {
		name += "_" + string(category)
	}
	if callee == "" {
		return name
	}
	return name + " " + callee
}

// TraceRequest sets the attributes known before a call runs.
func TraceRequest(span trace.Span, req *call.Request) {
	span.SetAttributes(
		attribute.String(KeyTraceID, req.TraceID),
		attribute.String(KeyNodeID, req.NodeID),
		attribute.String(KeyFatherNodeID, req.FatherNodeID),
		attribute.String(KeyCaller, req.Caller),
		attribute.String(KeyCallee, req.Callee),
		attribute.String(KeyCategory, string(req.CalleeCategory)),
		attribute.String(KeyPath, req.Path),
	)
	if req.FromTraceID != "" {
		span.SetAttributes(attribute.String(KeyFromTraceID, req.FromTraceID))
	}
	if req.ParallelID != "" {
		span.SetAttributes(attribute.String(KeyParallelID, req.ParallelID))
	}
	span.SetAttributes(attribute.String(KeyArguments, marshal(req.Arguments)))
}

// TraceResponse sets the attributes of a terminal response and the span
// status.
func TraceResponse(span trace.Span, resp *call.Response) {
	span.SetAttributes(attribute.String(KeyState, string(resp.State)))
	if n, ok := resp.Extra[call.ExtraAttempts].(int); ok {
		span.SetAttributes(attribute.Int(KeyAttempts, n))
	}
	if resp.Error != nil {
		span.SetAttributes(attribute.String(KeyErrorType, string(resp.Error.Type)))
		span.SetStatus(codes.Error, resp.Error.Message)
		return
	}
	span.SetAttributes(attribute.String(KeyOutput, marshal(resp.Output)))
	span.SetStatus(codes.Ok, "")
}

func marshal(v any) string {
	bts, err := json.Marshal(v)
	if err != nil {
		return "<not json serializable>"
	}
	return string(bts)
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
