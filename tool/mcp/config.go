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

package mcp

import (
	"fmt"
	"time"

	mcp "trpc.group/trpc-go/trpc-mcp-go"
)

// Transport names accepted in ConnectionConfig.Transport.
const (
	TransportStdio      = "stdio"
	TransportSSE        = "sse"
	TransportStreamable = "streamable"
)

var defaultClientInfo = mcp.Implementation{
	Name:    "trpc-callgraph-go",
	Version: "1.0.0",
}

// ConnectionConfig describes how to reach an MCP server.
type ConnectionConfig struct {
	// Transport is one of stdio, sse and streamable.
	Transport string `json:"transport"`

	// Streamable/SSE configuration.
	ServerURL string            `json:"server_url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`

	// STDIO configuration.
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	// Timeout bounds each MCP request that has no deadline of its own.
	Timeout time.Duration `json:"timeout,omitempty"`

	ClientInfo mcp.Implementation `json:"client_info,omitempty"`
}

type toolSetConfig struct {
	connection ConnectionConfig
	filter     ToolFilter
	mcpOptions []mcp.ClientOption
	prefix     string
	resource   string
	timeout    time.Duration
	retries    int
	newClient  func(ConnectionConfig, []mcp.ClientOption) (connector, error)
}

// ToolSetOption configures a ToolSet.
type ToolSetOption func(*toolSetConfig)

// WithToolFilter keeps only the tools the filter lets through.
func WithToolFilter(filter ToolFilter) ToolSetOption {
	return func(c *toolSetConfig) {
		c.filter = filter
	}
}

// WithMCPOptions passes options to the underlying MCP client.
func WithMCPOptions(options ...mcp.ClientOption) ToolSetOption {
	return func(c *toolSetConfig) {
		c.mcpOptions = append(c.mcpOptions, options...)
	}
}

// WithNamePrefix prepends prefix to every callee name, so that tools of
// different servers do not collide in the registry.
func WithNamePrefix(prefix string) ToolSetOption {
	return func(c *toolSetConfig) {
		c.prefix = prefix
	}
}

// WithResource sets the admission resource of every tool.
func WithResource(resource string) ToolSetOption {
	return func(c *toolSetConfig) {
		c.resource = resource
	}
}

// WithCallTimeout sets the engine timeout of one attempt of every tool.
func WithCallTimeout(d time.Duration) ToolSetOption {
	return func(c *toolSetConfig) {
		c.timeout = d
	}
}

// WithRetries sets the retry budget of every tool.
func WithRetries(n int) ToolSetOption {
	return func(c *toolSetConfig) {
		c.retries = n
	}
}

// validateTransport normalizes the transport name.
func validateTransport(t string) (string, error) {
	switch t {
	case TransportStdio:
		return TransportStdio, nil
	case TransportSSE:
		return TransportSSE, nil
	case TransportStreamable, "streamable_http":
		return TransportStreamable, nil
	default:
		return "", fmt.Errorf("unsupported transport: %s, supported: stdio, sse, streamable", t)
	}
}
