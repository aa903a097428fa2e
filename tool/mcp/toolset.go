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

// Package mcp exposes the tools of an MCP server as tool callees.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
)

// reconnectErrorPatterns mark failures after which the session is rebuilt
// and the request sent once more.
var reconnectErrorPatterns = []string{
	"session_expired:",
	"transport is closed",
	"not initialized",
	"connection refused",
	"connection reset",
	"EOF",
	"broken pipe",
	"HTTP 404",
	"session not found",
}

var errClosed = errors.New("transport is closed")

// connector is the part of an MCP client the tool set talks to.
type connector interface {
	Initialize(ctx context.Context, req *mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req *mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// ToolSet connects to one MCP server and turns its tools into callees.
type ToolSet struct {
	config  toolSetConfig
	session *session

	mu    sync.RWMutex
	tools []*Tool
}

// NewToolSet creates a ToolSet. No connection is made before Tools.
func NewToolSet(conn ConnectionConfig, opts ...ToolSetOption) *ToolSet {
	cfg := toolSetConfig{
		connection: conn,
		retries:    engine.DefaultRetries,
		newClient:  createClient,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.connection.ClientInfo.Name == "" {
		cfg.connection.ClientInfo = defaultClientInfo
	}
	return &ToolSet{
		config:  cfg,
		session: &session{config: cfg.connection, mcpOptions: cfg.mcpOptions, newClient: cfg.newClient},
	}
}

// Tools lists the server tools, applies the filter and returns them as
// callees. When listing fails the tools of the last successful listing are
// returned along with the error.
func (ts *ToolSet) Tools(ctx context.Context) ([]*Tool, error) {
	err := ts.refresh(ctx)
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return append([]*Tool(nil), ts.tools...), err
}

// Callables is Tools typed for engine.Register.
func (ts *ToolSet) Callables(ctx context.Context) ([]engine.Callable, error) {
	tools, err := ts.Tools(ctx)
	out := make([]engine.Callable, len(tools))
	for i, t := range tools {
		out[i] = t
	}
	return out, err
}

// Close ends the MCP session.
func (ts *ToolSet) Close() error {
	return ts.session.close()
}

func (ts *ToolSet) refresh(ctx context.Context) error {
	listed, err := ts.session.listTools(ctx)
	if err != nil {
		return fmt.Errorf("mcp: list tools: %w", err)
	}
	if ts.config.filter != nil {
		infos := make([]ToolInfo, len(listed))
		for i, t := range listed {
			infos[i] = ToolInfo{Name: t.Name, Description: t.Description}
		}
		keep := make(map[string]bool)
		for _, info := range ts.config.filter.Filter(ctx, infos) {
			keep[info.Name] = true
		}
		kept := listed[:0]
		for _, t := range listed {
			if keep[t.Name] {
				kept = append(kept, t)
			}
		}
		listed = kept
	}
	tools := make([]*Tool, 0, len(listed))
	for _, t := range listed {
		tools = append(tools, newTool(t, ts.session, &ts.config))
	}
	log.Debugf("mcp: %d tools available from %s", len(tools), ts.config.connection.Transport)

	ts.mu.Lock()
	ts.tools = tools
	ts.mu.Unlock()
	return nil
}

// session owns the MCP client and rebuilds it after connection failures.
type session struct {
	config     ConnectionConfig
	mcpOptions []mcp.ClientOption
	newClient  func(ConnectionConfig, []mcp.ClientOption) (connector, error)

	mu        sync.RWMutex
	client    connector
	reconnect singleflight.Group
}

func createClient(cfg ConnectionConfig, mcpOptions []mcp.ClientOption) (connector, error) {
	transport, err := validateTransport(cfg.Transport)
	if err != nil {
		return nil, err
	}
	if transport == TransportStdio {
		return mcp.NewStdioClient(mcp.StdioTransportConfig{
			ServerParams: mcp.StdioServerParameters{
				Command: cfg.Command,
				Args:    cfg.Args,
			},
			Timeout: cfg.Timeout,
		}, cfg.ClientInfo)
	}
	var options []mcp.ClientOption
	if len(cfg.Headers) > 0 {
		headers := http.Header{}
		for k, v := range cfg.Headers {
			headers.Set(k, v)
		}
		options = append(options, mcp.WithHTTPHeaders(headers))
	}
	options = append(options, mcpOptions...)
	if transport == TransportSSE {
		return mcp.NewSSEClient(cfg.ServerURL, cfg.ClientInfo, options...)
	}
	return mcp.NewClient(cfg.ServerURL, cfg.ClientInfo, options...)
}

// connected returns the client, connecting first if needed.
func (s *session) connected(ctx context.Context) (connector, error) {
	s.mu.RLock()
	c := s.client
	s.mu.RUnlock()
	if c != nil {
		return c, nil
	}
	if err := s.recreate(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, errClosed
	}
	return s.client, nil
}

// recreate replaces the client. Concurrent callers share one attempt.
func (s *session) recreate(ctx context.Context) error {
	_, err, _ := s.reconnect.Do("connect", func() (any, error) {
		s.mu.Lock()
		old := s.client
		s.client = nil
		s.mu.Unlock()
		if old != nil {
			if err := old.Close(); err != nil {
				log.Warnf("mcp: close stale client: %v", err)
			}
		}

		client, err := s.newClient(s.config, s.mcpOptions)
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
		initCtx, cancel := s.withTimeout(ctx)
		defer cancel()
		resp, err := client.Initialize(initCtx, &mcp.InitializeRequest{})
		if err != nil {
			if closeErr := client.Close(); closeErr != nil {
				log.Warnf("mcp: close client after failed initialize: %v", closeErr)
			}
			return nil, fmt.Errorf("initialize session: %w", err)
		}
		log.Debugf("mcp: session initialized with %s %s", resp.ServerInfo.Name, resp.ServerInfo.Version)

		s.mu.Lock()
		s.client = client
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

// do runs op against the client, rebuilding the session once when op fails
// with a connection error.
func (s *session) do(ctx context.Context, op func(ctx context.Context, c connector) error) error {
	c, err := s.connected(ctx)
	if err != nil {
		return err
	}
	opCtx, cancel := s.withTimeout(ctx)
	err = op(opCtx, c)
	cancel()
	if err == nil || !shouldReconnect(err) || ctx.Err() != nil {
		return err
	}
	log.Debugf("mcp: session lost (%v), reconnecting", err)
	if rerr := s.recreate(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	if c, err = s.connected(ctx); err != nil {
		return err
	}
	opCtx, cancel = s.withTimeout(ctx)
	defer cancel()
	return op(opCtx, c)
}

func (s *session) listTools(ctx context.Context) ([]mcp.Tool, error) {
	var tools []mcp.Tool
	err := s.do(ctx, func(ctx context.Context, c connector) error {
		resp, err := c.ListTools(ctx, &mcp.ListToolsRequest{})
		if err != nil {
			return err
		}
		tools = resp.Tools
		return nil
	})
	return tools, err
}

func (s *session) callTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	var result *mcp.CallToolResult
	err := s.do(ctx, func(ctx context.Context, c connector) error {
		req := &mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = arguments
		resp, err := c.CallTool(ctx, req)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	return result, err
}

func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	if err != nil {
		return fmt.Errorf("mcp: close client: %w", err)
	}
	return nil
}

// withTimeout applies the configured timeout unless ctx has a deadline.
func (s *session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			return context.WithTimeout(ctx, s.config.Timeout)
		}
	}
	return ctx, func() {}
}

func shouldReconnect(err error) bool {
	msg := err.Error()
	for _, p := range reconnectErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
