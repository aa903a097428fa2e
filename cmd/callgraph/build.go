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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/config"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/model"
	"trpc.group/trpc-go/trpc-callgraph-go/model/gemini"
	"trpc.group/trpc-go/trpc-callgraph-go/model/openai"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
	"trpc.group/trpc-go/trpc-callgraph-go/node/inmemory"
	nodepostgres "trpc.group/trpc-go/trpc-callgraph-go/node/postgres"
	noderedis "trpc.group/trpc-go/trpc-callgraph-go/node/redis"
	"trpc.group/trpc-go/trpc-callgraph-go/remote"
	storageredis "trpc.group/trpc-go/trpc-callgraph-go/storage/redis"
	"trpc.group/trpc-go/trpc-callgraph-go/stream"
	streamredis "trpc.group/trpc-go/trpc-callgraph-go/stream/redis"
	"trpc.group/trpc-go/trpc-callgraph-go/tool/mcp"
)

// buildEngine assembles an engine from cfg and registers the configured
// remotes, models and MCP tools. The returned function closes the MCP
// sessions and then the engine.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, func() error, error) {
	store, err := buildStore(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	broker, err := buildBroker(cfg.Stream)
	if err != nil {
		return nil, nil, errors.Join(err, store.Close())
	}
	opts := []engine.Option{
		engine.WithStore(store),
		engine.WithBroker(broker),
		engine.WithTimeout(cfg.Engine.Timeout),
		engine.WithRetries(cfg.Engine.Retries),
		engine.WithRetryBackoff(cfg.Engine.RetryBackoff),
		engine.WithBatchConcurrency(cfg.Engine.BatchConcurrency),
		engine.WithEntry(cfg.Engine.Entry),
		engine.WithGlobalData(cfg.Engine.GlobalData),
	}
	if len(cfg.Permits) > 0 {
		opts = append(opts, engine.WithPermits(cfg.Permits))
	}
	e := engine.New(opts...)

	var toolsets []*mcp.ToolSet
	closeAll := func() error {
		var errs []error
		for _, ts := range toolsets {
			errs = append(errs, ts.Close())
		}
		return errors.Join(append(errs, e.Close())...)
	}
	callables, err := buildCallables(ctx, cfg)
	if err == nil {
		toolsets = buildToolSets(cfg.MCP)
		var tools []engine.Callable
		if tools, err = listTools(ctx, toolsets); err == nil {
			callables = append(callables, tools...)
		}
	}
	if err == nil {
		err = e.Register(callables...)
	}
	if err != nil {
		return nil, nil, errors.Join(err, closeAll())
	}
	return e, closeAll, nil
}

func buildStore(cfg config.Store) (node.Store, error) {
	switch cfg.Type {
	case config.BackendRedis:
		opts := []noderedis.Option{noderedis.WithRedisClientURL(cfg.URL)}
		if cfg.Prefix != "" {
			opts = append(opts, noderedis.WithKeyPrefix(cfg.Prefix))
		}
		if cfg.TraceTTL > 0 {
			opts = append(opts, noderedis.WithTraceTTL(cfg.TraceTTL))
		}
		return noderedis.NewStore(opts...)
	case config.BackendPostgres:
		opts := []nodepostgres.Option{nodepostgres.WithPostgresConnString(cfg.URL)}
		if cfg.Prefix != "" {
			opts = append(opts, nodepostgres.WithTablePrefix(cfg.Prefix))
		}
		return nodepostgres.NewStore(opts...)
	case config.BackendMemory, "":
		return inmemory.NewStore(), nil
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Type)
}

func buildBroker(cfg config.Stream) (stream.Broker, error) {
	switch cfg.Type {
	case config.BackendRedis:
		client, err := storageredis.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("stream: %w", err)
		}
		opts := []streamredis.Option{streamredis.WithRetention(cfg.Retention)}
		if cfg.Prefix != "" {
			opts = append(opts, streamredis.WithKeyPrefix(cfg.Prefix))
		}
		return streamredis.New(client, opts...)
	case config.BackendMemory, "":
		return stream.NewMemoryBroker(stream.WithRetention(cfg.Retention)), nil
	}
	return nil, fmt.Errorf("unknown stream type %q", cfg.Type)
}

func buildCallables(ctx context.Context, cfg *config.Config) ([]engine.Callable, error) {
	var out []engine.Callable
	for _, r := range cfg.Remotes {
		c, err := buildRemote(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	for _, m := range cfg.Models {
		c, err := buildModel(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func buildRemote(r config.Remote) (engine.Callable, error) {
	opts := []remote.Option{remote.WithTimeout(r.Timeout)}
	if r.PeerCallee != "" {
		opts = append(opts, remote.WithPeerCallee(r.PeerCallee))
	}
	if r.Category != "" {
		opts = append(opts, remote.WithCategory(call.Category(r.Category)))
	}
	if r.Resource != "" {
		opts = append(opts, remote.WithResource(r.Resource))
	}
	if r.Retries != nil {
		opts = append(opts, remote.WithRetries(*r.Retries))
	}
	if r.Protocol == config.ProtocolA2A {
		return remote.NewA2A(r.Name, r.URL, opts...)
	}
	return remote.New(r.Name, r.URL, opts...)
}

func buildModel(ctx context.Context, m config.Model) (engine.Callable, error) {
	backend, err := buildBackend(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", m.Name, err)
	}
	opts := []model.Option{model.WithName(m.Name), model.WithTimeout(m.Timeout)}
	if m.SystemPrompt != "" {
		opts = append(opts, model.WithSystemPrompt(m.SystemPrompt))
	}
	if m.Resource != "" {
		opts = append(opts, model.WithResource(m.Resource))
	}
	if m.Retries != nil {
		opts = append(opts, model.WithRetries(*m.Retries))
	}
	return model.New(backend, opts...)
}

func buildBackend(ctx context.Context, m config.Model) (model.Model, error) {
	if m.Provider == config.ProviderGemini {
		var opts []gemini.Option
		if m.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(m.BaseURL))
		}
		if m.APIKeyEnv != "" {
			opts = append(opts, gemini.WithAPIKey(os.Getenv(m.APIKeyEnv)))
		}
		return gemini.New(ctx, m.Model, opts...)
	}
	var opts []openai.Option
	if m.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(m.BaseURL))
	}
	if m.APIKeyEnv != "" {
		opts = append(opts, openai.WithAPIKey(os.Getenv(m.APIKeyEnv)))
	}
	return openai.New(m.Model, opts...), nil
}

func buildToolSets(servers []config.MCPServer) []*mcp.ToolSet {
	toolsets := make([]*mcp.ToolSet, 0, len(servers))
	for _, s := range servers {
		opts := []mcp.ToolSetOption{mcp.WithCallTimeout(s.Timeout)}
		if s.Prefix != "" {
			opts = append(opts, mcp.WithNamePrefix(s.Prefix))
		}
		if s.Resource != "" {
			opts = append(opts, mcp.WithResource(s.Resource))
		}
		if s.Retries != nil {
			opts = append(opts, mcp.WithRetries(*s.Retries))
		}
		var filters []mcp.ToolFilter
		if len(s.Include) > 0 {
			filters = append(filters, mcp.NewIncludeFilter(s.Include...))
		}
		if len(s.Exclude) > 0 {
			filters = append(filters, mcp.NewExcludeFilter(s.Exclude...))
		}
		if len(filters) > 0 {
			opts = append(opts, mcp.WithToolFilter(mcp.NewCompositeFilter(filters...)))
		}
		toolsets = append(toolsets, mcp.NewToolSet(mcp.ConnectionConfig{
			Transport: s.Transport,
			ServerURL: s.URL,
			Headers:   s.Headers,
			Command:   s.Command,
			Args:      s.Args,
			Timeout:   s.Timeout,
		}, opts...))
	}
	return toolsets
}

// listTools connects to every MCP server once at startup.
func listTools(ctx context.Context, toolsets []*mcp.ToolSet) ([]engine.Callable, error) {
	var out []engine.Callable
	for _, ts := range toolsets {
		tools, err := ts.Callables(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, tools...)
	}
	return out, nil
}
