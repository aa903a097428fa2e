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

// Package config loads the settings of a callgraph process from a YAML
// file. Every value can be overridden by a CALLGRAPH_* environment
// variable.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend types.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Remote protocols.
const (
	ProtocolHTTP = "http"
	ProtocolA2A  = "a2a"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// MCP transports.
const (
	TransportStdio      = "stdio"
	TransportSSE        = "sse"
	TransportStreamable = "streamable"
)

// Config is the configuration of a callgraph process.
type Config struct {
	Log       Log            `yaml:"log"`
	Server    Server         `yaml:"server"`
	Engine    Engine         `yaml:"engine"`
	Permits   map[string]int `yaml:"permits"`
	Store     Store          `yaml:"store"`
	Stream    Stream         `yaml:"stream"`
	Remotes   []Remote       `yaml:"remotes"`
	Models    []Model        `yaml:"models"`
	MCP       []MCPServer    `yaml:"mcp"`
	Telemetry Telemetry      `yaml:"telemetry"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Server configures the HTTP listeners.
type Server struct {
	Addr string `yaml:"addr"`
	// A2AAddr enables the A2A listener when set.
	A2AAddr         string        `yaml:"a2a_addr"`
	KeepAlive       time.Duration `yaml:"keep_alive"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Engine configures the execution defaults.
type Engine struct {
	Entry            string         `yaml:"entry"`
	Timeout          time.Duration  `yaml:"timeout"`
	Retries          int            `yaml:"retries"`
	RetryBackoff     time.Duration  `yaml:"retry_backoff"`
	BatchConcurrency int            `yaml:"batch_concurrency"`
	GlobalData       map[string]any `yaml:"global_data"`
}

// Store configures node and event persistence.
type Store struct {
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
	// Prefix is the key prefix for redis and the table prefix for postgres.
	Prefix   string        `yaml:"prefix"`
	TraceTTL time.Duration `yaml:"trace_ttl"`
}

// Stream configures the broker of live trace channels.
type Stream struct {
	Type      string        `yaml:"type"`
	URL       string        `yaml:"url"`
	Prefix    string        `yaml:"prefix"`
	Retention time.Duration `yaml:"retention"`
}

// Remote declares a callable served by a peer.
type Remote struct {
	Name       string        `yaml:"name"`
	URL        string        `yaml:"url"`
	Protocol   string        `yaml:"protocol"`
	PeerCallee string        `yaml:"peer_callee"`
	Category   string        `yaml:"category"`
	Resource   string        `yaml:"resource"`
	Timeout    time.Duration `yaml:"timeout"`
	// Retries is a pointer so that an explicit 0 differs from unset.
	Retries *int `yaml:"retries"`
}

// Model declares a callee backed by an OpenAI compatible endpoint or by
// Gemini.
type Model struct {
	Name     string `yaml:"name"`
	Model    string `yaml:"model"`
	Provider string `yaml:"provider"`
	// BaseURL defaults to the endpoint of the provider.
	BaseURL string `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv    string        `yaml:"api_key_env"`
	SystemPrompt string        `yaml:"system_prompt"`
	Resource     string        `yaml:"resource"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      *int          `yaml:"retries"`
}

// MCPServer declares an MCP server whose tools are registered as tool
// callees.
type MCPServer struct {
	Transport string            `yaml:"transport"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	// Prefix is prepended to every tool name.
	Prefix   string        `yaml:"prefix"`
	Include  []string      `yaml:"include"`
	Exclude  []string      `yaml:"exclude"`
	Resource string        `yaml:"resource"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  *int          `yaml:"retries"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Traces      bool    `yaml:"traces"`
	Metrics     bool    `yaml:"metrics"`
	Protocol    string  `yaml:"protocol"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:    Log{Level: "info", Format: "console"},
		Server: Server{Addr: ":8080", KeepAlive: 15 * time.Second, ShutdownTimeout: 10 * time.Second},
		Engine: Engine{Retries: 2, RetryBackoff: 200 * time.Millisecond, BatchConcurrency: 8},
		Store:  Store{Type: BackendMemory},
		Stream: Stream{Type: BackendMemory, Retention: 5 * time.Minute},
		Telemetry: Telemetry{
			Protocol:    "grpc",
			SampleRatio: 1,
		},
	}
}

// Load reads the file at path over the defaults, applies the environment
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal %q: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. The
// environment is not consulted.
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the process cannot start
// with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Type {
	case BackendMemory:
	case BackendRedis, BackendPostgres:
		if c.Store.URL == "" {
			errs = append(errs, fmt.Errorf("config: store.url is required for %s", c.Store.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store.type %q", c.Store.Type))
	}
	switch c.Stream.Type {
	case BackendMemory:
	case BackendRedis:
		if c.Stream.URL == "" {
			errs = append(errs, errors.New("config: stream.url is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown stream.type %q", c.Stream.Type))
	}
	if c.Engine.Retries < 0 {
		errs = append(errs, errors.New("config: engine.retries is negative"))
	}
	for resource, n := range c.Permits {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("config: permits of %q must be positive", resource))
		}
	}
	seen := make(map[string]bool, len(c.Remotes)+len(c.Models))
	for i, r := range c.Remotes {
		if r.Name == "" || r.URL == "" {
			errs = append(errs, fmt.Errorf("config: remotes[%d] needs a name and a url", i))
			continue
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Errorf("config: duplicate remote %q", r.Name))
		}
		seen[r.Name] = true
		switch r.Protocol {
		case "", ProtocolHTTP, ProtocolA2A:
		default:
			errs = append(errs, fmt.Errorf("config: remote %q has unknown protocol %q", r.Name, r.Protocol))
		}
	}
	for i, m := range c.Models {
		if m.Name == "" || m.Model == "" {
			errs = append(errs, fmt.Errorf("config: models[%d] needs a name and a model", i))
			continue
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Errorf("config: duplicate callee %q", m.Name))
		}
		seen[m.Name] = true
		switch m.Provider {
		case "", ProviderOpenAI, ProviderGemini:
		default:
			errs = append(errs, fmt.Errorf("config: model %q has unknown provider %q", m.Name, m.Provider))
		}
	}
	for i, m := range c.MCP {
		switch m.Transport {
		case TransportStdio:
			if m.Command == "" {
				errs = append(errs, fmt.Errorf("config: mcp[%d] needs a command", i))
			}
		case TransportSSE, TransportStreamable, "streamable_http":
			if m.URL == "" {
				errs = append(errs, fmt.Errorf("config: mcp[%d] needs a url", i))
			}
		default:
			errs = append(errs, fmt.Errorf("config: mcp[%d] has unknown transport %q", i, m.Transport))
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("config: telemetry.sample_ratio must be within [0, 1]"))
	}
	return errors.Join(errs...)
}
