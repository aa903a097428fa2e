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

package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CALLGRAPH_"

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func str(field func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func duration(field func(c *Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func integer(field func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolean(field func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

var envVars = []envVar{
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},
	{"SERVER_ADDR", str(func(c *Config) *string { return &c.Server.Addr })},
	{"SERVER_A2A_ADDR", str(func(c *Config) *string { return &c.Server.A2AAddr })},
	{"ENGINE_ENTRY", str(func(c *Config) *string { return &c.Engine.Entry })},
	{"ENGINE_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Engine.Timeout })},
	{"ENGINE_RETRIES", integer(func(c *Config) *int { return &c.Engine.Retries })},
	{"ENGINE_RETRY_BACKOFF", duration(func(c *Config) *time.Duration { return &c.Engine.RetryBackoff })},
	{"ENGINE_BATCH_CONCURRENCY", integer(func(c *Config) *int { return &c.Engine.BatchConcurrency })},
	{"STORE_TYPE", str(func(c *Config) *string { return &c.Store.Type })},
	{"STORE_URL", str(func(c *Config) *string { return &c.Store.URL })},
	{"STORE_PREFIX", str(func(c *Config) *string { return &c.Store.Prefix })},
	{"STREAM_TYPE", str(func(c *Config) *string { return &c.Stream.Type })},
	{"STREAM_URL", str(func(c *Config) *string { return &c.Stream.URL })},
	{"TELEMETRY_TRACES", boolean(func(c *Config) *bool { return &c.Telemetry.Traces })},
	{"TELEMETRY_METRICS", boolean(func(c *Config) *bool { return &c.Telemetry.Metrics })},
	{"TELEMETRY_PROTOCOL", str(func(c *Config) *string { return &c.Telemetry.Protocol })},
	{"TELEMETRY_ENDPOINT", str(func(c *Config) *string { return &c.Telemetry.Endpoint })},
}

// applyEnv overrides c with the CALLGRAPH_* variables found by lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(EnvPrefix + ev.name)
		if !ok {
			continue
		}
		if err := ev.set(c, v); err != nil {
			return fmt.Errorf("config: %s%s=%q: %w", EnvPrefix, ev.name, v, err)
		}
	}
	return nil
}
