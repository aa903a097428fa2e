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

package agent

import (
	"context"
	"errors"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
)

// NewChain creates a flow that calls callees one after another. The first
// callee receives the arguments of the flow; each following one receives
// the output of its predecessor as query. The output of the flow is the
// output of the last callee. The chain stops at the first failure.
func NewChain(name string, callees []string, opts ...Option) (*Agent, error) {
	if len(callees) == 0 {
		return nil, errors.New("agent: chain " + name + " has no callees")
	}
	steps := append([]string(nil), callees...)
	return NewFlow(name, func(ctx context.Context, c *engine.Context) (any, error) {
		args := c.Request().Arguments
		var out any
		for i, callee := range steps {
			if i > 0 {
				args = call.NewArguments(out)
			}
			resp := c.Call(ctx, callee, args)
			if err := resp.Err(); err != nil {
				return nil, err
			}
			out = resp.Output
		}
		return out, nil
	}, opts...)
}
