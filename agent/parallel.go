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

// NewParallel creates a flow that runs callees as one parallel group, each
// with the arguments of the flow. Its output lists the outputs in callee
// order. Failed branches leave nil in the list; the flow fails only when
// every branch failed.
func NewParallel(name string, callees []string, opts ...Option) (*Agent, error) {
	if len(callees) == 0 {
		return nil, errors.New("agent: parallel " + name + " has no callees")
	}
	branches := append([]string(nil), callees...)
	return NewFlow(name, func(ctx context.Context, c *engine.Context) (any, error) {
		calls := make([]engine.Call, len(branches))
		for i, callee := range branches {
			calls[i] = engine.Call{Callee: callee, Arguments: c.Request().Arguments.Clone()}
		}
		resps := c.FanOut(ctx, calls)
		var errs []error
		for _, r := range resps {
			if err := r.Err(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) == len(resps) {
			return nil, errors.Join(errs...)
		}
		return call.Outputs(resps), nil
	}, opts...)
}
