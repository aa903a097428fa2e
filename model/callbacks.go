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

package model

import (
	"context"

	"trpc.group/trpc-go/trpc-callgraph-go/engine"
)

// BeforeFunc runs before the model is asked. It may rewrite req. A non-nil
// response short-cuts the model and becomes the node output.
type BeforeFunc func(ctx context.Context, c *engine.Context, req *Request) (*Response, error)

// AfterFunc runs on the final response of the model. A non-nil response
// replaces it.
type AfterFunc func(ctx context.Context, c *engine.Context, rsp *Response) (*Response, error)

// Callbacks are hooks a Client runs around each model request.
type Callbacks struct {
	Before []BeforeFunc
	After  []AfterFunc
}

// OnBefore appends a before hook and returns c for chaining.
func (c *Callbacks) OnBefore(fn BeforeFunc) *Callbacks {
	c.Before = append(c.Before, fn)
	return c
}

// OnAfter appends an after hook and returns c for chaining.
func (c *Callbacks) OnAfter(fn AfterFunc) *Callbacks {
	c.After = append(c.After, fn)
	return c
}

// runBefore stops at the first hook that fails or answers.
func (c *Callbacks) runBefore(ctx context.Context, cc *engine.Context, req *Request) (*Response, error) {
	if c == nil {
		return nil, nil
	}
	for _, fn := range c.Before {
		rsp, err := fn(ctx, cc, req)
		if err != nil || rsp != nil {
			return rsp, err
		}
	}
	return nil, nil
}

// runAfter feeds each hook the response left by the previous one.
func (c *Callbacks) runAfter(ctx context.Context, cc *engine.Context, rsp *Response) (*Response, error) {
	if c == nil {
		return rsp, nil
	}
	for _, fn := range c.After {
		next, err := fn(ctx, cc, rsp)
		if err != nil {
			return nil, err
		}
		if next != nil {
			rsp = next
		}
	}
	return rsp, nil
}

func responseText(rsp *Response) string {
	if rsp == nil || len(rsp.Choices) == 0 {
		return ""
	}
	return rsp.Choices[0].Message.Content
}
