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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
)

func runClient(t *testing.T, m Model, cb *Callbacks) *call.Response {
	t.Helper()
	client, err := New(m, WithCallbacks(cb), WithRetries(0))
	require.NoError(t, err)
	e := engine.New()
	t.Cleanup(func() { e.Close() })
	require.NoError(t, e.Register(client))
	return e.Chat(context.Background(), engine.Payload{Callee: "mock-llm", Arguments: call.NewArguments("hi")})
}

func TestCallbacksBeforeShortCuts(t *testing.T) {
	m := &mockModel{}
	cb := (&Callbacks{}).OnBefore(func(_ context.Context, c *engine.Context, _ *Request) (*Response, error) {
		return &Response{Choices: []Choice{{Message: NewAssistantMessage("cached for " + c.Request().Callee)}}}, nil
	})
	resp := runClient(t, m, cb)
	require.True(t, resp.OK(), "%v", resp.Error)
	assert.Equal(t, "cached for mock-llm", resp.Output)
	assert.Nil(t, m.last)
}

func TestCallbacksBeforeRewritesRequest(t *testing.T) {
	m := &mockModel{responses: []*Response{{Done: true, Choices: []Choice{{Message: NewAssistantMessage("ok")}}}}}
	cb := (&Callbacks{}).OnBefore(func(_ context.Context, _ *engine.Context, req *Request) (*Response, error) {
		req.Messages = append([]Message{NewSystemMessage("injected")}, req.Messages...)
		return nil, nil
	})
	resp := runClient(t, m, cb)
	require.True(t, resp.OK())
	require.Len(t, m.last.Messages, 2)
	assert.Equal(t, "injected", m.last.Messages[0].Content)
}

func TestCallbacksAfterChain(t *testing.T) {
	m := &mockModel{responses: []*Response{partial("raw", "")}}
	var seen []string
	cb := (&Callbacks{}).
		OnAfter(func(_ context.Context, _ *engine.Context, rsp *Response) (*Response, error) {
			seen = append(seen, responseText(rsp))
			return &Response{Choices: []Choice{{Message: NewAssistantMessage("edited")}}}, nil
		}).
		OnAfter(func(_ context.Context, _ *engine.Context, rsp *Response) (*Response, error) {
			seen = append(seen, responseText(rsp))
			return nil, nil
		})
	resp := runClient(t, m, cb)
	require.True(t, resp.OK())
	assert.Equal(t, "edited", resp.Output)
	assert.Equal(t, []string{"raw", "edited"}, seen)
}

func TestCallbacksError(t *testing.T) {
	cb := (&Callbacks{}).OnBefore(func(context.Context, *engine.Context, *Request) (*Response, error) {
		return nil, errors.New("blocked")
	})
	resp := runClient(t, &mockModel{}, cb)
	assert.Equal(t, call.StateFailed, resp.State)
	assert.Contains(t, resp.Error.Message, "blocked")
}
