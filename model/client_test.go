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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
)

type mockModel struct {
	responses []*Response
	last      *Request
}

func (m *mockModel) Info() Info {
	return Info{Name: "mock-llm"}
}

func (m *mockModel) GenerateContent(ctx context.Context, req *Request) (<-chan *Response, error) {
	m.last = req
	ch := make(chan *Response, len(m.responses))
	for _, r := range m.responses {
		ch <- r
	}
	close(ch)
	return ch, nil
}

func partial(content, reasoning string) *Response {
	return &Response{
		IsPartial: true,
		Choices:   []Choice{{Delta: Message{Role: RoleAssistant, Content: content, ReasoningContent: reasoning}}},
	}
}

func TestClientStreams(t *testing.T) {
	m := &mockModel{responses: []*Response{
		partial("", "let me think"),
		partial("Hel", ""),
		partial("lo", ""),
		{Done: true, Choices: []Choice{{Message: NewAssistantMessage("Hello")}}},
	}}
	client, err := New(m, WithSystemPrompt("be brief"))
	require.NoError(t, err)
	assert.Equal(t, "mock-llm", client.Info().Name)
	assert.Equal(t, call.CategoryModel, client.Info().Category)
	assert.Equal(t, "mock-llm", client.Info().ResourceName())

	e := engine.New()
	defer e.Close()
	require.NoError(t, e.Register(client))

	p := engine.Payload{
		Callee:  "mock-llm",
		TraceID: "trace-model",
		Arguments: call.Arguments{
			Query:    "greet me",
			Messages: []call.Message{{Role: call.RoleAssistant, Content: "earlier"}},
		},
	}
	events, err := e.Hub().Subscribe(context.Background(), p.TraceID)
	require.NoError(t, err)
	resp := e.Chat(context.Background(), p)
	require.True(t, resp.OK(), "%v", resp.Error)
	assert.Equal(t, "Hello", resp.Output)

	require.Len(t, m.last.Messages, 3)
	assert.Equal(t, RoleSystem, m.last.Messages[0].Role)
	assert.Equal(t, NewAssistantMessage("earlier"), m.last.Messages[1])
	assert.Equal(t, NewUserMessage("greet me"), m.last.Messages[2])
	assert.True(t, m.last.Stream)

	var streamed []any
	var thinks int
	for ev := range events {
		switch ev.Kind {
		case event.KindStream:
			streamed = append(streamed, ev.Content)
		case event.KindThink:
			thinks++
		}
	}
	assert.Equal(t, []any{"Hel", "lo"}, streamed)
	assert.Equal(t, 1, thinks)
}

func TestClientWithoutFinalResponse(t *testing.T) {
	m := &mockModel{responses: []*Response{partial("a", ""), partial("b", "")}}
	client, err := New(m, WithName("writer"), WithResource("gpu"))
	require.NoError(t, err)
	assert.Equal(t, "gpu", client.Info().ResourceName())

	e := engine.New()
	defer e.Close()
	require.NoError(t, e.Register(client))
	resp := e.Chat(context.Background(), engine.Payload{Callee: "writer", Arguments: call.NewArguments("x")})
	assert.Equal(t, "ab", resp.Output)
}

func TestClientAPIError(t *testing.T) {
	m := &mockModel{responses: []*Response{
		{Error: &ResponseError{Type: ErrorTypeAPIError, Message: "rate limited"}, Done: true},
	}}
	client, err := New(m, WithRetries(0))
	require.NoError(t, err)

	e := engine.New()
	defer e.Close()
	require.NoError(t, e.Register(client))
	resp := e.Chat(context.Background(), engine.Payload{Callee: "mock-llm", Arguments: call.NewArguments("x")})
	assert.Equal(t, call.StateFailed, resp.State)
	assert.Contains(t, resp.Error.Message, "rate limited")

	empty := e.Chat(context.Background(), engine.Payload{Callee: "mock-llm"})
	assert.True(t, call.IsType(empty.Err(), call.ErrorTypeValidation))
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(&namelessModel{})
	assert.Error(t, err)
}

type namelessModel struct{ mockModel }

func (namelessModel) Info() Info { return Info{} }

func TestMessagesFromArguments(t *testing.T) {
	msgs := MessagesFromArguments(call.Arguments{
		Messages: []call.Message{{Role: "robot", Content: "beep"}},
	})
	assert.Equal(t, []Message{NewUserMessage("beep")}, msgs)
}
