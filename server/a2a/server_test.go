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

package a2a

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"
	"trpc.group/trpc-go/trpc-callgraph-go/agent"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	ia2a "trpc.group/trpc-go/trpc-callgraph-go/internal/a2a"
	"trpc.group/trpc-go/trpc-callgraph-go/tool"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(engine.WithEntry("time_agent"))
	t.Cleanup(func() { e.Close() })
	clock, err := tool.New("get_current_time", func(context.Context, call.Arguments) (any, error) {
		return "11:30", nil
	}, tool.WithDescription("reads the clock"))
	require.NoError(t, err)
	timeAgent, err := agent.New("time_agent", func(ctx context.Context, c *engine.Context) (any, error) {
		r := c.Call(ctx, "get_current_time", call.Arguments{})
		if !r.OK() {
			return nil, r.Err()
		}
		return c.Request().Arguments.QueryText() + ": " + r.Text(), nil
	})
	require.NoError(t, err)
	require.NoError(t, e.Register(clock, timeAgent))
	return e
}

func TestNew(t *testing.T) {
	_, err := New(nil, WithHost("localhost:8080"))
	assert.Error(t, err)

	e := newEngine(t)
	_, err = New(e)
	assert.Error(t, err)

	srv, err := New(e, WithHost("localhost:8080"), WithName("clock"))
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestAgentCard(t *testing.T) {
	e := newEngine(t)
	card := buildAgentCard(e, &options{host: "localhost:8080", name: "clock"})
	assert.Equal(t, "clock", card.Name)
	assert.Equal(t, "http://localhost:8080", card.URL)
	require.Len(t, card.Skills, 2)
	byName := make(map[string]string)
	for _, s := range card.Skills {
		byName[s.Name] = s.Tags[0]
	}
	assert.Equal(t, "tool", byName["get_current_time"])
	assert.Equal(t, "agent", byName["time_agent"])
}

func TestProcessRemoteCall(t *testing.T) {
	e := newEngine(t)
	p := &messageProcessor{engine: e}

	rc := engine.RemoteCall{
		Callee:      "time_agent",
		Arguments:   call.NewArguments("now"),
		TraceID:     "t1",
		NodeID:      "n2",
		CallStack:   []string{"master", "time_agent"},
		NodeIDStack: []string{"n1", "n2"},
		Caller:      "master",
		Path:        "master#0/time_agent#0",
	}
	result, err := p.ProcessMessage(context.Background(), ia2a.EncodeCall(rc), taskmanager.ProcessOptions{}, nil)
	require.NoError(t, err)
	resp, err := ia2a.DecodeResult(result.Result)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "now: 11:30", resp.Output)

	recs, err := e.Store().Nodes(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "n2", recs[0].FatherNodeID)
	assert.Equal(t, "master#0/time_agent#0/get_current_time#0", recs[0].Path)
}

func TestProcessPlainMessage(t *testing.T) {
	p := &messageProcessor{engine: newEngine(t)}

	msg := protocol.NewMessage(protocol.MessageRoleUser, []protocol.Part{protocol.NewTextPart("what time is it")})
	result, err := p.ProcessMessage(context.Background(), msg, taskmanager.ProcessOptions{}, nil)
	require.NoError(t, err)
	resp, err := ia2a.DecodeResult(result.Result)
	require.NoError(t, err)
	assert.Equal(t, "what time is it: 11:30", resp.Output)

	bad := protocol.NewMessage(protocol.MessageRoleUser, nil)
	bad.Metadata = map[string]any{ia2a.MetadataKey: "not a call"}
	_, err = p.ProcessMessage(context.Background(), bad, taskmanager.ProcessOptions{}, nil)
	assert.Error(t, err)
}
