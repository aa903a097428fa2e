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

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-callgraph-go/agent"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
	"trpc.group/trpc-go/trpc-callgraph-go/tool"
)

type fixture struct {
	srv    *httptest.Server
	engine *engine.Engine
	clocks atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{engine: engine.New()}
	t.Cleanup(func() { f.engine.Close() })

	echo, err := agent.New("echo", func(ctx context.Context, c *engine.Context) (any, error) {
		q := c.Request().Arguments.QueryText()
		c.Answer(ctx, q)
		return q, nil
	})
	require.NoError(t, err)
	clock, err := tool.New("clock", func(context.Context, call.Arguments) (any, error) {
		f.clocks.Add(1)
		return "11:30", nil
	})
	require.NoError(t, err)
	master, err := agent.New("master", func(ctx context.Context, c *engine.Context) (any, error) {
		r := c.Call(ctx, "clock", call.Arguments{})
		if !r.OK() {
			return nil, r.Err()
		}
		return "time is " + r.Text(), nil
	})
	require.NoError(t, err)
	require.NoError(t, f.engine.Register(echo, clock, master))

	f.srv = httptest.NewServer(New(f.engine).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) post(t *testing.T, route string, body any) (*http.Response, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.srv.URL+route, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (f *fixture) get(t *testing.T, route string, v any) int {
	t.Helper()
	resp, err := http.Get(f.srv.URL + route)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestChat(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, RouteChat, map[string]any{
		"callee":    "echo",
		"arguments": map[string]any{"query": "hi"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out CallResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, call.StateCompleted, out.State)
	assert.Equal(t, "hi", out.Output)
	require.NotEmpty(t, out.TraceID)

	var recs []*node.Record
	require.Equal(t, http.StatusOK, f.get(t, "/v1/traces/"+out.TraceID+"/nodes", &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "echo", recs[0].Callee)
	assert.Equal(t, call.UserCaller, recs[0].Caller)

	var tree map[string]any
	require.Equal(t, http.StatusOK, f.get(t, "/v1/traces/"+out.TraceID+"/tree", &tree))
	assert.Equal(t, "echo", tree["node_name"])

	var evs []map[string]any
	require.Equal(t, http.StatusOK, f.get(t, "/v1/traces/"+out.TraceID+"/events", &evs))
	require.Len(t, evs, 1)
	assert.Equal(t, "answer", evs[0]["kind"])
}

func TestChatFailures(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, RouteChat, map[string]any{"callee": "missing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out CallResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, call.StateFailed, out.State)
	require.NotNil(t, out.Error)
	assert.Equal(t, call.ErrorTypeValidation, out.Error.Type)

	raw, err := http.Post(f.srv.URL+RouteChat, "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	resp, _ = f.post(t, RouteChat, map[string]any{"callee": "missing", "stream": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/v1/traces/nope/nodes", nil))
	assert.Equal(t, http.StatusNotFound, f.get(t, "/v1/traces/nope/tree", nil))
}

func TestChatStream(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, RouteChat, map[string]any{
		"callee":    "master",
		"trace_id":  "t-stream",
		"stream":    true,
		"arguments": map[string]any{"query": "what time is it"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out CallResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "t-stream", out.TraceID)

	stream, err := http.Get(f.srv.URL + "/v1/traces/t-stream/stream")
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	var kinds []string
	var last map[string]any
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if k, ok := strings.CutPrefix(line, "event: "); ok {
			kinds = append(kinds, k)
		}
		if d, ok := strings.CutPrefix(line, "data: "); ok {
			last = nil
			require.NoError(t, json.Unmarshal([]byte(d), &last))
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"tool_call", "tool_call", "observation", "observation", "done"}, kinds)
	assert.Equal(t, "time is 11:30", last["content"])
}

func TestBatch(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, RouteBatch, BatchRequest{
		Payloads: []engine.Payload{
			{Callee: "echo", Arguments: call.NewArguments("a")},
			{Callee: "echo", Arguments: call.NewArguments("b")},
		},
		ReturnTraceID: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out []CallResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Output)
	assert.Equal(t, "b", out[1].Output)
	assert.NotEmpty(t, out[0].TraceID)
	assert.NotEqual(t, out[0].TraceID, out[1].TraceID)
}

func TestReplay(t *testing.T) {
	f := newFixture(t)

	_, body := f.post(t, RouteChat, map[string]any{"callee": "master"})
	var first CallResponse
	require.NoError(t, json.Unmarshal(body, &first))
	require.Equal(t, "time is 11:30", first.Output)

	var recs []*node.Record
	f.get(t, "/v1/traces/"+first.TraceID+"/nodes", &recs)
	var clockID string
	for _, r := range recs {
		if r.Callee == "clock" {
			clockID = r.NodeID
		}
	}
	require.NotEmpty(t, clockID)

	resp, body := f.post(t, RouteReplay, map[string]any{
		"reference_trace_id":  first.TraceID,
		"restart_node_id":     clockID,
		"restart_node_output": "12:45",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var replayed CallResponse
	require.NoError(t, json.Unmarshal(body, &replayed))
	assert.Equal(t, "time is 12:45", replayed.Output)
	assert.NotEqual(t, first.TraceID, replayed.TraceID)
	assert.Equal(t, int32(1), f.clocks.Load())

	resp, _ = f.post(t, RouteReplay, map[string]any{
		"reference_trace_id": "nope",
		"restart_node_id":    "n1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoteCall(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, RouteRemoteCall, engine.RemoteCall{
		Callee:      "master",
		TraceID:     "t1",
		NodeID:      "n2",
		CallStack:   []string{"root", "master"},
		NodeIDStack: []string{"n1", "n2"},
		Caller:      "root",
		Path:        "root#0/master#0",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out call.Response
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, call.StateCompleted, out.State)
	assert.Equal(t, "time is 11:30", out.Output)
	assert.Equal(t, true, out.Extra[call.ExtraRemote])

	var recs []*node.Record
	require.Equal(t, http.StatusOK, f.get(t, "/v1/traces/t1/nodes", &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "n2", recs[0].FatherNodeID)
	assert.Equal(t, "root#0/master#0/clock#0", recs[0].Path)

	_, body = f.post(t, RouteRemoteCall, engine.RemoteCall{Callee: "master"})
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, call.StateFailed, out.State)
	assert.Equal(t, call.ErrorTypeValidation, out.Error.Type)
}
