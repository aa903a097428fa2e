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

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-callgraph-go/agent"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
	"trpc.group/trpc-go/trpc-callgraph-go/node/inmemory"
	"trpc.group/trpc-go/trpc-callgraph-go/tool"
)

// peerHandler serves the remote entry point of e and answers 503 to the
// first failures requests.
func peerHandler(e *engine.Engine, failures int32) http.Handler {
	var seen atomic.Int32
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != CallRoute || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if seen.Add(1) <= failures {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		var rc engine.RemoteCall
		if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(e.ServeRemote(r.Context(), rc))
	})
}

func newPeer(t *testing.T, store node.Store, failures int32, fail bool) (*engine.Engine, *httptest.Server) {
	t.Helper()
	peer := engine.New(engine.WithStore(store))
	t.Cleanup(func() { peer.Close() })
	clock, err := tool.New("get_current_time", func(context.Context, call.Arguments) (any, error) {
		return "11:30", nil
	})
	require.NoError(t, err)
	timeAgent, err := agent.New("time_agent", func(ctx context.Context, c *engine.Context) (any, error) {
		if fail {
			return nil, errors.New("boom")
		}
		r := c.Call(ctx, "get_current_time", call.Arguments{})
		if !r.OK() {
			return nil, r.Err()
		}
		return "it is " + r.Text(), nil
	})
	require.NoError(t, err)
	require.NoError(t, peer.Register(clock, timeAgent))
	srv := httptest.NewServer(peerHandler(peer, failures))
	t.Cleanup(srv.Close)
	return peer, srv
}

func newCaller(t *testing.T, store node.Store, proxy engine.Callable) *engine.Engine {
	t.Helper()
	e := engine.New(engine.WithStore(store), engine.WithRetryBackoff(time.Millisecond))
	t.Cleanup(func() { e.Close() })
	master, err := agent.New("master_agent", func(ctx context.Context, c *engine.Context) (any, error) {
		r := c.Call(ctx, proxy.Info().Name, call.NewArguments("what time is it"))
		if !r.OK() {
			return nil, r.Err()
		}
		return r.Output, nil
	}, agent.WithRetries(0))
	require.NoError(t, err)
	require.NoError(t, e.Register(proxy, master))
	return e
}

func byCallee(t *testing.T, store node.Store, traceID string) map[string]*node.Record {
	recs, err := store.Nodes(context.Background(), traceID)
	require.NoError(t, err)
	out := make(map[string]*node.Record)
	for _, r := range recs {
		out[r.Callee] = r
	}
	return out
}

func TestNewValidation(t *testing.T) {
	_, err := New("", "http://peer")
	assert.Error(t, err)
	_, err = New("a", "")
	assert.Error(t, err)
	_, err = New("a", "peer", WithCategory(call.CategoryUser))
	assert.Error(t, err)

	a, err := New("time_agent", "peer:8080", WithPeerCallee("clock_agent"), WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "http://peer:8080/v1/remote/call", a.url)
	assert.Equal(t, "clock_agent", a.peer)
	assert.Equal(t, call.CategoryAgent, a.Info().Category)
	assert.Equal(t, engine.DefaultRetries, a.Info().Retries)
	assert.Equal(t, time.Second, a.Info().Timeout)
}

func TestAgentRemoteSubtree(t *testing.T) {
	store := inmemory.NewStore()
	_, srv := newPeer(t, store, 0, false)
	proxy, err := New("time_agent", srv.URL)
	require.NoError(t, err)
	e := newCaller(t, store, proxy)

	resp := e.Chat(context.Background(), engine.Payload{
		Callee:    "master_agent",
		TraceID:   "t1",
		Arguments: call.NewArguments("hello"),
	})
	require.True(t, resp.OK(), "%v", resp.Error)
	assert.Equal(t, "it is 11:30", resp.Output)

	nodes := byCallee(t, store, "t1")
	require.Len(t, nodes, 3)
	master, proxyNode, clock := nodes["master_agent"], nodes["time_agent"], nodes["get_current_time"]
	assert.Equal(t, master.NodeID, proxyNode.FatherNodeID)
	assert.Equal(t, proxyNode.NodeID, clock.FatherNodeID)
	assert.Equal(t, "master_agent#0/time_agent#0/get_current_time#0", clock.Path)
	assert.Equal(t, []string{"master_agent", "time_agent", "get_current_time"}, clock.CallStack)
	assert.Equal(t, []string{master.NodeID, proxyNode.NodeID, clock.NodeID}, clock.NodeIDStack)
	assert.Equal(t, "time_agent", clock.Caller)

	tree, err := e.Tree(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	sub := tree.Children[0].Node
	assert.Equal(t, "time_agent", sub.NodeName)
	require.Len(t, sub.Children, 1)
	assert.Equal(t, "get_current_time", sub.Children[0].Node.NodeName)
}

func TestAgentRetriesTransportFailures(t *testing.T) {
	store := inmemory.NewStore()
	_, srv := newPeer(t, store, 1, false)
	proxy, err := New("time_agent", srv.URL)
	require.NoError(t, err)
	e := newCaller(t, store, proxy)

	resp := e.Chat(context.Background(), engine.Payload{Callee: "master_agent", TraceID: "t1"})
	require.True(t, resp.OK(), "%v", resp.Error)
	assert.Equal(t, 2, byCallee(t, store, "t1")["time_agent"].Extra[call.ExtraAttempts])
}

func TestAgentPeerFailure(t *testing.T) {
	store := inmemory.NewStore()
	_, srv := newPeer(t, store, 0, true)
	proxy, err := New("time_agent", srv.URL, WithRetries(0))
	require.NoError(t, err)
	e := newCaller(t, store, proxy)

	resp := e.Chat(context.Background(), engine.Payload{Callee: "master_agent", TraceID: "t1"})
	require.False(t, resp.OK())
	assert.True(t, call.IsType(resp.Err(), call.ErrorTypeExecution))
	assert.Contains(t, resp.Err().Error(), "boom")
	rec := byCallee(t, store, "t1")["time_agent"]
	assert.Equal(t, call.StateFailed, rec.State)
}

func TestAgentUnreachablePeer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := inmemory.NewStore()
	proxy, err := New("time_agent", url, WithRetries(0))
	require.NoError(t, err)
	e := newCaller(t, store, proxy)

	resp := e.Chat(context.Background(), engine.Payload{Callee: "master_agent", TraceID: "t1"})
	require.False(t, resp.OK())
	assert.True(t, call.IsType(resp.Err(), call.ErrorTypeTransport))
	assert.Equal(t, call.ErrorTypeTransport, byCallee(t, store, "t1")["time_agent"].Error.Type)
}

func TestAgentNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	store := inmemory.NewStore()
	proxy, err := New("time_agent", srv.URL, WithRetries(0), WithHeader("X-Token", "secret"))
	require.NoError(t, err)
	e := newCaller(t, store, proxy)

	resp := e.Chat(context.Background(), engine.Payload{Callee: "master_agent", TraceID: "t1"})
	require.False(t, resp.OK())
	assert.True(t, call.IsType(resp.Err(), call.ErrorTypeTransport))
	assert.Contains(t, resp.Err().Error(), "403")
	assert.Contains(t, resp.Err().Error(), "nope")
}

func TestA2AAgentUnreachablePeer(t *testing.T) {
	_, err := NewA2A("", "peer")
	assert.Error(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	proxy, err := NewA2A("time_agent", url, WithRetries(0))
	require.NoError(t, err)
	assert.Equal(t, call.CategoryAgent, proxy.Info().Category)
	e := newCaller(t, inmemory.NewStore(), proxy)

	resp := e.Chat(context.Background(), engine.Payload{Callee: "master_agent", TraceID: "t1"})
	require.False(t, resp.OK())
	assert.True(t, call.IsType(resp.Err(), call.ErrorTypeTransport))
}
