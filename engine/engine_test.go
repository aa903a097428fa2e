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

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
)

type fnCallable struct {
	info Info
	fn   func(ctx context.Context, c *Context) (any, error)
}

func (f *fnCallable) Info() Info { return f.info }

func (f *fnCallable) Invoke(ctx context.Context, c *Context) (any, error) {
	return f.fn(ctx, c)
}

func newFn(name string, category call.Category, fn func(ctx context.Context, c *Context) (any, error)) *fnCallable {
	return &fnCallable{info: Info{Name: name, Category: category, Retries: DefaultRetries}, fn: fn}
}

type upper struct {
	*fnCallable
}

func (u upper) Postprocess(_ context.Context, _ *Context, out any) (any, error) {
	return fmt.Sprintf("<%v>", out), nil
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	e := New(append([]Option{WithRetryBackoff(time.Millisecond)}, opts...)...)
	t.Cleanup(func() { e.Close() })
	return e
}

func nodesByCallee(t *testing.T, e *Engine, traceID string) map[string][]*node.Record {
	recs, err := e.Store().Nodes(context.Background(), traceID)
	require.NoError(t, err)
	out := make(map[string][]*node.Record)
	for _, r := range recs {
		out[r.Callee] = append(out[r.Callee], r)
	}
	return out
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEngine(t)
	ok := newFn("a", call.CategoryTool, nil)
	require.NoError(t, e.Register(ok))
	assert.True(t, call.IsType(e.Register(ok), call.ErrorTypeValidation))
	assert.True(t, call.IsType(e.Register(newFn("", call.CategoryTool, nil)), call.ErrorTypeValidation))
	assert.True(t, call.IsType(e.Register(newFn("b", "robot", nil)), call.ErrorTypeValidation))
	assert.True(t, call.IsType(e.Register(newFn(call.UserCaller, call.CategoryAgent, nil)), call.ErrorTypeValidation))
	assert.ElementsMatch(t, []string{"a"}, e.Names())
}

func TestSequentialCalls(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(
		newFn("clock", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			return "12:00", nil
		}),
		newFn("echo", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			return c.Request().Arguments.QueryText(), nil
		}),
		newFn("master", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			first := c.Call(ctx, "clock", call.NewArguments("now"))
			second := c.Call(ctx, "echo", call.NewArguments(first.Text()))
			return "time is " + second.Text(), second.Err()
		}),
	))

	resp := e.Chat(context.Background(), Payload{Callee: "master", Arguments: call.NewArguments("hi")})
	require.True(t, resp.OK(), "%v", resp.Error)
	assert.Equal(t, "time is 12:00", resp.Output)
	traceID := resp.Request.TraceID

	nodes := nodesByCallee(t, e, traceID)
	require.Len(t, nodes, 3)
	root, clock, echo := nodes["master"][0], nodes["clock"][0], nodes["echo"][0]
	assert.Equal(t, call.UserCaller, root.Caller)
	assert.Empty(t, root.FatherNodeID)
	assert.Equal(t, []string{"master"}, root.CallStack)

	assert.Equal(t, root.NodeID, clock.FatherNodeID)
	assert.Equal(t, []string{"master", "clock"}, clock.CallStack)
	assert.Equal(t, []string{root.NodeID, clock.NodeID}, clock.NodeIDStack)
	assert.Equal(t, []string{root.NodeID}, clock.PreNodeIDs)
	assert.Equal(t, 0, clock.Order)
	assert.Equal(t, "master#0/clock#0", clock.Path)

	assert.Equal(t, []string{clock.NodeID}, echo.PreNodeIDs)
	assert.Equal(t, 1, echo.Order)
	assert.Equal(t, "12:00", echo.Input.QueryText())
	assert.Equal(t, 1, echo.Extra[call.ExtraAttempts])

	tree, err := e.Tree(context.Background(), traceID)
	require.NoError(t, err)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "clock", tree.Children[0].Node.NodeName)
	assert.Equal(t, "echo", tree.Children[1].Node.NodeName)
}

func TestFanOut(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(
		newFn("square", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			n := c.Request().Arguments.Query.(int)
			time.Sleep(time.Duration(5-n) * time.Millisecond)
			return n * n, nil
		}),
		newFn("sum", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			total := 0
			for _, v := range c.Request().Arguments.Query.([]any) {
				total += v.(int)
			}
			return total, nil
		}),
		newFn("master", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			var calls []Call
			for i := 1; i <= 4; i++ {
				calls = append(calls, Call{Callee: "square", Arguments: call.NewArguments(i)})
			}
			resps := c.FanOut(ctx, calls)
			return c.Call(ctx, "sum", call.NewArguments(call.Outputs(resps))).Output, nil
		}),
	))

	resp := e.Chat(context.Background(), Payload{Callee: "master"})
	require.True(t, resp.OK(), "%v", resp.Error)
	assert.Equal(t, 30, resp.Output)

	nodes := nodesByCallee(t, e, resp.Request.TraceID)
	squares := nodes["square"]
	require.Len(t, squares, 4)
	pid := squares[0].ParallelID
	require.NotEmpty(t, pid)
	var ids []string
	orders := make(map[int]bool)
	for _, s := range squares {
		assert.Equal(t, pid, s.ParallelID)
		orders[s.Order] = true
		ids = append(ids, s.NodeID)
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true, 3: true}, orders)
	sum := nodes["sum"][0]
	assert.Equal(t, 4, sum.Order)
	assert.Empty(t, sum.ParallelID)
	assert.ElementsMatch(t, ids, sum.PreNodeIDs)

	tree, err := e.Tree(context.Background(), resp.Request.TraceID)
	require.NoError(t, err)
	require.Len(t, tree.Children, 2)
	require.True(t, tree.Children[0].IsGroup())
	assert.Len(t, tree.Children[0].Group, 4)
	assert.Equal(t, "sum", tree.Children[1].Node.NodeName)
}

func TestFailures(t *testing.T) {
	e := newTestEngine(t, WithRetries(0))
	require.NoError(t, e.Register(
		newFn("broken", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			return nil, errors.New("disk full")
		}),
		newFn("panicky", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			panic("boom")
		}),
		newFn("master", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			return []*call.Response{
				c.Call(ctx, "broken", call.Arguments{}),
				c.Call(ctx, "panicky", call.Arguments{}),
				c.Call(ctx, "missing", call.Arguments{}),
			}, nil
		}),
	))

	resp := e.Chat(context.Background(), Payload{Callee: "master"})
	require.True(t, resp.OK())
	resps := resp.Output.([]*call.Response)
	assert.Equal(t, call.StateFailed, resps[0].State)
	assert.True(t, call.IsType(resps[0].Err(), call.ErrorTypeExecution))
	assert.Contains(t, resps[0].Error.Message, "disk full")
	assert.Equal(t, call.StateFailed, resps[1].State)
	assert.Contains(t, resps[1].Error.Message, "panicked")
	assert.True(t, call.IsType(resps[2].Err(), call.ErrorTypeValidation))

	nodes := nodesByCallee(t, e, resp.Request.TraceID)
	assert.Equal(t, call.StateFailed, nodes["broken"][0].State)
	assert.Equal(t, call.StateFailed, nodes["panicky"][0].State)
	assert.NotContains(t, nodes, "missing")

	unknown := e.Chat(context.Background(), Payload{Callee: "nobody"})
	assert.True(t, call.IsType(unknown.Err(), call.ErrorTypeValidation))
	_, err := e.Start(context.Background(), Payload{})
	assert.True(t, call.IsType(err, call.ErrorTypeValidation))
}

func TestRetries(t *testing.T) {
	e := newTestEngine(t)
	var flaky, slow atomic.Int32
	require.NoError(t, e.Register(
		newFn("flaky", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			if flaky.Add(1) < 3 {
				return nil, call.NewError(call.ErrorTypeTransport, "connection reset")
			}
			return "ok", nil
		}),
		&fnCallable{
			info: Info{Name: "slow", Category: call.CategoryTool, Timeout: 10 * time.Millisecond, Retries: DefaultRetries},
			fn: func(ctx context.Context, c *Context) (any, error) {
				slow.Add(1)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
		newFn("master", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			return []*call.Response{
				c.Call(ctx, "flaky", call.NewArguments("x")),
				c.Call(ctx, "slow", call.NewArguments("x")),
				c.Call(ctx, "flaky", call.NewArguments("x"), WithCallRetries(0)),
			}, nil
		}),
	))

	resp := e.Chat(context.Background(), Payload{Callee: "master"})
	resps := resp.Output.([]*call.Response)
	require.True(t, resps[0].OK())
	assert.Equal(t, 3, resps[0].Extra[call.ExtraAttempts])
	assert.Equal(t, call.StateFailed, resps[1].State)
	assert.True(t, call.IsType(resps[1].Err(), call.ErrorTypeTimeout))
	assert.Equal(t, int32(1), slow.Load(), "timeouts are not retried")
	// The counter is past 3, so the call succeeds at once.
	assert.Equal(t, 1, resps[2].Extra[call.ExtraAttempts])

	nodes := nodesByCallee(t, e, resp.Request.TraceID)
	assert.Len(t, nodes["flaky"], 2, "retries stay on one node")
}

func TestTimeoutKeepsPermitUntilCalleeEnds(t *testing.T) {
	e := newTestEngine(t, WithPermits(map[string]int{"gpu": 1}), WithRetries(0))
	release := make(chan struct{})
	require.NoError(t, e.Register(
		&fnCallable{
			info: Info{Name: "stubborn", Category: call.CategoryModel, Resource: "gpu", Timeout: 10 * time.Millisecond},
			fn: func(ctx context.Context, c *Context) (any, error) {
				<-release
				return "late", nil
			},
		},
	))

	resp := e.Chat(context.Background(), Payload{Callee: "stubborn"})
	assert.True(t, call.IsType(resp.Err(), call.ErrorTypeTimeout))
	assert.Equal(t, 1, e.Limiter().InUse("gpu"))
	close(release)
	assert.Eventually(t, func() bool { return e.Limiter().InUse("gpu") == 0 }, time.Second, time.Millisecond)
}

func TestCancellation(t *testing.T) {
	e := newTestEngine(t)
	started := make(chan struct{})
	require.NoError(t, e.Register(
		newFn("waiter", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	resp := e.Chat(ctx, Payload{Callee: "waiter"})
	assert.Equal(t, call.StateCanceled, resp.State)
	assert.True(t, call.IsType(resp.Err(), call.ErrorTypeCancellation))
}

func TestTrustModeAndPostprocess(t *testing.T) {
	e := newTestEngine(t, WithRetries(0))
	errValue := errors.New("raw failure")
	require.NoError(t, e.Register(
		newFn("errval", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			return errValue, nil
		}),
		upper{newFn("shout", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			return "hey", nil
		})},
		newFn("strict", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			return []*call.Response{c.Call(ctx, "errval", call.Arguments{}), c.Call(ctx, "shout", call.Arguments{})}, nil
		}),
		&fnCallable{
			info: Info{Name: "trusting", Category: call.CategoryAgent, TrustMode: true},
			fn: func(ctx context.Context, c *Context) (any, error) {
				return []*call.Response{c.Call(ctx, "errval", call.Arguments{}), c.Call(ctx, "shout", call.Arguments{})}, nil
			},
		},
	))

	strict := e.Chat(context.Background(), Payload{Callee: "strict"}).Output.([]*call.Response)
	assert.Equal(t, call.StateFailed, strict[0].State)
	assert.ErrorIs(t, strict[0].Err(), errValue)
	assert.Equal(t, "<hey>", strict[1].Output)

	trusting := e.Chat(context.Background(), Payload{Callee: "trusting"}).Output.([]*call.Response)
	require.True(t, trusting[0].OK())
	assert.Same(t, errValue, trusting[0].Output)
	assert.Equal(t, "hey", trusting[1].Output)
}

func TestEventsOrder(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(
		newFn("clock", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			return "12:00", nil
		}),
		newFn("master", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			c.Think(ctx, "checking the clock")
			out := c.Call(ctx, "clock", call.Arguments{}).Text()
			c.Stream(ctx, "12")
			c.Answer(ctx, out)
			return out, nil
		}),
	))

	p := Payload{Callee: "master", TraceID: "trace-events"}
	events, err := e.Hub().Subscribe(context.Background(), p.TraceID)
	require.NoError(t, err)
	resp := e.Chat(context.Background(), p)
	require.True(t, resp.OK())

	var kinds []event.Kind
	var last *event.Event
	for ev := range events {
		kinds = append(kinds, ev.Kind)
		assert.Equal(t, p.TraceID, ev.TraceID)
		assert.NotEmpty(t, ev.NodeID)
		assert.NotEmpty(t, ev.CallStack)
		last = ev
	}
	assert.Equal(t, []event.Kind{
		event.KindToolCall, event.KindThink,
		event.KindToolCall, event.KindObservation,
		event.KindStream, event.KindAnswer,
		event.KindObservation, event.KindDone,
	}, kinds)
	assert.True(t, last.Final)
	assert.Equal(t, "12:00", last.Content)

	persisted, err := e.Store().Events(context.Background(), p.TraceID)
	require.NoError(t, err)
	var persistedKinds []event.Kind
	for _, ev := range persisted {
		persistedKinds = append(persistedKinds, ev.Kind)
	}
	assert.Equal(t, []event.Kind{event.KindThink, event.KindAnswer}, persistedKinds)
}

func TestAdmissionBound(t *testing.T) {
	const (
		permits = 2
		calls   = 12
	)
	e := newTestEngine(t, WithPermits(map[string]int{"llm": permits}))
	var inFlight, maxInFlight atomic.Int32
	require.NoError(t, e.Register(
		&fnCallable{
			info: Info{Name: "model", Category: call.CategoryModel, Resource: "llm", Retries: DefaultRetries},
			fn: func(ctx context.Context, c *Context) (any, error) {
				cur := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					old := maxInFlight.Load()
					if cur <= old || maxInFlight.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(3 * time.Millisecond)
				return "ok", nil
			},
		},
		newFn("master", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			batch := make([]Call, calls)
			for i := range batch {
				batch[i] = Call{Callee: "model"}
			}
			done := 0
			for _, r := range c.FanOut(ctx, batch) {
				if r.OK() {
					done++
				}
			}
			return done, nil
		}),
	))

	resp := e.Chat(context.Background(), Payload{Callee: "master"})
	assert.Equal(t, calls, resp.Output)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(permits))
}

func TestBatch(t *testing.T) {
	e := newTestEngine(t, WithEntry("echo"), WithBatchConcurrency(2))
	require.NoError(t, e.Register(
		newFn("echo", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			c.Global().Update("count", func(old any, ok bool) any {
				if !ok {
					return 1
				}
				return old.(int) + 1
			})
			return c.Request().Arguments.Query, nil
		}),
	))
	payloads := make([]Payload, 5)
	for i := range payloads {
		payloads[i] = Payload{Arguments: call.NewArguments(i)}
	}
	resps := e.Batch(context.Background(), payloads, true)
	require.Len(t, resps, 5)
	traceIDs := make(map[string]bool)
	for i, r := range resps {
		require.True(t, r.OK())
		assert.Equal(t, i, r.Output)
		id, _ := r.Extra[call.ExtraTraceID].(string)
		require.NotEmpty(t, id)
		traceIDs[id] = true
	}
	assert.Len(t, traceIDs, 5)

	count, _ := e.Global().Get("count")
	assert.Equal(t, 5, count)
	require.NoError(t, e.Close())
	assert.Equal(t, 0, e.Global().Len())
}

func TestGroupData(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(
		newFn("writer", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			c.Group().Set("seen", c.Request().Arguments.Query)
			c.Shared().Set("last", c.Request().Arguments.Query)
			return nil, nil
		}),
		newFn("reader", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			if c.Group() == nil {
				return "no group", nil
			}
			v, _ := c.Group().Get("seen")
			return v, nil
		}),
		newFn("master", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			c.Call(ctx, "writer", call.NewArguments("a"), WithGroup("left"))
			c.Call(ctx, "writer", call.NewArguments("b"), WithGroup("right"))
			last, _ := c.Shared().Get("last")
			return []any{
				c.Call(ctx, "reader", call.Arguments{}, WithGroup("left")).Output,
				c.Call(ctx, "reader", call.Arguments{}, WithGroup("right")).Output,
				c.Call(ctx, "reader", call.Arguments{}).Output,
				last,
			}, nil
		}),
	))
	resp := e.Chat(context.Background(), Payload{Callee: "master", SharedData: map[string]any{"last": "none"}})
	assert.Equal(t, []any{"a", "b", "no group", "b"}, resp.Output)
}

func TestReplayPlanOverride(t *testing.T) {
	e := newTestEngine(t)
	var invoked atomic.Int32
	require.NoError(t, e.Register(
		newFn("clock", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			invoked.Add(1)
			return "12:00", nil
		}),
		newFn("master", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			return "time is " + c.Call(ctx, "clock", call.Arguments{}).Text(), nil
		}),
	))
	plan := &ReplayPlan{
		ReferenceTraceID: "t0",
		Overrides:        map[string]Override{"master#0/clock#0": {NodeID: "old", Output: "13:00", Restart: true}},
	}
	resp := e.Chat(context.Background(), Payload{Callee: "master", FromTraceID: "t0", Replay: plan})
	assert.Equal(t, "time is 13:00", resp.Output)
	assert.Equal(t, int32(0), invoked.Load())

	nodes := nodesByCallee(t, e, resp.Request.TraceID)
	clock := nodes["clock"][0]
	assert.Equal(t, call.StateSkipped, clock.State)
	assert.Equal(t, "old", clock.Extra[call.ExtraReplayedFrom])
	assert.Equal(t, "t0", clock.FromTraceID)
	assert.Equal(t, "t0", nodes["master"][0].FromTraceID)
}

func TestStartCanceledWhenLastObserverLeaves(t *testing.T) {
	e := newTestEngine(t)
	started := make(chan struct{})
	require.NoError(t, e.Register(
		newFn("forever", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	))
	run, err := e.Start(context.Background(), Payload{Callee: "forever"})
	require.NoError(t, err)

	obsCtx, leave := context.WithCancel(context.Background())
	_, err = e.Hub().Subscribe(obsCtx, run.TraceID)
	require.NoError(t, err)
	<-started
	leave()

	resp, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, call.StateCanceled, resp.State)
}

func TestServeRemote(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(
		newFn("clock", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			return "12:00", nil
		}),
		newFn("time_agent", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			return c.Call(ctx, "clock", call.Arguments{}).Output, nil
		}),
	))
	rc := RemoteCall{
		Callee:       "time_agent",
		TraceID:      "t1",
		NodeID:       "n2",
		FatherNodeID: "n1",
		CallStack:    []string{"master", "time_proxy"},
		NodeIDStack:  []string{"n1", "n2"},
		Caller:       "master",
		Path:         "master#0/time_proxy#0",
	}
	resp := e.ServeRemote(context.Background(), rc)
	require.True(t, resp.OK(), "%v", resp.Error)
	assert.Equal(t, "12:00", resp.Output)
	assert.Equal(t, true, resp.Extra[call.ExtraRemote])

	nodes := nodesByCallee(t, e, "t1")
	require.Len(t, nodes, 1, "the served node is persisted by the caller")
	clock := nodes["clock"][0]
	assert.Equal(t, "n2", clock.FatherNodeID)
	assert.Equal(t, []string{"master", "time_proxy", "clock"}, clock.CallStack)
	assert.Equal(t, "master#0/time_proxy#0/clock#0", clock.Path)
	assert.Equal(t, "time_agent", clock.Caller)

	bad := e.ServeRemote(context.Background(), RemoteCall{Callee: "time_agent"})
	assert.True(t, call.IsType(bad.Err(), call.ErrorTypeValidation))
}

func TestRetriedFatherRenumbersChildren(t *testing.T) {
	e := newTestEngine(t)
	var runs atomic.Int32
	require.NoError(t, e.Register(
		newFn("clock", call.CategoryTool, func(ctx context.Context, c *Context) (any, error) {
			return "11:30", nil
		}),
		newFn("master", call.CategoryAgent, func(ctx context.Context, c *Context) (any, error) {
			c.Call(ctx, "clock", call.Arguments{})
			if runs.Add(1) == 1 {
				return nil, errors.New("flaky")
			}
			return "done", nil
		}),
	))

	resp := e.Chat(context.Background(), Payload{Callee: "master"})
	require.True(t, resp.OK(), "%v", resp.Error)
	assert.Equal(t, 2, resp.Extra[call.ExtraAttempts])

	clocks := nodesByCallee(t, e, resp.Request.TraceID)["clock"]
	require.Len(t, clocks, 2)
	attempts := map[int]*node.Record{}
	for _, r := range clocks {
		attempts[r.FatherAttempt] = r
		assert.Equal(t, "master#0/clock#0", r.Path)
		assert.Equal(t, []string{resp.Request.NodeID}, r.PreNodeIDs)
	}
	assert.Contains(t, attempts, 1)
	assert.Contains(t, attempts, 2)

	tree, err := e.Tree(context.Background(), resp.Request.TraceID)
	require.NoError(t, err)
	assert.Len(t, tree.Children, 2)
}
