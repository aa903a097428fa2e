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

package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestChild(t *testing.T) {
	shared := NewData(nil)
	root := &Request{
		NodeID:         "n1",
		TraceID:        "t1",
		CallStack:      []string{"master"},
		NodeIDStack:    []string{"n1"},
		Caller:         UserCaller,
		Callee:         "master",
		CalleeCategory: CategoryAgent,
		SharedData:     shared,
		Path:           PathSegment("master", 0),
	}

	child := root.Child("n2", "clock", CategoryTool, NewArguments("now"), 3)

	assert.Equal(t, "n1", child.FatherNodeID)
	assert.Equal(t, "t1", child.TraceID)
	assert.Equal(t, []string{"master", "clock"}, child.CallStack)
	assert.Equal(t, []string{"n1", "n2"}, child.NodeIDStack)
	assert.Equal(t, "master", child.Caller)
	assert.Equal(t, CategoryAgent, child.CallerCategory)
	assert.Equal(t, "master#0/clock#3", child.Path)
	assert.Same(t, shared, child.SharedData)
	assert.False(t, child.IsRoot())
	assert.True(t, root.IsRoot())

	// Stacks must not alias the parent's backing arrays.
	child.CallStack[0] = "changed"
	assert.Equal(t, "master", root.CallStack[0])
}

func TestPathPrefix(t *testing.T) {
	assert.True(t, HasPathPrefix("a#0/b#1", "a#0"))
	assert.True(t, HasPathPrefix("a#0", "a#0"))
	assert.False(t, HasPathPrefix("a#01", "a#0"))
	assert.True(t, HasPathPrefix("a#0", ""))
}

func TestDataConcurrentUpdate(t *testing.T) {
	d := NewData(map[string]any{"n": 0})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Update("n", func(old any, _ bool) any { return old.(int) + 1 })
		}()
	}
	wg.Wait()
	v, ok := d.Get("n")
	require.True(t, ok)
	assert.Equal(t, 100, v)

	snap := d.Snapshot()
	snap["n"] = -1
	v, _ = d.Get("n")
	assert.Equal(t, 100, v)

	d.Clear()
	assert.Equal(t, 0, d.Len())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"plain", errors.New("boom"), ErrorTypeExecution},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ErrorTypeTimeout},
		{"canceled", context.Canceled, ErrorTypeCancellation},
		{"classified", NewError(ErrorTypeTransport, "down"), ErrorTypeTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err).Type)
		})
	}
	assert.Nil(t, Classify(nil))
	assert.True(t, NewError(ErrorTypeTransport, "x").Retryable())
	assert.False(t, NewError(ErrorTypeTimeout, "x").Retryable())
}

func TestResponseHelpers(t *testing.T) {
	ok := NewResponse(nil, map[string]int{"a": 1})
	assert.True(t, ok.OK())
	assert.NoError(t, ok.Err())
	assert.Equal(t, `{"a":1}`, ok.Text())

	canceled := NewFailedResponse(nil, context.Canceled)
	assert.Equal(t, StateCanceled, canceled.State)
	assert.True(t, IsType(canceled.Err(), ErrorTypeCancellation))

	failed := NewFailedResponse(nil, errors.New("bad"))
	assert.Equal(t, StateFailed, failed.State)
	assert.Equal(t, []any{map[string]int{"a": 1}, nil}, Outputs([]*Response{ok, failed}))
}

func TestArgumentsClone(t *testing.T) {
	a := Arguments{Query: "q", Messages: []Message{{Role: RoleUser, Content: "hi"}}}
	b := a.With("k", 1)
	b.Messages[0].Content = "changed"
	_, found := a.Get("k")
	assert.False(t, found)
	assert.Equal(t, "hi", a.Messages[0].Content)
	assert.Equal(t, "q", b.QueryText())
	assert.Equal(t, `{"x":1}`, NewArguments(map[string]int{"x": 1}).QueryText())
}
