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

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
)

func TestStoreNodes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	defer s.Close()

	require.NoError(t, s.AppendNode(ctx, &node.Record{NodeID: "a", TraceID: "t1"}))
	require.NoError(t, s.AppendNode(ctx, &node.Record{NodeID: "b", TraceID: "t1", FatherNodeID: "a"}))
	require.NoError(t, s.AppendNode(ctx, &node.Record{NodeID: "c", TraceID: "t2"}))

	err := s.AppendNode(ctx, &node.Record{NodeID: "a", TraceID: "t1", Output: "changed"})
	assert.ErrorIs(t, err, node.ErrNodeExists)
	assert.Error(t, s.AppendNode(ctx, &node.Record{TraceID: "t1"}))

	recs, err := s.Nodes(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Nil(t, recs[0].Output)

	// Returned records are copies.
	recs[0].Output = "mutated"
	again, _ := s.Nodes(ctx, "t1")
	assert.Nil(t, again[0].Output)

	none, err := s.Nodes(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.ElementsMatch(t, []string{"t1", "t2"}, s.Traces())
}

func TestStoreEvents(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, text := range []string{"first", "second"} {
		require.NoError(t, s.AppendEvent(ctx, event.New("t1", event.KindThink, text)))
	}
	evs, err := s.Events(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "first", evs[0].Content)
	assert.Equal(t, "second", evs[1].Content)
}
