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

package node

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
)

// sampleTrace is master -> [plan, {search#1, search#2}, summarize], where
// search#1 calls fetch. Create times of concurrent branches are skewed on
// purpose.
func sampleTrace() []*Record {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }
	return []*Record{
		{NodeID: "root", TraceID: "t", Callee: "master", CalleeCategory: call.CategoryAgent, CreateTime: at(0)},
		{NodeID: "plan", FatherNodeID: "root", TraceID: "t", Callee: "plan", Order: 0,
			PreNodeIDs: []string{"root"}, CreateTime: at(1)},
		{NodeID: "s2", FatherNodeID: "root", TraceID: "t", Callee: "search", Order: 2, ParallelID: "p1",
			PreNodeIDs: []string{"plan"}, CreateTime: at(2)},
		{NodeID: "s1", FatherNodeID: "root", TraceID: "t", Callee: "search", Order: 1, ParallelID: "p1",
			PreNodeIDs: []string{"plan"}, CreateTime: at(2)},
		{NodeID: "fetch", FatherNodeID: "s1", TraceID: "t", Callee: "fetch", Order: 0,
			PreNodeIDs: []string{"s1"}, CreateTime: at(3)},
		{NodeID: "sum", FatherNodeID: "root", TraceID: "t", Callee: "summarize", Order: 3,
			PreNodeIDs: []string{"s1", "s2", "gone"}, CreateTime: at(5)},
	}
}

func childIDs(t *Tree) []any {
	var out []any
	for _, c := range t.Children {
		if c.IsGroup() {
			var g []string
			for _, n := range c.Group {
				g = append(g, n.NodeID)
			}
			out = append(out, g)
			continue
		}
		out = append(out, c.Node.NodeID)
	}
	return out
}

func TestBuildTree(t *testing.T) {
	tree, err := BuildTree(sampleTrace())
	require.NoError(t, err)
	assert.Equal(t, "root", tree.NodeID)
	assert.Equal(t, "master", tree.NodeName)
	assert.Equal(t, call.CategoryAgent, tree.NodeType)
	assert.Equal(t, []any{"plan", []string{"s1", "s2"}, "sum"}, childIDs(tree))

	s1 := tree.Children[1].Group[0]
	assert.Equal(t, []any{"fetch"}, childIDs(s1))

	b, err := json.Marshal(tree)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	children := decoded["children"].([]any)
	require.Len(t, children, 3)
	_, isList := children[1].([]any)
	assert.True(t, isList, "parallel group must render as a list")
}

func TestIndexLinks(t *testing.T) {
	idx, err := NewIndex(sampleTrace())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, idx.PostNodeIDs["plan"])
	assert.Equal(t, []string{"fetch", "sum"}, idx.PostNodeIDs["s1"])
	assert.NotContains(t, idx.PostNodeIDs, "gone")
	assert.Equal(t, []string{"plan", "s1", "s2", "sum"}, idx.ChildNodeIDs["root"])

	anc := idx.Ancestors("fetch")
	require.Len(t, anc, 2)
	assert.Equal(t, "root", anc[0].NodeID)
	assert.Equal(t, "s1", anc[1].NodeID)
	assert.Empty(t, idx.Ancestors("root"))
}

func TestBuildTreeDeterministicOverPermutations(t *testing.T) {
	want, err := BuildTree(sampleTrace())
	require.NoError(t, err)
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		recs := sampleTrace()
		rng.Shuffle(len(recs), func(a, b int) { recs[a], recs[b] = recs[b], recs[a] })
		got, err := BuildTree(recs)
		require.NoError(t, err)
		gotJSON, err := json.Marshal(got)
		require.NoError(t, err)
		require.JSONEq(t, string(wantJSON), string(gotJSON), "permutation %d", i)
	}
}

func TestBuildTreeSingleParentAndContiguity(t *testing.T) {
	tree, err := BuildTree(sampleTrace())
	require.NoError(t, err)

	parents := make(map[string]int)
	tree.Walk(func(parent, n *Tree) {
		if parent != nil {
			parents[n.NodeID]++
		}
	})
	assert.Len(t, parents, len(sampleTrace())-1)
	for id, n := range parents {
		assert.Equal(t, 1, n, "node %s", id)
	}

	recs := make(map[string]*Record)
	for _, r := range sampleTrace() {
		recs[r.NodeID] = r
	}
	tree.Walk(func(_, n *Tree) {
		seen := make(map[string]bool)
		for _, c := range n.Children {
			if !c.IsGroup() {
				assert.Empty(t, recs[c.Node.NodeID].ParallelID)
				continue
			}
			pid := recs[c.Group[0].NodeID].ParallelID
			assert.False(t, seen[pid], "group %s split", pid)
			seen[pid] = true
			for i, g := range c.Group {
				assert.Equal(t, pid, recs[g.NodeID].ParallelID)
				if i > 0 {
					assert.Less(t, recs[c.Group[i-1].NodeID].Order, recs[g.NodeID].Order)
				}
			}
		}
	})
}

func TestBuildTreeRoots(t *testing.T) {
	recs := sampleTrace()[1:]
	_, err := BuildTree(recs)
	assert.ErrorIs(t, err, ErrNoRoot)
	assert.True(t, call.IsType(err, call.ErrorTypeReconstruction))

	recs = append(sampleTrace(), &Record{NodeID: "other", TraceID: "t"})
	_, err = BuildTree(recs)
	assert.ErrorIs(t, err, ErrMultipleRoots)
}

func TestBuildTreeRejectsUnreachableAndDuplicateNodes(t *testing.T) {
	recs := append(sampleTrace(), &Record{NodeID: "o", FatherNodeID: "missing", TraceID: "t", Callee: "lost"})
	_, err := BuildTree(recs)
	assert.ErrorIs(t, err, ErrOrphanNode)
	assert.True(t, call.IsType(err, call.ErrorTypeReconstruction))
	assert.Contains(t, err.Error(), "o (father missing)")

	recs = append(sampleTrace(),
		&Record{NodeID: "c1", FatherNodeID: "c2", TraceID: "t", Callee: "x"},
		&Record{NodeID: "c2", FatherNodeID: "c1", TraceID: "t", Callee: "y"},
	)
	_, err = BuildTree(recs)
	assert.ErrorIs(t, err, ErrOrphanNode)

	recs = append(sampleTrace(), &Record{NodeID: "plan", FatherNodeID: "root", TraceID: "t", Callee: "plan"})
	_, err = BuildTree(recs)
	assert.ErrorIs(t, err, ErrDuplicateNode)
	assert.True(t, call.IsType(err, call.ErrorTypeReconstruction))
}

func TestSuperseded(t *testing.T) {
	// master ran twice: "old" and its child belong to the first attempt.
	recs := []*Record{
		{NodeID: "root", TraceID: "t", Callee: "master", Extra: map[string]any{call.ExtraAttempts: float64(2)}},
		{NodeID: "old", FatherNodeID: "root", TraceID: "t", Callee: "time", FatherAttempt: 1,
			Extra: map[string]any{call.ExtraAttempts: 1}},
		{NodeID: "old-clock", FatherNodeID: "old", TraceID: "t", Callee: "clock", FatherAttempt: 1},
		{NodeID: "new", FatherNodeID: "root", TraceID: "t", Callee: "time", FatherAttempt: 2,
			Extra: map[string]any{call.ExtraAttempts: 1}},
		{NodeID: "new-clock", FatherNodeID: "new", TraceID: "t", Callee: "clock", FatherAttempt: 1},
		{NodeID: "legacy", FatherNodeID: "root", TraceID: "t", Callee: "misc"},
	}
	idx, err := NewIndex(recs)
	require.NoError(t, err)
	assert.True(t, idx.Superseded("old"))
	assert.True(t, idx.Superseded("old-clock"))
	assert.False(t, idx.Superseded("new"))
	assert.False(t, idx.Superseded("new-clock"))
	assert.False(t, idx.Superseded("legacy"))
	assert.False(t, idx.Superseded("root"))

	tree, err := idx.Tree()
	require.NoError(t, err)
	var n int
	tree.Walk(func(_, _ *Tree) { n++ })
	assert.Equal(t, len(recs), n)
}

func TestFromCall(t *testing.T) {
	req := &call.Request{
		NodeID:        "n2",
		TraceID:       "t",
		CallStack:     []string{"a", "b"},
		NodeIDStack:   []string{"n1", "n2"},
		Callee:        "b",
		Arguments:     call.NewArguments("q"),
		PreNodeIDs:    []string{"n1"},
		FatherAttempt: 2,
	}
	resp := call.NewResponse(req, "out")
	resp.SetExtra(call.ExtraAttempts, 2)

	rec := FromCall(req, resp)
	assert.Equal(t, "out", rec.Output)
	assert.Equal(t, call.StateCompleted, rec.State)
	assert.Equal(t, 2, rec.Extra[call.ExtraAttempts])
	assert.Equal(t, 2, rec.Attempts())
	assert.Equal(t, 2, rec.FatherAttempt)

	req.CallStack[0] = "changed"
	resp.Extra[call.ExtraAttempts] = 3
	assert.Equal(t, "a", rec.CallStack[0])
	assert.Equal(t, 2, rec.Extra[call.ExtraAttempts])
}
