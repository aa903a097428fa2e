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
	"sync"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
)

// traceState is the bookkeeping of one running trace in this process.
type traceState struct {
	id     string
	fromID string
	shared *call.Data
	plan   *ReplayPlan

	mu     sync.Mutex
	groups map[string]*call.Data
	// orders holds the next sibling order per father attempt.
	orders map[fatherAttempt]int
	// frontier holds, per father attempt, the nodes the next child follows.
	frontier map[fatherAttempt][]string
}

// fatherAttempt keys sibling bookkeeping. Each attempt of a father numbers
// its children from zero, so a retried node dispatches the same paths.
type fatherAttempt struct {
	nodeID  string
	attempt int
}

func newTraceState(id, fromID string, shared map[string]any, plan *ReplayPlan) *traceState {
	return &traceState{
		id:       id,
		fromID:   fromID,
		shared:   call.NewData(shared),
		plan:     plan,
		groups:   make(map[string]*call.Data),
		orders:   make(map[fatherAttempt]int),
		frontier: make(map[fatherAttempt][]string),
	}
}

// group returns the data of the namespace name, creating it.
func (t *traceState) group(name string) *call.Data {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.groups[name]
	if !ok {
		d = call.NewData(nil)
		t.groups[name] = d
	}
	return d
}

// allocate reserves n consecutive orders under the given attempt of father
// and returns them with the predecessors of the new children.
func (t *traceState) allocate(father string, attempt, n int) ([]int, []string) {
	key := fatherAttempt{nodeID: father, attempt: attempt}
	t.mu.Lock()
	defer t.mu.Unlock()
	orders := make([]int, n)
	for i := range orders {
		orders[i] = t.orders[key]
		t.orders[key]++
	}
	pre, ok := t.frontier[key]
	if !ok {
		pre = []string{father}
	}
	return orders, append([]string(nil), pre...)
}

// advance records the nodes that completed last under the given attempt
// of father.
func (t *traceState) advance(father string, attempt int, ids []string) {
	if len(ids) == 0 {
		return
	}
	t.mu.Lock()
	t.frontier[fatherAttempt{nodeID: father, attempt: attempt}] = append([]string(nil), ids...)
	t.mu.Unlock()
}
