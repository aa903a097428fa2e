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

// Package inmemory provides an in-memory node store.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"trpc.group/trpc-go/trpc-callgraph-go/event"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
)

var _ node.Store = (*Store)(nil)

// traceRecords holds the records and persisted events of one trace.
type traceRecords struct {
	mu     sync.RWMutex
	ids    map[string]struct{}
	nodes  []*node.Record
	events []*event.Event
}

func newTraceRecords() *traceRecords {
	return &traceRecords{ids: make(map[string]struct{})}
}

// Store keeps every trace in process memory.
type Store struct {
	mu     sync.RWMutex
	traces map[string]*traceRecords
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{traces: make(map[string]*traceRecords)}
}

func (s *Store) getTrace(traceID string) (*traceRecords, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[traceID]
	return t, ok
}

func (s *Store) getOrCreateTrace(traceID string) *traceRecords {
	s.mu.RLock()
	t, ok := s.traces[traceID]
	s.mu.RUnlock()
	if ok {
		return t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok = s.traces[traceID]; ok {
		return t
	}
	t = newTraceRecords()
	s.traces[traceID] = t
	return t
}

// AppendNode implements node.Store.
func (s *Store) AppendNode(ctx context.Context, rec *node.Record) error {
	if rec == nil || rec.NodeID == "" {
		return fmt.Errorf("inmemory: record without node id")
	}
	t := s.getOrCreateTrace(rec.TraceID)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ids[rec.NodeID]; ok {
		return node.ErrNodeExists
	}
	t.ids[rec.NodeID] = struct{}{}
	cp := *rec
	t.nodes = append(t.nodes, &cp)
	return nil
}

// Nodes implements node.Store.
func (s *Store) Nodes(ctx context.Context, traceID string) ([]*node.Record, error) {
	t, ok := s.getTrace(traceID)
	if !ok {
		return nil, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*node.Record, len(t.nodes))
	for i, r := range t.nodes {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

// AppendEvent implements node.Store.
func (s *Store) AppendEvent(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return nil
	}
	t := s.getOrCreateTrace(ev.TraceID)
	t.mu.Lock()
	t.events = append(t.events, ev.Clone())
	t.mu.Unlock()
	return nil
}

// Events implements node.Store.
func (s *Store) Events(ctx context.Context, traceID string) ([]*event.Event, error) {
	t, ok := s.getTrace(traceID)
	if !ok {
		return nil, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*event.Event, len(t.events))
	for i, ev := range t.events {
		out[i] = ev.Clone()
	}
	return out, nil
}

// Traces returns the ids of the stored traces.
func (s *Store) Traces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.traces))
	for id := range s.traces {
		ids = append(ids, id)
	}
	return ids
}

// Close implements node.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	s.traces = make(map[string]*traceRecords)
	s.mu.Unlock()
	return nil
}
