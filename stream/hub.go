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

package stream

import (
	"context"
	"sync"

	"trpc.group/trpc-go/trpc-callgraph-go/event"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
)

// Hub sits in front of a Broker and tracks, per trace, the observers and the
// task producing the events. When the last observer of a trace disconnects
// while its task is still running, the task is canceled.
type Hub struct {
	broker Broker

	mu     sync.Mutex
	traces map[string]*traceTask
}

type traceTask struct {
	cancel    context.CancelFunc
	running   bool
	observers int
}

// NewHub creates a Hub over broker. A nil broker selects a MemoryBroker.
func NewHub(broker Broker) *Hub {
	if broker == nil {
		broker = NewMemoryBroker()
	}
	return &Hub{
		broker: broker,
		traces: make(map[string]*traceTask),
	}
}

// Broker returns the underlying broker.
func (h *Hub) Broker() Broker {
	return h.broker
}

// Attach registers the running task of traceID and the function canceling
// it.
func (h *Hub) Attach(traceID string, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.task(traceID)
	t.cancel = cancel
	t.running = true
}

// Finish marks the task of traceID as ended.
func (h *Hub) Finish(traceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.traces[traceID]
	if !ok {
		return
	}
	t.running = false
	t.cancel = nil
	if t.observers == 0 {
		delete(h.traces, traceID)
	}
}

// Publish forwards ev to the broker. A terminal event ends the task first so
// that observers leaving right after it do not cancel anything.
func (h *Hub) Publish(ctx context.Context, ev *event.Event) error {
	if ev.Terminal() {
		h.Finish(ev.TraceID)
	}
	return h.broker.Publish(ctx, ev)
}

// Subscribe attaches an observer to traceID. The observer leaves when the
// returned channel is closed, which happens after the terminal marker or
// once ctx ends.
func (h *Hub) Subscribe(ctx context.Context, traceID string) (<-chan *event.Event, error) {
	src, err := h.broker.Subscribe(ctx, traceID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.task(traceID).observers++
	h.mu.Unlock()

	out := make(chan *event.Event)
	go func() {
		defer close(out)
		defer h.leave(traceID)
		for ev := range src {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Observers returns the number of observers attached to traceID.
func (h *Hub) Observers(traceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.traces[traceID]; ok {
		return t.observers
	}
	return 0
}

func (h *Hub) leave(traceID string) {
	h.mu.Lock()
	t, ok := h.traces[traceID]
	if !ok {
		h.mu.Unlock()
		return
	}
	t.observers--
	var cancel context.CancelFunc
	if t.observers <= 0 {
		if t.running {
			cancel = t.cancel
		} else {
			delete(h.traces, traceID)
		}
	}
	h.mu.Unlock()

	if cancel != nil {
		log.Infof("stream: last observer of trace %s left, canceling its task", traceID)
		cancel()
	}
}

// task returns the entry of traceID, creating it. Caller holds h.mu.
func (h *Hub) task(traceID string) *traceTask {
	t, ok := h.traces[traceID]
	if !ok {
		t = &traceTask{}
		h.traces[traceID] = t
	}
	return t
}
