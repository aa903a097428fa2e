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
	"time"

	"trpc.group/trpc-go/trpc-callgraph-go/event"
)

const (
	defaultSubscriberBufferSize = 64
	defaultRetention            = 5 * time.Minute
)

// MemoryOption configures a MemoryBroker.
type MemoryOption func(*MemoryBroker)

// WithSubscriberBufferSize sets the channel buffer handed to each observer.
func WithSubscriberBufferSize(size int) MemoryOption {
	return func(b *MemoryBroker) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithRetention sets how long a closed trace channel stays readable for late
// observers.
func WithRetention(d time.Duration) MemoryOption {
	return func(b *MemoryBroker) {
		b.retention = d
	}
}

// MemoryBroker keeps one append-only topic per trace in process memory.
// Observers read the topic by index, so a slow observer never blocks the
// publisher and never misses an event.
type MemoryBroker struct {
	mu         sync.Mutex
	topics     map[string]*topic
	bufferSize int
	retention  time.Duration
}

type topic struct {
	// subscribers is guarded by MemoryBroker.mu.
	subscribers int

	mu     sync.Mutex
	events []*event.Event
	closed bool
	notify chan struct{}
}

func newTopic() *topic {
	return &topic{notify: make(chan struct{})}
}

// wake releases every reader waiting on the current notify channel.
// Caller holds t.mu.
func (t *topic) wake() {
	close(t.notify)
	t.notify = make(chan struct{})
}

// NewMemoryBroker creates a MemoryBroker.
func NewMemoryBroker(opts ...MemoryOption) *MemoryBroker {
	b := &MemoryBroker{
		topics:     make(map[string]*topic),
		bufferSize: defaultSubscriberBufferSize,
		retention:  defaultRetention,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// topic returns the topic of traceID, creating it. Caller holds b.mu.
func (b *MemoryBroker) topic(traceID string) *topic {
	t, ok := b.topics[traceID]
	if !ok {
		t = newTopic()
		b.topics[traceID] = t
	}
	return t
}

// Publish implements Broker.
func (b *MemoryBroker) Publish(_ context.Context, ev *event.Event) error {
	if ev == nil || !ev.Broadcast {
		return nil
	}
	b.mu.Lock()
	t := b.topic(ev.TraceID)
	t.mu.Lock()
	b.mu.Unlock()
	if t.closed {
		t.mu.Unlock()
		return ErrTopicClosed
	}
	t.events = append(t.events, ev)
	if ev.Final {
		t.closed = true
	}
	t.wake()
	t.mu.Unlock()

	if ev.Final && b.retention > 0 {
		traceID := ev.TraceID
		time.AfterFunc(b.retention, func() { b.drop(traceID, t) })
	}
	return nil
}

// Subscribe implements Broker.
func (b *MemoryBroker) Subscribe(ctx context.Context, traceID string) (<-chan *event.Event, error) {
	b.mu.Lock()
	t := b.topic(traceID)
	t.subscribers++
	b.mu.Unlock()
	out := make(chan *event.Event, b.bufferSize)
	go func() {
		defer close(out)
		defer b.release(traceID, t)
		idx := 0
		for {
			t.mu.Lock()
			if idx < len(t.events) {
				ev := t.events[idx]
				idx++
				t.mu.Unlock()
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Final {
					return
				}
				continue
			}
			if t.closed {
				t.mu.Unlock()
				return
			}
			wait := t.notify
			t.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close implements Broker. Observers still attached are released.
func (b *MemoryBroker) Close(traceID string) error {
	b.mu.Lock()
	t, ok := b.topics[traceID]
	delete(b.topics, traceID)
	b.mu.Unlock()
	if ok {
		t.mu.Lock()
		if !t.closed {
			t.closed = true
			t.wake()
		}
		t.mu.Unlock()
	}
	return nil
}

// Len returns the number of events buffered for traceID.
func (b *MemoryBroker) Len(traceID string) int {
	b.mu.Lock()
	t, ok := b.topics[traceID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// Topics returns the number of traces the broker currently holds.
func (b *MemoryBroker) Topics() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}

// release detaches a subscriber from t. A topic nobody published to is
// removed with its last subscriber.
func (b *MemoryBroker) release(traceID string, t *topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t.subscribers--
	if t.subscribers > 0 || b.topics[traceID] != t {
		return
	}
	t.mu.Lock()
	unused := len(t.events) == 0 && !t.closed
	t.mu.Unlock()
	if unused {
		delete(b.topics, traceID)
	}
}

func (b *MemoryBroker) drop(traceID string, t *topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics[traceID] == t {
		delete(b.topics, traceID)
	}
}
