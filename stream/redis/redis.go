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

// Package redis provides a stream.Broker backed by Redis Streams, so that
// observers in other processes see the same ordered trace channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
	"trpc.group/trpc-go/trpc-callgraph-go/stream"
)

var _ stream.Broker = (*Broker)(nil)

const (
	defaultKeyPrefix    = "callgraph:stream:"
	defaultBlockTimeout = 5 * time.Second
	defaultMaxLen       = 10000
	defaultRetention    = 30 * time.Minute
	defaultBufferSize   = 64
	fieldEvent          = "event"
)

// Option configures a Broker.
type Option func(*Broker)

// WithKeyPrefix sets the prefix of the per-trace stream keys.
func WithKeyPrefix(prefix string) Option {
	return func(b *Broker) {
		b.prefix = prefix
	}
}

// WithBlockTimeout sets how long one XREAD waits for new entries.
func WithBlockTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.blockTimeout = d
		}
	}
}

// WithMaxLen caps the approximate length of one trace stream.
func WithMaxLen(n int64) Option {
	return func(b *Broker) {
		b.maxLen = n
	}
}

// WithRetention sets the expiry of a stream once its terminal marker is
// written.
func WithRetention(d time.Duration) Option {
	return func(b *Broker) {
		b.retention = d
	}
}

// Broker stores each trace channel as one Redis Stream.
// storage structure:
// prefix + traceID -> stream [field "event": Event(json)]
type Broker struct {
	client       redis.UniversalClient
	prefix       string
	blockTimeout time.Duration
	maxLen       int64
	retention    time.Duration
}

// New creates a Broker.
func New(client redis.UniversalClient, opts ...Option) (*Broker, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	b := &Broker{
		client:       client,
		prefix:       defaultKeyPrefix,
		blockTimeout: defaultBlockTimeout,
		maxLen:       defaultMaxLen,
		retention:    defaultRetention,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Broker) key(traceID string) string {
	return b.prefix + traceID
}

// Publish implements stream.Broker.
func (b *Broker) Publish(ctx context.Context, ev *event.Event) error {
	if ev == nil || !ev.Broadcast {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis broker: marshal event: %w", err)
	}
	key := b.key(ev.TraceID)
	args := &redis.XAddArgs{
		Stream: key,
		Values: map[string]any{fieldEvent: data},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis broker: xadd %s: %w", key, err)
	}
	if ev.Final && b.retention > 0 {
		if err := b.client.Expire(ctx, key, b.retention).Err(); err != nil {
			log.Warnf("redis broker: expire %s: %v", key, err)
		}
	}
	return nil
}

// Subscribe implements stream.Broker. Reading starts at the first entry of
// the stream.
func (b *Broker) Subscribe(ctx context.Context, traceID string) (<-chan *event.Event, error) {
	key := b.key(traceID)
	out := make(chan *event.Event, defaultBufferSize)
	go func() {
		defer close(out)
		lastID := "0"
		for {
			if ctx.Err() != nil {
				return
			}
			res, err := b.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   100,
				Block:   b.blockTimeout,
			}).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() == nil {
					log.Warnf("redis broker: xread %s: %v", key, err)
				}
				return
			}
			for _, s := range res {
				for _, msg := range s.Messages {
					lastID = msg.ID
					ev, err := decode(msg.Values[fieldEvent])
					if err != nil {
						log.Warnf("redis broker: skip entry %s of %s: %v", msg.ID, key, err)
						continue
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
					if ev.Final {
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// Close implements stream.Broker. The stream is kept for the retention
// period so late observers can still read it.
func (b *Broker) Close(traceID string) error {
	if b.retention <= 0 {
		return b.client.Del(context.Background(), b.key(traceID)).Err()
	}
	return b.client.Expire(context.Background(), b.key(traceID), b.retention).Err()
}

func decode(v any) (*event.Event, error) {
	var raw []byte
	switch s := v.(type) {
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return nil, fmt.Errorf("unexpected field type %T", v)
	}
	ev := &event.Event{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
