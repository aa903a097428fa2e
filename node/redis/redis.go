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

// Package redis provides a node store backed by Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"trpc.group/trpc-go/trpc-callgraph-go/event"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
	storage "trpc.group/trpc-go/trpc-callgraph-go/storage/redis"
)

var _ node.Store = (*Store)(nil)

const defaultKeyPrefix = "callgraph:"

// Options configures a Store.
type Options struct {
	target string
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option sets an Options field.
type Option func(*Options)

// WithRedisClientURL builds the client from a redis:// URL.
func WithRedisClientURL(url string) Option {
	return func(o *Options) {
		o.target = url
	}
}

// WithRedisInstance builds the client from an instance registered in
// storage/redis.
func WithRedisInstance(name string) Option {
	return func(o *Options) {
		o.target = name
	}
}

// WithClient uses an existing client. The store does not close it.
func WithClient(client redis.UniversalClient) Option {
	return func(o *Options) {
		o.client = client
	}
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.prefix = prefix
	}
}

// WithTraceTTL expires the keys of a trace ttl after its last write. Zero
// keeps them forever.
func WithTraceTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// Store keeps the records of a trace in one hash and its events in one list.
// storage structure:
// prefix + "node:" + traceID  -> hash [nodeID: Record(json)]
// prefix + "event:" + traceID -> list [Event(json)]
type Store struct {
	client    redis.UniversalClient
	ownClient bool
	prefix    string
	ttl       time.Duration
}

// NewStore creates a Store.
func NewStore(opts ...Option) (*Store, error) {
	o := Options{prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{client: o.client, prefix: o.prefix, ttl: o.ttl}
	if s.client == nil {
		if o.target == "" {
			return nil, errors.New("redis node store: client or url is required")
		}
		client, err := storage.NewClient(o.target)
		if err != nil {
			return nil, fmt.Errorf("redis node store: %w", err)
		}
		s.client = client
		s.ownClient = true
	}
	return s, nil
}

func (s *Store) nodeKey(traceID string) string {
	return s.prefix + "node:" + traceID
}

func (s *Store) eventKey(traceID string) string {
	return s.prefix + "event:" + traceID
}

// AppendNode implements node.Store.
func (s *Store) AppendNode(ctx context.Context, rec *node.Record) error {
	if rec == nil || rec.NodeID == "" {
		return errors.New("redis node store: record without node id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis node store: marshal record %s: %w", rec.NodeID, err)
	}
	key := s.nodeKey(rec.TraceID)
	ok, err := s.client.HSetNX(ctx, key, rec.NodeID, data).Result()
	if err != nil {
		return fmt.Errorf("redis node store: hsetnx %s: %w", key, err)
	}
	if !ok {
		return node.ErrNodeExists
	}
	return s.touch(ctx, key)
}

// Nodes implements node.Store.
func (s *Store) Nodes(ctx context.Context, traceID string) ([]*node.Record, error) {
	key := s.nodeKey(traceID)
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis node store: hgetall %s: %w", key, err)
	}
	recs := make([]*node.Record, 0, len(m))
	for id, raw := range m {
		rec := &node.Record{}
		if err := json.Unmarshal([]byte(raw), rec); err != nil {
			return nil, fmt.Errorf("redis node store: unmarshal record %s: %w", id, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// AppendEvent implements node.Store.
func (s *Store) AppendEvent(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis node store: marshal event: %w", err)
	}
	key := s.eventKey(ev.TraceID)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("redis node store: rpush %s: %w", key, err)
	}
	return s.touch(ctx, key)
}

// Events implements node.Store.
func (s *Store) Events(ctx context.Context, traceID string) ([]*event.Event, error) {
	key := s.eventKey(traceID)
	raws, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis node store: lrange %s: %w", key, err)
	}
	evs := make([]*event.Event, 0, len(raws))
	for _, raw := range raws {
		ev := &event.Event{}
		if err := json.Unmarshal([]byte(raw), ev); err != nil {
			return nil, fmt.Errorf("redis node store: unmarshal event: %w", err)
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

// Close implements node.Store.
func (s *Store) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

func (s *Store) touch(ctx context.Context, key string) error {
	if s.ttl <= 0 {
		return nil
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis node store: expire %s: %w", key, err)
	}
	return nil
}
