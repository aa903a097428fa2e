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

// Package postgres provides a node store backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-callgraph-go/event"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
	storage "trpc.group/trpc-go/trpc-callgraph-go/storage/postgres"
)

var _ node.Store = (*Store)(nil)

const defaultTablePrefix = "callgraph_"

// Options configures a Store.
type Options struct {
	target      string
	client      storage.Client
	tablePrefix string
	skipDBInit  bool
	initTimeout time.Duration
}

// Option sets an Options field.
type Option func(*Options)

// WithPostgresConnString builds the client from a connection string.
func WithPostgresConnString(connString string) Option {
	return func(o *Options) {
		o.target = connString
	}
}

// WithPostgresInstance builds the client from an instance registered in
// storage/postgres.
func WithPostgresInstance(name string) Option {
	return func(o *Options) {
		o.target = name
	}
}

// WithClient uses an existing client. The store closes it on Close.
func WithClient(client storage.Client) Option {
	return func(o *Options) {
		o.client = client
	}
}

// WithTablePrefix sets the prefix of the table names.
func WithTablePrefix(prefix string) Option {
	return func(o *Options) {
		o.tablePrefix = prefix
	}
}

// WithSkipDBInit skips table creation.
func WithSkipDBInit(skip bool) Option {
	return func(o *Options) {
		o.skipDBInit = skip
	}
}

// Store keeps records in one table and persisted events in another.
type Store struct {
	client      storage.Client
	nodesTable  string
	eventsTable string
}

// NewStore creates a Store and, unless skipped, its tables.
func NewStore(opts ...Option) (*Store, error) {
	o := Options{tablePrefix: defaultTablePrefix, initTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.initTimeout)
	defer cancel()

	client := o.client
	if client == nil {
		if o.target == "" {
			return nil, errors.New("postgres node store: client or connection string is required")
		}
		var err error
		if client, err = storage.NewClient(ctx, o.target); err != nil {
			return nil, fmt.Errorf("postgres node store: %w", err)
		}
	}
	s := &Store{
		client:      client,
		nodesTable:  o.tablePrefix + "nodes",
		eventsTable: o.tablePrefix + "events",
	}
	if !o.skipDBInit {
		if err := s.initDB(ctx); err != nil {
			client.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) initDB(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	trace_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	father_node_id TEXT NOT NULL DEFAULT '',
	record JSONB NOT NULL,
	create_time TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (trace_id, node_id)
)`, s.nodesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	trace_id TEXT NOT NULL,
	event JSONB NOT NULL,
	create_time TIMESTAMPTZ NOT NULL
)`, s.eventsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_trace_idx ON %s (trace_id)`, s.eventsTable, s.eventsTable),
	}
	for _, stmt := range stmts {
		if _, err := s.client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres node store: init tables: %w", err)
		}
	}
	return nil
}

// AppendNode implements node.Store.
func (s *Store) AppendNode(ctx context.Context, rec *node.Record) error {
	if rec == nil || rec.NodeID == "" {
		return errors.New("postgres node store: record without node id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres node store: marshal record %s: %w", rec.NodeID, err)
	}
	res, err := s.client.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (trace_id, node_id, father_node_id, record, create_time)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (trace_id, node_id) DO NOTHING`, s.nodesTable),
		rec.TraceID, rec.NodeID, rec.FatherNodeID, data, rec.CreateTime)
	if err != nil {
		return fmt.Errorf("postgres node store: insert record %s: %w", rec.NodeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres node store: insert record %s: %w", rec.NodeID, err)
	}
	if n == 0 {
		return node.ErrNodeExists
	}
	return nil
}

// Nodes implements node.Store.
func (s *Store) Nodes(ctx context.Context, traceID string) ([]*node.Record, error) {
	var recs []*node.Record
	err := s.client.Query(ctx, func(rows *sql.Rows) error {
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			rec := &node.Record{}
			if err := json.Unmarshal(raw, rec); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			recs = append(recs, rec)
		}
		return nil
	}, fmt.Sprintf(`SELECT record FROM %s WHERE trace_id = $1 ORDER BY create_time`, s.nodesTable), traceID)
	if err != nil {
		return nil, fmt.Errorf("postgres node store: list records of %s: %w", traceID, err)
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
		return fmt.Errorf("postgres node store: marshal event: %w", err)
	}
	if _, err := s.client.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (trace_id, event, create_time) VALUES ($1, $2, $3)`, s.eventsTable),
		ev.TraceID, data, ev.Timestamp); err != nil {
		return fmt.Errorf("postgres node store: insert event: %w", err)
	}
	return nil
}

// Events implements node.Store.
func (s *Store) Events(ctx context.Context, traceID string) ([]*event.Event, error) {
	var evs []*event.Event
	err := s.client.Query(ctx, func(rows *sql.Rows) error {
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			ev := &event.Event{}
			if err := json.Unmarshal(raw, ev); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			evs = append(evs, ev)
		}
		return nil
	}, fmt.Sprintf(`SELECT event FROM %s WHERE trace_id = $1 ORDER BY id`, s.eventsTable), traceID)
	if err != nil {
		return nil, fmt.Errorf("postgres node store: list events of %s: %w", traceID, err)
	}
	return evs, nil
}

// Close implements node.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
