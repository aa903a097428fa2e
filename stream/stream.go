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

// Package stream delivers the events of a trace to its observers, in
// emission order, over a channel keyed by trace id.
package stream

import (
	"context"
	"errors"

	"trpc.group/trpc-go/trpc-callgraph-go/event"
)

// ErrTopicClosed is returned when publishing to a trace that already
// received its terminal marker.
var ErrTopicClosed = errors.New("stream: trace channel is closed")

// Broker moves events from the engine to observers. Subscribers receive the
// events of one trace in emission order, starting from the first one, and
// their channel is closed after the terminal marker or when ctx ends.
type Broker interface {
	// Publish appends ev to the channel of ev.TraceID. Events without the
	// broadcast flag are ignored.
	Publish(ctx context.Context, ev *event.Event) error
	// Subscribe opens the channel of traceID.
	Subscribe(ctx context.Context, traceID string) (<-chan *event.Event, error)
	// Close releases the resources held for traceID.
	Close(traceID string) error
}
