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

// Package admission bounds how many calls run at once: per named resource
// through permits, and per batch through a worker pool.
package admission

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter hands out permits per named resource. Resources without a
// configured limit are not limited.
type Limiter struct {
	mu        sync.RWMutex
	resources map[string]*resource
}

type resource struct {
	sem     *semaphore.Weighted
	permits int64
	inUse   atomic.Int64
}

// NewLimiter creates a Limiter with the given permit count per resource.
// Non-positive counts are ignored.
func NewLimiter(permits map[string]int) *Limiter {
	l := &Limiter{resources: make(map[string]*resource)}
	for name, n := range permits {
		l.SetLimit(name, n)
	}
	return l
}

// SetLimit installs a limit of n permits on name. Calls already holding a
// permit of a previous limit keep it. A non-positive n removes the limit.
func (l *Limiter) SetLimit(name string, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 {
		delete(l.resources, name)
		return
	}
	l.resources[name] = &resource{
		sem:     semaphore.NewWeighted(int64(n)),
		permits: int64(n),
	}
}

// Limit returns the permit count of name, or 0 when it is unlimited.
func (l *Limiter) Limit(name string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if r, ok := l.resources[name]; ok {
		return int(r.permits)
	}
	return 0
}

// Acquire blocks until a permit of name is available or ctx ends. The
// returned release function must be called exactly once; it is safe to
// call more than once.
func (l *Limiter) Acquire(ctx context.Context, name string) (release func(), err error) {
	l.mu.RLock()
	r, ok := l.resources[name]
	l.mu.RUnlock()
	if !ok {
		return func() {}, nil
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("admission: acquire permit of %s: %w", name, err)
	}
	r.inUse.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			r.inUse.Add(-1)
			r.sem.Release(1)
		})
	}, nil
}

// InUse returns the number of permits of name currently held.
func (l *Limiter) InUse(name string) int {
	l.mu.RLock()
	r, ok := l.resources[name]
	l.mu.RUnlock()
	if !ok {
		return 0
	}
	return int(r.inUse.Load())
}
