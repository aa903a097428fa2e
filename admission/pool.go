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

package admission

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Pool runs independent tasks with bounded parallelism.
type Pool struct {
	size int
}

// NewPool creates a Pool running at most size tasks at once. A non-positive
// size means one worker per task, so only resource permits limit a batch.
func NewPool(size int) *Pool {
	return &Pool{size: size}
}

// Run calls fn(ctx, i) for every i in [0, n) and returns once all of them
// have returned. Tasks not yet started when ctx ends still run, with the
// canceled ctx, so every index is visited exactly once.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	if n <= 0 {
		return nil
	}
	size := p.size
	if size <= 0 || size > n {
		size = n
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return fmt.Errorf("admission: create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		idx := i
		task := func() {
			defer wg.Done()
			fn(ctx, idx)
		}
		if err := pool.Submit(task); err != nil {
			// The pool is blocking, so Submit only fails once released.
			task()
		}
	}
	wg.Wait()
	return nil
}
