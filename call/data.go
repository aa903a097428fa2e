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

package call

import (
	"maps"
	"sync"
)

// Data is a map shared between nodes. Each single-key operation is atomic;
// there is no transaction across keys and concurrent writers of one key
// race with last-write-wins.
type Data struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewData returns a Data seeded with a copy of init.
func NewData(init map[string]any) *Data {
	d := &Data{m: make(map[string]any, len(init))}
	for k, v := range init {
		d.m[k] = v
	}
	return d
}

// Get returns the value stored under key.
func (d *Data) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.m[key]
	return v, ok
}

// Set stores value under key.
func (d *Data) Set(key string, value any) {
	d.mu.Lock()
	d.m[key] = value
	d.mu.Unlock()
}

// Delete removes key.
func (d *Data) Delete(key string) {
	d.mu.Lock()
	delete(d.m, key)
	d.mu.Unlock()
}

// Update atomically replaces the value under key with fn(old, ok) and
// returns the new value.
func (d *Data) Update(key string, fn func(old any, ok bool) any) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	old, ok := d.m[key]
	v := fn(old, ok)
	d.m[key] = v
	return v
}

// Len returns the number of keys.
func (d *Data) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.m)
}

// Snapshot returns a shallow copy of the content.
func (d *Data) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.m)
}

// Clear drops every key.
func (d *Data) Clear() {
	d.mu.Lock()
	clear(d.m)
	d.mu.Unlock()
}
