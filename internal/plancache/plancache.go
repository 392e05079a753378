//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

// Package plancache provides a bounded cache for compiled rule plans.
//
// Entries are immutable after insertion, so concurrent readers never need
// more than the read lock. When the cache grows past its bound it is cleared
// wholesale; compilation is cheap enough that a cold cache only costs one
// recompile per plan.
package plancache

import (
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultMaxEntries is the bound used when no explicit size is given.
const DefaultMaxEntries = 256

// Cache is a bounded map from structural signatures to compiled plans.
type Cache struct {
	mu      sync.RWMutex
	max     int
	entries map[string]any
}

// New creates a cache bounded at max entries. Non-positive max falls back to
// DefaultMaxEntries.
func New(max int) *Cache {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Cache{
		max:     max,
		entries: make(map[string]any),
	}
}

// Get returns the entry stored under key, if any.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores value under key, clearing the cache first if it is full.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.max {
		c.entries = make(map[string]any)
	}
	c.entries[key] = value
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]any)
}

// Signature derives a deterministic structural key from the given parts.
// Maps marshal with sorted keys, so two structurally identical inputs always
// produce the same signature regardless of construction order.
func Signature(parts ...any) string {
	b, err := json.Marshal(parts)
	if err != nil {
		// Unmarshalable inputs still need a stable-ish key; fall back to the
		// formatted value.
		return fmt.Sprintf("%v", parts)
	}
	return string(b)
}
