// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync implements some extra synchronization tools.
package xsync

import "sync"

// Map is a type-safe wrapper around sync.Map.
//
// It is aimed at caches shared by multiple goroutines: entries are written
// once and read many times, the case sync.Map is optimized for.
type Map[K comparable, V any] struct {
	m sync.Map
}

// Load returns the value stored for key, if present.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return
	}
	return v.(V), true
}

// LoadOrStore returns the existing value for the key if present.
// Otherwise, it stores and returns the given value.
// The loaded result is true if the value was loaded, false if stored.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	v, loaded := m.m.LoadOrStore(key, value)
	return v.(V), loaded
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// Len counts the entries in the map. It is O(N) and only a snapshot if there
// are concurrent writers.
func (m *Map[K, V]) Len() (count int) {
	m.m.Range(func(_, _ any) bool {
		count++
		return true
	})
	return
}
