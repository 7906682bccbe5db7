// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	var m Map[string, int]
	_, ok := m.Load("a")
	assert.False(t, ok)

	m.Store("a", 1)
	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	actual, loaded := m.LoadOrStore("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, actual)
	actual, loaded = m.LoadOrStore("b", 2)
	assert.False(t, loaded)
	assert.Equal(t, 2, actual)
	assert.Equal(t, 2, m.Len())
}

func TestMapConcurrent(t *testing.T) {
	var m Map[int, int]
	var wg sync.WaitGroup
	for ii := 0; ii < 16; ii++ {
		wg.Add(1)
		go func(ii int) {
			defer wg.Done()
			m.Store(ii%4, ii)
			m.Load(ii % 4)
		}(ii)
	}
	wg.Wait()
	assert.Equal(t, 4, m.Len())
}
