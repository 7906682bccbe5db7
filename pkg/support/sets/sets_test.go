// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Make[int]()
	assert.Equal(t, 0, s.Len())
	s.Insert(3, 7)
	assert.True(t, s.Has(3))
	assert.True(t, s.Has(7))
	assert.False(t, s.Has(5))

	s2 := MakeWith("a", "b", "a")
	assert.Equal(t, 2, s2.Len())
	assert.True(t, s2.Has("a"))
}
