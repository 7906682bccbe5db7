// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	s := Make(dtypes.Float32, 3, 4)
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, 12, s.Size())
	assert.True(t, s.Ok())
	assert.Equal(t, "(Float32)[3 4]", s.String())

	// Scalars.
	assert.True(t, Make(dtypes.Int32).IsScalar())
	assert.Equal(t, 1, Make(dtypes.Int32).Size())

	// Zero-sized dimensions are valid shapes.
	empty := Make(dtypes.Float32, 0, 4)
	assert.True(t, empty.Ok())
	assert.Equal(t, 0, empty.Size())
	assert.True(t, empty.IsZeroSize())

	require.Panics(t, func() { Make(dtypes.Float32, 3, -1) })
}

func TestDim(t *testing.T) {
	s := Make(dtypes.Float64, 2, 3, 5)
	assert.Equal(t, 5, s.Dim(2))
	assert.Equal(t, 5, s.Dim(-1))
	assert.Equal(t, 2, s.Dim(-3))
	require.Panics(t, func() { s.Dim(3) })
}

func TestEqual(t *testing.T) {
	a := Make(dtypes.Float32, 3, 4)
	assert.True(t, a.Equal(Make(dtypes.Float32, 3, 4)))
	assert.False(t, a.Equal(Make(dtypes.Float64, 3, 4)))
	assert.False(t, a.Equal(Make(dtypes.Float32, 4, 3)))
	assert.True(t, a.EqualDimensions(Make(dtypes.Int8, 3, 4)))
}

func TestStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Make(dtypes.Float32, 2, 3, 4).Strides())
	assert.Empty(t, Make(dtypes.Float32).Strides())
}

func TestClone(t *testing.T) {
	a := Make(dtypes.Float32, 3, 4)
	b := a.Clone()
	b.Dimensions[0] = 7
	assert.Equal(t, 3, a.Dimensions[0])
}
