// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package slicing

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/slicing/pkg/core/shapes"
)

func TestLowerScatterMirrorsGather(t *testing.T) {
	operand := shapes.Make(dtypes.Float32, 4, 5)
	idx := []IndexElement{NewAxis(), Indices([]int32{0, 2}), Full().Stride(-1)}

	gather := Lower(operand, idx...)
	scatter := LowerScatter(operand, idx...)

	assert.Equal(t, gather.StartIndices, scatter.StartIndices)
	assert.Equal(t, gather.OffsetOutputAxes, scatter.UpdateWindowAxes)
	assert.Equal(t, gather.CollapsedSliceAxes, scatter.InsertedWindowAxes)
	assert.Equal(t, gather.StartIndexMap, scatter.ScatterAxisMap)
	assert.Equal(t, gather.OutputShape, scatter.UpdateShape)
	assert.Equal(t, gather.InsertedOutputAxes, scatter.SqueezedUpdateAxes)
	assert.Equal(t, gather.ReversedOutputAxes, scatter.ReversedUpdateAxes)
}

func TestLowerScatterRowUpdate(t *testing.T) {
	// x[1] = row on a (3, 4) operand.
	desc := LowerScatter(shapes.Make(dtypes.Float32, 3, 4), At(1))
	assert.Equal(t, []int{4}, desc.UpdateShape)
	assert.Equal(t, []int{0}, desc.UpdateWindowAxes)
	assert.Equal(t, []int{0}, desc.InsertedWindowAxes)
	assert.Equal(t, []int{0}, desc.ScatterAxisMap)
	assert.Empty(t, desc.SqueezedUpdateAxes)
	assert.Empty(t, desc.ReversedUpdateAxes)
}

func TestLowerScatterErrors(t *testing.T) {
	err := catch(func() {
		LowerScatter(shapes.Make(dtypes.Float32, 3), At(0), At(0))
	})
	require.ErrorIs(t, err, ErrInvalidIndex)
}
