// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/gomlx/slicing/backends"
	"github.com/gomlx/slicing/pkg/core/tensors"
)

func TestGather(t *testing.T) {
	backend := New()
	// operand[i][j] = i*10 + j, shape (3, 4).
	operand := tensors.FromFlatDataAndDimensions([]float32{
		0, 1, 2, 3,
		10, 11, 12, 13,
		20, 21, 22, 23,
	}, 3, 4)

	t.Run("pick-rows", func(t *testing.T) {
		startIndices := tensors.FromFlatDataAndDimensions([]int32{2, 0}, 2, 1)
		got := must.M1(backend.Gather(operand, startIndices,
			[]int{1}, []int{0}, []int{0}, []int{1, 4}))
		assert.Equal(t, []int{2, 4}, got.Shape().Dimensions)
		assert.Equal(t, []float32{20, 21, 22, 23, 0, 1, 2, 3}, tensors.CopyFlatData[float32](got))
	})

	t.Run("pick-elements", func(t *testing.T) {
		startIndices := tensors.FromFlatDataAndDimensions([]int32{0, 1, 2, 3}, 2, 2)
		got := must.M1(backend.Gather(operand, startIndices,
			nil, []int{0, 1}, []int{0, 1}, []int{1, 1}))
		assert.Equal(t, []int{2}, got.Shape().Dimensions)
		assert.Equal(t, []float32{1, 23}, tensors.CopyFlatData[float32](got))
	})

	t.Run("slab", func(t *testing.T) {
		startIndices := tensors.FromFlatDataAndDimensions([]int32{1, 1}, 2)
		got := must.M1(backend.Gather(operand, startIndices,
			[]int{0, 1}, nil, []int{0, 1}, []int{2, 2}))
		assert.Equal(t, []int{2, 2}, got.Shape().Dimensions)
		assert.Equal(t, []float32{11, 12, 21, 22}, tensors.CopyFlatData[float32](got))
	})

	t.Run("out-of-range-clamps", func(t *testing.T) {
		startIndices := tensors.FromFlatDataAndDimensions([]int32{100}, 1, 1)
		got := must.M1(backend.Gather(operand, startIndices,
			[]int{1}, []int{0}, []int{0}, []int{1, 4}))
		assert.Equal(t, []float32{20, 21, 22, 23}, tensors.CopyFlatData[float32](got))
	})

	t.Run("int64-start-indices", func(t *testing.T) {
		startIndices := tensors.FromFlatDataAndDimensions([]int64{1}, 1, 1)
		got := must.M1(backend.Gather(operand, startIndices,
			[]int{1}, []int{0}, []int{0}, []int{1, 4}))
		assert.Equal(t, []float32{10, 11, 12, 13}, tensors.CopyFlatData[float32](got))
	})

	t.Run("bad-slice-sizes", func(t *testing.T) {
		startIndices := tensors.FromFlatDataAndDimensions([]int32{0}, 1, 1)
		_, err := backend.Gather(operand, startIndices, []int{1}, []int{0}, []int{0}, []int{1})
		require.Error(t, err)
	})
}

func TestScatter(t *testing.T) {
	backend := New()

	t.Run("set-rows", func(t *testing.T) {
		operand := tensors.FromFlatDataAndDimensions(make([]float32, 12), 3, 4)
		startIndices := tensors.FromFlatDataAndDimensions([]int32{2}, 1, 1)
		updates := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 1, 4)
		got := must.M1(backend.Scatter(operand, startIndices, updates,
			[]int{1}, []int{0}, []int{0}, backends.CombineSet))
		assert.Equal(t, []float32{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4},
			tensors.CopyFlatData[float32](got))
		assert.Equal(t, float32(0), tensors.CopyFlatData[float32](operand)[8], "operand must not change")
	})

	t.Run("combine-modes", func(t *testing.T) {
		for _, test := range []struct {
			combine backends.Combine
			want    []int32
		}{
			{backends.CombineSet, []int32{5, 10, 3}},
			{backends.CombineAdd, []int32{6, 12, 3}},
			{backends.CombineMin, []int32{1, 2, 3}},
			{backends.CombineMax, []int32{5, 10, 3}},
		} {
			t.Run(test.combine.String(), func(t *testing.T) {
				operand := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3}, 3)
				startIndices := tensors.FromFlatDataAndDimensions([]int32{0, 1}, 2, 1)
				updates := tensors.FromFlatDataAndDimensions([]int32{5, 10}, 2)
				got := must.M1(backend.Scatter(operand, startIndices, updates,
					nil, []int{0}, []int{0}, test.combine))
				assert.Equal(t, test.want, tensors.CopyFlatData[int32](got))
			})
		}
	})

	t.Run("float16-arithmetic", func(t *testing.T) {
		operand := tensors.FromFlatDataAndDimensions([]float16.Float16{
			float16.Fromfloat32(1), float16.Fromfloat32(2),
		}, 2)
		startIndices := tensors.FromFlatDataAndDimensions([]int32{1}, 1, 1)
		updates := tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(0.5)}, 1)
		got := must.M1(backend.Scatter(operand, startIndices, updates,
			nil, []int{0}, []int{0}, backends.CombineAdd))
		flat := tensors.CopyFlatData[float16.Float16](got)
		assert.Equal(t, float32(1), flat[0].Float32())
		assert.Equal(t, float32(2.5), flat[1].Float32())
	})

	t.Run("bool-set-only", func(t *testing.T) {
		operand := tensors.FromFlatDataAndDimensions([]bool{false, false}, 2)
		startIndices := tensors.FromFlatDataAndDimensions([]int32{0}, 1, 1)
		updates := tensors.FromFlatDataAndDimensions([]bool{true}, 1)
		got := must.M1(backend.Scatter(operand, startIndices, updates,
			nil, []int{0}, []int{0}, backends.CombineSet))
		assert.Equal(t, []bool{true, false}, tensors.CopyFlatData[bool](got))

		_, err := backend.Scatter(operand, startIndices, updates,
			nil, []int{0}, []int{0}, backends.CombineAdd)
		require.Error(t, err)
	})

	t.Run("out-of-range-clamps", func(t *testing.T) {
		operand := tensors.FromFlatDataAndDimensions([]float32{0, 0, 0}, 3)
		startIndices := tensors.FromFlatDataAndDimensions([]int32{-5}, 1, 1)
		updates := tensors.FromFlatDataAndDimensions([]float32{7}, 1)
		got := must.M1(backend.Scatter(operand, startIndices, updates,
			nil, []int{0}, []int{0}, backends.CombineSet))
		assert.Equal(t, []float32{7, 0, 0}, tensors.CopyFlatData[float32](got))
	})
}

func TestReverse(t *testing.T) {
	backend := New()
	operand := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := must.M1(backend.Reverse(operand, []int{1}))
	assert.Equal(t, []int32{3, 2, 1, 6, 5, 4}, tensors.CopyFlatData[int32](got))

	got = must.M1(backend.Reverse(operand, []int{0, 1}))
	assert.Equal(t, []int32{6, 5, 4, 3, 2, 1}, tensors.CopyFlatData[int32](got))

	_, err := backend.Reverse(operand, []int{2})
	require.Error(t, err)
}

func TestReshape(t *testing.T) {
	backend := New()
	operand := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := must.M1(backend.Reshape(operand, []int{3, 2}))
	assert.Equal(t, []int{3, 2}, got.Shape().Dimensions)
	assert.Equal(t, dtypes.Int32, got.DType())

	_, err := backend.Reshape(operand, []int{4, 2})
	require.Error(t, err)
}
