// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package slicing

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/slicing/pkg/core/shapes"
	"github.com/gomlx/slicing/pkg/core/tensors"
)

// catch runs fn and returns the recovered error, nil if fn returns normally.
func catch(fn func()) error {
	return exceptions.TryCatch[error](fn)
}

func TestNormalize(t *testing.T) {
	operand := shapes.Make(dtypes.Float32, 3, 4, 5)

	t.Run("pads-with-full", func(t *testing.T) {
		out := Normalize(operand, []IndexElement{At(1)})
		require.Len(t, out, 3)
		assert.Equal(t, KindInteger, out[0].Kind())
		assert.Equal(t, KindFull, out[1].Kind())
		assert.Equal(t, KindFull, out[2].Kind())
	})

	t.Run("ellipsis-expands-in-place", func(t *testing.T) {
		out := Normalize(operand, []IndexElement{At(1), Ellipsis(), At(-1)})
		require.Len(t, out, 3)
		assert.Equal(t, KindInteger, out[0].Kind())
		assert.Equal(t, KindFull, out[1].Kind())
		assert.Equal(t, KindInteger, out[2].Kind())
	})

	t.Run("ellipsis-can-expand-to-nothing", func(t *testing.T) {
		out := Normalize(operand, []IndexElement{At(0), At(0), Ellipsis(), At(0)})
		require.Len(t, out, 3)
		for _, e := range out {
			assert.Equal(t, KindInteger, e.Kind())
		}
	})

	t.Run("newaxis-consumes-no-axis", func(t *testing.T) {
		out := Normalize(operand, []IndexElement{NewAxis(), At(1)})
		require.Len(t, out, 4)
		assert.Equal(t, KindNewAxis, out[0].Kind())
	})

	t.Run("idempotent", func(t *testing.T) {
		once := Normalize(operand, []IndexElement{At(1), Ellipsis()})
		twice := Normalize(operand, once)
		require.Equal(t, once, twice)
	})

	t.Run("too-many-indices", func(t *testing.T) {
		err := catch(func() { Normalize(operand, []IndexElement{At(0), At(0), At(0), At(0)}) })
		require.ErrorIs(t, err, ErrInvalidIndex)
	})

	t.Run("multiple-ellipses", func(t *testing.T) {
		err := catch(func() { Normalize(operand, []IndexElement{Ellipsis(), At(0), Ellipsis()}) })
		require.ErrorIs(t, err, ErrInvalidIndex)
	})
}

func TestNormalizeMasks(t *testing.T) {
	t.Run("1d-mask-becomes-advanced", func(t *testing.T) {
		operand := shapes.Make(dtypes.Float64, 4)
		out := Normalize(operand, []IndexElement{Mask([]bool{true, false, true, true})})
		require.Len(t, out, 1)
		require.Equal(t, KindAdvanced, out[0].Kind())
		want := tensors.FromFlatDataAndDimensions([]int32{0, 2, 3}, 3)
		assert.True(t, out[0].array.Equal(want), "got positions %s", out[0].array.GoStr())
	})

	t.Run("2d-mask-becomes-one-advanced-per-axis", func(t *testing.T) {
		operand := shapes.Make(dtypes.Float64, 2, 2)
		mask := tensors.FromFlatDataAndDimensions([]bool{false, true, true, false}, 2, 2)
		out := Normalize(operand, []IndexElement{Mask(mask)})
		require.Len(t, out, 2)
		wantRows := tensors.FromFlatDataAndDimensions([]int32{0, 1}, 2)
		wantCols := tensors.FromFlatDataAndDimensions([]int32{1, 0}, 2)
		assert.True(t, out[0].array.Equal(wantRows))
		assert.True(t, out[1].array.Equal(wantCols))
	})

	t.Run("dynamic-mask-is-rejected", func(t *testing.T) {
		operand := shapes.Make(dtypes.Float64, 4)
		err := catch(func() { Normalize(operand, []IndexElement{Mask(Dynamic{Handle: "node#3"})}) })
		require.ErrorIs(t, err, ErrNonStaticIndex)
	})

	t.Run("scalar-mask-is-rejected", func(t *testing.T) {
		operand := shapes.Make(dtypes.Float64, 4)
		err := catch(func() { Normalize(operand, []IndexElement{Mask(tensors.FromScalar(true))}) })
		require.ErrorIs(t, err, ErrInvalidIndex)
	})
}

func TestFromAny(t *testing.T) {
	t.Run("single-int", func(t *testing.T) {
		out := FromAny(3)
		require.Len(t, out, 1)
		assert.Equal(t, At(3), out[0])
	})

	t.Run("nil-is-newaxis", func(t *testing.T) {
		out := FromAny(nil)
		require.Len(t, out, 1)
		assert.Equal(t, KindNewAxis, out[0].Kind())
	})

	t.Run("plain-int-list-is-one-advanced-index", func(t *testing.T) {
		out := FromAny([]any{1, 2, 3})
		require.Len(t, out, 1)
		require.Equal(t, KindAdvanced, out[0].Kind())
		want := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3}, 3)
		assert.True(t, out[0].array.Equal(want))
	})

	t.Run("bool-list-is-a-mask", func(t *testing.T) {
		out := FromAny([]any{true, false})
		require.Len(t, out, 1)
		assert.Equal(t, KindMask, out[0].Kind())
	})

	t.Run("list-with-index-syntax-unpacks", func(t *testing.T) {
		out := FromAny([]any{1, Full(), nil})
		require.Len(t, out, 3)
		assert.Equal(t, KindInteger, out[0].Kind())
		assert.Equal(t, KindFull, out[1].Kind())
		assert.Equal(t, KindNewAxis, out[2].Kind())
	})

	t.Run("nested-lists-unpack-to-advanced-indices", func(t *testing.T) {
		out := FromAny([]any{[]any{0, 1}, []any{2, 3}})
		require.Len(t, out, 2)
		assert.Equal(t, KindAdvanced, out[0].Kind())
		assert.Equal(t, KindAdvanced, out[1].Kind())
	})

	t.Run("scalar-tensor-is-an-advanced-index", func(t *testing.T) {
		// Rank-0 integer arrays are advanced indices; they only lower as plain integers
		// when every advanced element in the expression is rank-0.
		out := FromAny(tensors.FromScalar[int64](7))
		require.Len(t, out, 1)
		assert.Equal(t, KindAdvanced, out[0].Kind())
	})

	t.Run("unsupported-type", func(t *testing.T) {
		err := catch(func() { FromAny("nope") })
		require.ErrorIs(t, err, ErrInvalidIndex)
	})
}

func TestFromAnyMatchesNormalize(t *testing.T) {
	// x[[0, 2], :] on a (3, 4) operand, both ways.
	operand := shapes.Make(dtypes.Int32, 3, 4)
	fromAny := Normalize(operand, FromAny([]any{[]int32{0, 2}, Full()}))
	direct := Normalize(operand, []IndexElement{Indices([]int32{0, 2}), Full()})
	require.Equal(t, len(direct), len(fromAny))
	for ii := range direct {
		assert.Equal(t, direct[ii].Kind(), fromAny[ii].Kind())
	}
}
