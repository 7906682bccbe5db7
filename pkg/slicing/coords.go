// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package slicing

// Host kernels over int32 coordinate tensors, used to assemble a descriptor's
// coordinate tensor: broadcasting, concatenation along the trailing axis, arange and
// nonzero. They work on small index arrays only, never on operand data.

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/slicing/pkg/core/shapes"
	"github.com/gomlx/slicing/pkg/core/tensors"
	"github.com/gomlx/slicing/pkg/support/xslices"
)

func zerosInt32(dimensions ...int) *tensors.Tensor {
	return tensors.FromShape(shapes.Make(dtypes.Int32, dimensions...))
}

func fullInt32(value int32, dimensions ...int) *tensors.Tensor {
	t := zerosInt32(dimensions...)
	tensors.MutableFlatData(t, func(flat []int32) {
		xslices.FillSlice(flat, value)
	})
	return t
}

// arangeInt32 returns the 1D tensor [start, start+stride, ...), stopping before limit.
// stride must be positive: the lowering always walks ascending and fixes direction with a
// post-gather reversal.
func arangeInt32(start, limit, stride int) *tensors.Tensor {
	size := 0
	if limit > start {
		size = (limit - start + stride - 1) / stride
	}
	data := make([]int32, size)
	for ii := range data {
		data[ii] = int32(start + ii*stride)
	}
	return tensors.FromFlatDataAndDimensions(data, size)
}

// toInt32 converts an integer tensor to dtype Int32, returning the input unchanged if it
// already is.
func toInt32(t *tensors.Tensor) *tensors.Tensor {
	switch t.DType() {
	case dtypes.Int32:
		return t
	case dtypes.Int64:
		var data []int32
		tensors.ConstFlatData(t, func(flat []int64) {
			data = xslices.Map(flat, func(v int64) int32 { return int32(v) })
		})
		return tensors.FromFlatDataAndDimensions(data, t.Shape().Dimensions...)
	case dtypes.Int8:
		var data []int32
		tensors.ConstFlatData(t, func(flat []int8) {
			data = xslices.Map(flat, func(v int8) int32 { return int32(v) })
		})
		return tensors.FromFlatDataAndDimensions(data, t.Shape().Dimensions...)
	case dtypes.Int16:
		var data []int32
		tensors.ConstFlatData(t, func(flat []int16) {
			data = xslices.Map(flat, func(v int16) int32 { return int32(v) })
		})
		return tensors.FromFlatDataAndDimensions(data, t.Shape().Dimensions...)
	}
	grammarf("index arrays must have a signed integer dtype, got %s", t.Shape())
	return nil
}

// broadcastShapes returns the common shape dims of two shapes under NumPy broadcasting
// rules (trailing-aligned, size-1 axes stretch).
func broadcastShapes(a, b []int) []int {
	rank := max(len(a), len(b))
	out := make([]int, rank)
	for ii := 0; ii < rank; ii++ {
		dimA, dimB := 1, 1
		if ii >= rank-len(a) {
			dimA = a[ii-(rank-len(a))]
		}
		if ii >= rank-len(b) {
			dimB = b[ii-(rank-len(b))]
		}
		switch {
		case dimA == dimB:
			out[ii] = dimA
		case dimA == 1:
			out[ii] = dimB
		case dimB == 1:
			out[ii] = dimA
		default:
			grammarf("advanced index arrays could not be broadcast together: incompatible dimensions %v and %v", a, b)
		}
	}
	return out
}

// broadcastTo broadcasts an int32 tensor to the target dimensions, trailing-aligned.
func broadcastTo(t *tensors.Tensor, dimensions []int) *tensors.Tensor {
	fromRank := t.Rank()
	rank := len(dimensions)
	broadcastAxes := xslices.Iota(rank-fromRank, fromRank)
	return broadcastInDim(t, dimensions, broadcastAxes)
}

// broadcastInDim broadcasts an int32 tensor into the given target dimensions:
// input axis ii maps to target axis broadcastAxes[ii], and must either match its
// dimension or have size 1 (stretched). The XLA BroadcastInDim semantics.
func broadcastInDim(t *tensors.Tensor, dimensions []int, broadcastAxes []int) *tensors.Tensor {
	fromDims := t.Shape().Dimensions
	if len(broadcastAxes) != len(fromDims) {
		grammarf("broadcastInDim: one broadcast axis needed per input axis, got %d for input rank %d",
			len(broadcastAxes), len(fromDims))
	}
	for ii, axis := range broadcastAxes {
		if fromDims[ii] != 1 && fromDims[ii] != dimensions[axis] {
			grammarf("broadcastInDim: input dimension %d (size %d) does not fit target axis %d (size %d)",
				ii, fromDims[ii], axis, dimensions[axis])
		}
	}
	out := zerosInt32(dimensions...)
	if out.Size() == 0 {
		return out
	}
	fromStrides := t.Shape().Strides()
	tensors.ConstFlatData(t, func(from []int32) {
		tensors.MutableFlatData(out, func(to []int32) {
			coords := make([]int, len(dimensions))
			for flatIdx := range to {
				fromIdx := 0
				for ii, axis := range broadcastAxes {
					if fromDims[ii] != 1 {
						fromIdx += coords[axis] * fromStrides[ii]
					}
				}
				to[flatIdx] = from[fromIdx]
				incrementCoords(coords, dimensions)
			}
		})
	})
	return out
}

// incrementCoords advances a multi-dimensional odometer by one position, row-major.
func incrementCoords(coords, dimensions []int) {
	for axis := len(coords) - 1; axis >= 0; axis-- {
		coords[axis]++
		if coords[axis] < dimensions[axis] {
			return
		}
		coords[axis] = 0
	}
}

// concatLast concatenates int32 tensors along their last axis. All leading dimensions
// must match exactly (callers broadcast first).
func concatLast(parts ...*tensors.Tensor) *tensors.Tensor {
	leading := parts[0].Shape().Dimensions
	leading = leading[:len(leading)-1]
	total := 0
	for _, p := range parts {
		pDims := p.Shape().Dimensions
		if !shapes.Make(dtypes.Int32, pDims[:len(pDims)-1]...).EqualDimensions(shapes.Make(dtypes.Int32, leading...)) {
			grammarf("concatLast: mismatched leading dimensions %v vs %v", pDims, leading)
		}
		total += xslices.Last(pDims)
	}
	out := zerosInt32(append(xslices.Copy(leading), total)...)
	numRows := xslices.Product(leading)
	tensors.MutableFlatData(out, func(to []int32) {
		for row := 0; row < numRows; row++ {
			col := 0
			for _, p := range parts {
				width := xslices.Last(p.Shape().Dimensions)
				tensors.ConstFlatData(p, func(from []int32) {
					copy(to[row*total+col:row*total+col+width], from[row*width:(row+1)*width])
				})
				col += width
			}
		}
	})
	return out
}

// normalizePositions returns a copy of an int32 index array with negative positions
// shifted by the axis dimension, so all values land in [0, axisDim) when in range.
// Out-of-range values are left as-is: bounds enforcement is the backend's.
func normalizePositions(t *tensors.Tensor, axisDim int) *tensors.Tensor {
	out := t.Clone()
	tensors.MutableFlatData(out, func(flat []int32) {
		for ii, v := range flat {
			if v < 0 {
				flat[ii] = v + int32(axisDim)
			}
		}
	})
	return out
}

// nonzero returns, for each axis of a boolean mask, the 1D int32 tensor of coordinates
// of the positions where the mask is true -- the NumPy `np.where(mask)` tuple.
func nonzero(mask *tensors.Tensor) []*tensors.Tensor {
	rank := mask.Rank()
	dims := mask.Shape().Dimensions
	perAxis := make([][]int32, rank)
	tensors.ConstFlatData(mask, func(flat []bool) {
		coords := make([]int, rank)
		for _, set := range flat {
			if set {
				for axis := range perAxis {
					perAxis[axis] = append(perAxis[axis], int32(coords[axis]))
				}
			}
			incrementCoords(coords, dims)
		}
	})
	out := make([]*tensors.Tensor, rank)
	for axis := range out {
		out[axis] = tensors.FromFlatDataAndDimensions(perAxis[axis], len(perAxis[axis]))
	}
	return out
}
