// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package slicing

import (
	"reflect"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/gomlx/slicing/backends"
	"github.com/gomlx/slicing/pkg/core/shapes"
	"github.com/gomlx/slicing/pkg/core/tensors"
)

// Take evaluates an index expression against a concrete operand: it lowers the
// expression and executes the resulting gather on the given backend, including the
// post-gather reversal and reshape steps the descriptor prescribes.
//
// Lowering panics (malformed or non-static index expressions) are recovered and
// returned as errors.
func Take(backend backends.Backend, operand *tensors.Tensor, idx ...IndexElement) (output *tensors.Tensor, err error) {
	var desc *GatherDescriptor
	err = exceptions.TryCatch[error](func() {
		desc = Lower(operand.Shape(), idx...)
	})
	if err != nil {
		return nil, err
	}
	return finishGather(backend, operand, desc)
}

// Update writes updates into the region of operand selected by an index expression,
// returning the result as a new tensor (operand is not modified). Colliding writes are
// combined with combine; plain assignment is backends.CombineSet.
//
// updates must have the operand's dtype and be broadcastable to the shape Take would
// return for the same expression.
func Update(backend backends.Backend, operand, updates *tensors.Tensor,
	combine backends.Combine, idx ...IndexElement) (output *tensors.Tensor, err error) {
	var desc *ScatterDescriptor
	var prepared *tensors.Tensor
	err = exceptions.TryCatch[error](func() {
		desc = LowerScatter(operand.Shape(), idx...)
		if updates.DType() != operand.DType() {
			grammarf("Update: updates dtype %s does not match operand dtype %s",
				updates.DType(), operand.DType())
		}
		prepared = broadcastAnyTo(updates, desc.UpdateShape)
	})
	if err != nil {
		return nil, err
	}
	return finishScatter(backend, operand, prepared, combine, desc)
}

func finishScatter(backend backends.Backend, operand, prepared *tensors.Tensor,
	combine backends.Combine, desc *ScatterDescriptor) (output *tensors.Tensor, err error) {
	if len(desc.SqueezedUpdateAxes) > 0 {
		prepared, err = backend.Reshape(prepared, removeAxes(desc.UpdateShape, desc.SqueezedUpdateAxes))
		if err != nil {
			return nil, errors.WithMessage(err, "squeeze of updates failed")
		}
	}
	if len(desc.ReversedUpdateAxes) > 0 {
		prepared, err = backend.Reverse(prepared, desc.ReversedUpdateAxes)
		if err != nil {
			return nil, errors.WithMessage(err, "reversal of updates failed")
		}
	}
	output, err = backend.Scatter(operand, desc.StartIndices, prepared,
		desc.UpdateWindowAxes, desc.InsertedWindowAxes, desc.ScatterAxisMap, combine)
	if err != nil {
		return nil, errors.WithMessage(err, "scatter failed")
	}
	return output, nil
}

// broadcastAnyTo broadcasts a tensor of any dtype to the target dimensions,
// trailing-aligned. Unlike the int32 kernels in this package it moves operand-dtype
// data, so it works through reflection on the flat slice.
func broadcastAnyTo(t *tensors.Tensor, dimensions []int) *tensors.Tensor {
	fromDims := t.Shape().Dimensions
	if slices.Equal(fromDims, dimensions) {
		return t
	}
	rank := len(dimensions)
	if t.Rank() > rank {
		grammarf("cannot broadcast updates shaped %s to %v", t.Shape(), dimensions)
	}
	offset := rank - t.Rank()
	for ii, dim := range fromDims {
		if dim != 1 && dim != dimensions[offset+ii] {
			grammarf("cannot broadcast updates shaped %s to %v", t.Shape(), dimensions)
		}
	}
	out := tensors.FromShape(shapes.Make(t.DType(), dimensions...))
	if out.Size() == 0 {
		return out
	}
	fromStrides := t.LayoutStrides()
	t.ConstFlatData(func(fromAny any) {
		out.MutableFlatData(func(toAny any) {
			from := reflect.ValueOf(fromAny)
			to := reflect.ValueOf(toAny)
			coords := make([]int, rank)
			for flatIdx := 0; flatIdx < to.Len(); flatIdx++ {
				fromIdx := 0
				for ii, dim := range fromDims {
					if dim != 1 {
						fromIdx += coords[offset+ii] * fromStrides[ii]
					}
				}
				to.Index(flatIdx).Set(from.Index(fromIdx))
				incrementCoords(coords, dimensions)
			}
		})
	})
	return out
}

// TakeWith is Take using a Cache to amortize index normalization.
func TakeWith(cache *Cache, backend backends.Backend, operand *tensors.Tensor, idx ...IndexElement) (output *tensors.Tensor, err error) {
	var desc *GatherDescriptor
	err = exceptions.TryCatch[error](func() {
		desc = cache.Lower(operand.Shape(), idx...)
	})
	if err != nil {
		return nil, err
	}
	return finishGather(backend, operand, desc)
}

// UpdateWith is Update using a Cache to amortize index normalization.
func UpdateWith(cache *Cache, backend backends.Backend, operand, updates *tensors.Tensor,
	combine backends.Combine, idx ...IndexElement) (output *tensors.Tensor, err error) {
	var desc *ScatterDescriptor
	var prepared *tensors.Tensor
	err = exceptions.TryCatch[error](func() {
		desc = cache.LowerScatter(operand.Shape(), idx...)
		if updates.DType() != operand.DType() {
			grammarf("Update: updates dtype %s does not match operand dtype %s",
				updates.DType(), operand.DType())
		}
		prepared = broadcastAnyTo(updates, desc.UpdateShape)
	})
	if err != nil {
		return nil, err
	}
	return finishScatter(backend, operand, prepared, combine, desc)
}

func finishGather(backend backends.Backend, operand *tensors.Tensor, desc *GatherDescriptor) (output *tensors.Tensor, err error) {
	output, err = backend.Gather(operand, desc.StartIndices,
		desc.OffsetOutputAxes, desc.CollapsedSliceAxes, desc.StartIndexMap, desc.GatherSliceSizes)
	if err != nil {
		return nil, errors.WithMessage(err, "gather failed")
	}
	if len(desc.ReversedOutputAxes) > 0 {
		output, err = backend.Reverse(output, desc.ReversedOutputAxes)
		if err != nil {
			return nil, errors.WithMessage(err, "reversal failed")
		}
	}
	if !slices.Equal(output.Shape().Dimensions, desc.OutputShape) {
		output, err = backend.Reshape(output, desc.OutputShape)
		if err != nil {
			return nil, errors.WithMessage(err, "reshape failed")
		}
	}
	return output, nil
}
