// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package simplego is a pure Go reference implementation of backends.Backend.
//
// It favors clarity over speed: everything is an element-by-element loop over the
// output, and it is meant for tests and as executable documentation of the descriptor
// semantics, not for large tensors.
//
// Out-of-range policy: start indices are clamped so every extracted (or written) slab
// fits inside the operand, axis by axis, the same behavior XLA documents for
// gather/scatter. Callers that want errors instead must validate positions beforehand.
package simplego

import (
	"reflect"
	"slices"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/slicing/backends"
	"github.com/gomlx/slicing/pkg/core/shapes"
	"github.com/gomlx/slicing/pkg/core/tensors"
	"github.com/gomlx/slicing/pkg/support/sets"
	"github.com/gomlx/slicing/pkg/support/xslices"
)

// Backend implements backends.Backend on the host, with reflection-based element moves.
// The zero value is ready to use.
type Backend struct{}

// New returns a host reference backend.
func New() *Backend { return &Backend{} }

var _ backends.Backend = (*Backend)(nil)

// Gather implements backends.Backend.
func (b *Backend) Gather(operand, startIndices *tensors.Tensor,
	offsetOutputAxes, collapsedSliceAxes, startIndexMap, sliceSizes []int) (*tensors.Tensor, error) {
	if len(sliceSizes) != operand.Rank() {
		return nil, errors.Errorf("Gather: %d slice sizes for operand rank %d", len(sliceSizes), operand.Rank())
	}
	startAt, err := indexReader(startIndices)
	if err != nil {
		return nil, errors.WithMessage(err, "Gather")
	}
	indicesDims := startIndices.Shape().Dimensions
	batchDims := indicesDims[:len(indicesDims)-1]
	numSlots := indicesDims[len(indicesDims)-1]
	if numSlots != len(startIndexMap) {
		return nil, errors.Errorf("Gather: startIndices has %d coordinate slots, startIndexMap has %d", numSlots, len(startIndexMap))
	}
	if !slices.IsSorted(offsetOutputAxes) || !slices.IsSorted(collapsedSliceAxes) {
		return nil, errors.Errorf("Gather: offsetOutputAxes and collapsedSliceAxes must be sorted ascending")
	}

	// Operand axes surviving into the output, paired with offsetOutputAxes in order.
	collapsed := sets.MakeWith(collapsedSliceAxes...)
	var offsetOperandAxes []int
	for axis := 0; axis < operand.Rank(); axis++ {
		if !collapsed.Has(axis) {
			offsetOperandAxes = append(offsetOperandAxes, axis)
		}
	}
	if len(offsetOperandAxes) != len(offsetOutputAxes) {
		return nil, errors.Errorf("Gather: %d offset output axes for %d non-collapsed operand axes",
			len(offsetOutputAxes), len(offsetOperandAxes))
	}

	outputRank := len(batchDims) + len(offsetOutputAxes)
	offsetSet := sets.MakeWith(offsetOutputAxes...)
	outputDims := make([]int, outputRank)
	// outputAxisRole[axis] = operand axis for offset axes, or ^batchAxis for batch axes.
	outputAxisRole := make([]int, outputRank)
	batchAxis := 0
	offsetPos := 0
	for axis := 0; axis < outputRank; axis++ {
		if offsetSet.Has(axis) {
			operandAxis := offsetOperandAxes[offsetPos]
			offsetPos++
			outputDims[axis] = sliceSizes[operandAxis]
			outputAxisRole[axis] = operandAxis
		} else {
			if batchAxis >= len(batchDims) {
				return nil, errors.Errorf("Gather: output axis %d has no batch dimension left", axis)
			}
			outputDims[axis] = batchDims[batchAxis]
			outputAxisRole[axis] = ^batchAxis
			batchAxis++
		}
	}

	output := tensors.FromShape(shapes.Make(operand.DType(), outputDims...))
	if output.Size() == 0 {
		return output, nil
	}
	operandDims := operand.Shape().Dimensions
	operandStrides := operand.LayoutStrides()
	batchStrides := shapes.Make(dtypes.Int32, append(slices.Clone(batchDims), 1)...).Strides()

	operand.ConstFlatData(func(fromAny any) {
		output.MutableFlatData(func(toAny any) {
			from := reflect.ValueOf(fromAny)
			to := reflect.ValueOf(toAny)
			coords := make([]int, outputRank)
			operandCoords := make([]int, operand.Rank())
			for outFlat := 0; outFlat < to.Len(); outFlat++ {
				// Row of startIndices selected by the batch coordinates.
				row := 0
				for axis, role := range outputAxisRole {
					if role < 0 {
						row += coords[axis] * batchStrides[^role]
					}
				}
				// Start corner, clamped so the slab fits.
				for axis := range operandCoords {
					operandCoords[axis] = 0
				}
				for slot, operandAxis := range startIndexMap {
					start := startAt(row*numSlots + slot)
					operandCoords[operandAxis] = clamp(start, 0, operandDims[operandAxis]-sliceSizes[operandAxis])
				}
				// Within-slab offsets.
				for axis, role := range outputAxisRole {
					if role >= 0 {
						operandCoords[role] += coords[axis]
					}
				}
				fromFlat := 0
				for axis, c := range operandCoords {
					fromFlat += c * operandStrides[axis]
				}
				to.Index(outFlat).Set(from.Index(fromFlat))
				incrCoords(coords, outputDims)
			}
		})
	})
	return output, nil
}

// Scatter implements backends.Backend. The operand is cloned; colliding updates are
// applied in the row-major order of the updates tensor.
func (b *Backend) Scatter(operand, startIndices, updates *tensors.Tensor,
	updateWindowAxes, insertedWindowAxes, scatterAxisMap []int,
	combine backends.Combine) (*tensors.Tensor, error) {
	if updates.DType() != operand.DType() {
		return nil, errors.Errorf("Scatter: updates dtype %s vs operand dtype %s", updates.DType(), operand.DType())
	}
	startAt, err := indexReader(startIndices)
	if err != nil {
		return nil, errors.WithMessage(err, "Scatter")
	}
	indicesDims := startIndices.Shape().Dimensions
	batchDims := indicesDims[:len(indicesDims)-1]
	numSlots := indicesDims[len(indicesDims)-1]
	if numSlots != len(scatterAxisMap) {
		return nil, errors.Errorf("Scatter: startIndices has %d coordinate slots, scatterAxisMap has %d", numSlots, len(scatterAxisMap))
	}

	inserted := sets.MakeWith(insertedWindowAxes...)
	var windowOperandAxes []int
	for axis := 0; axis < operand.Rank(); axis++ {
		if !inserted.Has(axis) {
			windowOperandAxes = append(windowOperandAxes, axis)
		}
	}
	if len(windowOperandAxes) != len(updateWindowAxes) {
		return nil, errors.Errorf("Scatter: %d update window axes for %d non-inserted operand axes",
			len(updateWindowAxes), len(windowOperandAxes))
	}
	updatesRank := updates.Rank()
	if updatesRank != len(batchDims)+len(updateWindowAxes) {
		return nil, errors.Errorf("Scatter: updates rank %d, want %d batch + %d window axes",
			updatesRank, len(batchDims), len(updateWindowAxes))
	}

	// Per-operand-axis window size, 1 on inserted axes.
	operandDims := operand.Shape().Dimensions
	windowSizes := xslices.SliceWithValue(operand.Rank(), 1)
	updatesDims := updates.Shape().Dimensions
	windowSet := sets.MakeWith(updateWindowAxes...)
	updateAxisRole := make([]int, updatesRank) // Operand axis, or ^batchAxis.
	batchAxis, windowPos := 0, 0
	for axis := 0; axis < updatesRank; axis++ {
		if windowSet.Has(axis) {
			operandAxis := windowOperandAxes[windowPos]
			windowPos++
			windowSizes[operandAxis] = updatesDims[axis]
			updateAxisRole[axis] = operandAxis
		} else {
			if batchAxis >= len(batchDims) {
				return nil, errors.Errorf("Scatter: updates axis %d has no batch dimension left", axis)
			}
			if updatesDims[axis] != batchDims[batchAxis] {
				return nil, errors.Errorf("Scatter: updates axis %d has size %d, batch dimension is %d",
					axis, updatesDims[axis], batchDims[batchAxis])
			}
			updateAxisRole[axis] = ^batchAxis
			batchAxis++
		}
	}
	for axis, size := range windowSizes {
		if size > operandDims[axis] {
			return nil, errors.Errorf("Scatter: window of size %d does not fit operand axis %d (size %d)",
				size, axis, operandDims[axis])
		}
	}

	output := operand.Clone()
	if updates.Size() == 0 {
		return output, nil
	}
	operandStrides := operand.LayoutStrides()
	batchStrides := shapes.Make(dtypes.Int32, append(slices.Clone(batchDims), 1)...).Strides()
	combineAt, err := combiner(output, updates, combine)
	if err != nil {
		return nil, err
	}

	coords := make([]int, updatesRank)
	operandCoords := make([]int, operand.Rank())
	for upFlat := 0; upFlat < updates.Size(); upFlat++ {
		row := 0
		for axis, role := range updateAxisRole {
			if role < 0 {
				row += coords[axis] * batchStrides[^role]
			}
		}
		for axis := range operandCoords {
			operandCoords[axis] = 0
		}
		for slot, operandAxis := range scatterAxisMap {
			start := startAt(row*numSlots + slot)
			operandCoords[operandAxis] = clamp(start, 0, operandDims[operandAxis]-windowSizes[operandAxis])
		}
		for axis, role := range updateAxisRole {
			if role >= 0 {
				operandCoords[role] += coords[axis]
			}
		}
		toFlat := 0
		for axis, c := range operandCoords {
			toFlat += c * operandStrides[axis]
		}
		combineAt(toFlat, upFlat)
		incrCoords(coords, updatesDims)
	}
	return output, nil
}

// Reverse implements backends.Backend.
func (b *Backend) Reverse(operand *tensors.Tensor, axes []int) (*tensors.Tensor, error) {
	dims := operand.Shape().Dimensions
	for _, axis := range axes {
		if axis < 0 || axis >= len(dims) {
			return nil, errors.Errorf("Reverse: axis %d out of range for rank %d", axis, len(dims))
		}
	}
	output := tensors.FromShape(operand.Shape().Clone())
	if output.Size() == 0 {
		return output, nil
	}
	reversed := sets.MakeWith(axes...)
	strides := operand.LayoutStrides()
	operand.ConstFlatData(func(fromAny any) {
		output.MutableFlatData(func(toAny any) {
			from := reflect.ValueOf(fromAny)
			to := reflect.ValueOf(toAny)
			coords := make([]int, len(dims))
			for outFlat := 0; outFlat < to.Len(); outFlat++ {
				fromFlat := 0
				for axis, c := range coords {
					if reversed.Has(axis) {
						c = dims[axis] - 1 - c
					}
					fromFlat += c * strides[axis]
				}
				to.Index(outFlat).Set(from.Index(fromFlat))
				incrCoords(coords, dims)
			}
		})
	})
	return output, nil
}

// Reshape implements backends.Backend. The result shares the operand's storage.
func (b *Backend) Reshape(operand *tensors.Tensor, dimensions []int) (*tensors.Tensor, error) {
	newSize := 1
	for _, dim := range dimensions {
		newSize *= dim
	}
	if newSize != operand.Size() {
		return nil, errors.Errorf("Reshape: cannot reshape %s to %v", operand.Shape(), dimensions)
	}
	return operand.Reshape(dimensions...), nil
}

// indexReader returns flat int access to an integer coordinate tensor.
func indexReader(startIndices *tensors.Tensor) (func(flat int) int, error) {
	switch startIndices.DType() {
	case dtypes.Int32:
		flat := tensors.CopyFlatData[int32](startIndices)
		return func(ii int) int { return int(flat[ii]) }, nil
	case dtypes.Int64:
		flat := tensors.CopyFlatData[int64](startIndices)
		return func(ii int) int { return int(flat[ii]) }, nil
	}
	return nil, errors.Errorf("start indices must be Int32 or Int64, got %s", startIndices.Shape())
}

// combiner returns a closure applying one update element into the output's flat data.
func combiner(output, updates *tensors.Tensor, combine backends.Combine) (func(toFlat, upFlat int), error) {
	switch output.DType() {
	case dtypes.Bool:
		if combine != backends.CombineSet {
			return nil, errors.Errorf("combine mode %s is not supported for %s operands", combine, output.DType())
		}
	case dtypes.Float16:
		// Arithmetic in float32, stored back as float16.
		var to []float16.Float16
		output.MutableFlatData(func(flat any) { to = flat.([]float16.Float16) })
		up := tensors.CopyFlatData[float16.Float16](updates)
		return func(toFlat, upFlat int) {
			v := combineValues(to[toFlat].Float32(), up[upFlat].Float32(), combine)
			to[toFlat] = float16.Fromfloat32(v)
		}, nil
	}
	if combine == backends.CombineSet {
		var to, up reflect.Value
		output.MutableFlatData(func(flat any) { to = reflect.ValueOf(flat) })
		updates.ConstFlatData(func(flat any) { up = reflect.ValueOf(flat) })
		return func(toFlat, upFlat int) {
			to.Index(toFlat).Set(up.Index(upFlat))
		}, nil
	}
	switch output.DType() {
	case dtypes.Float32:
		return numericCombiner[float32](output, updates, combine), nil
	case dtypes.Float64:
		return numericCombiner[float64](output, updates, combine), nil
	case dtypes.Int8:
		return numericCombiner[int8](output, updates, combine), nil
	case dtypes.Int16:
		return numericCombiner[int16](output, updates, combine), nil
	case dtypes.Int32:
		return numericCombiner[int32](output, updates, combine), nil
	case dtypes.Int64:
		return numericCombiner[int64](output, updates, combine), nil
	case dtypes.Uint8:
		return numericCombiner[uint8](output, updates, combine), nil
	case dtypes.Uint16:
		return numericCombiner[uint16](output, updates, combine), nil
	case dtypes.Uint32:
		return numericCombiner[uint32](output, updates, combine), nil
	case dtypes.Uint64:
		return numericCombiner[uint64](output, updates, combine), nil
	}
	return nil, errors.Errorf("combine mode %s is not supported for %s operands", combine, output.DType())
}

func numericCombiner[T interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}](output, updates *tensors.Tensor, combine backends.Combine) func(toFlat, upFlat int) {
	var to []T
	output.MutableFlatData(func(flat any) { to = flat.([]T) })
	up := tensors.CopyFlatData[T](updates)
	return func(toFlat, upFlat int) {
		to[toFlat] = combineValues(to[toFlat], up[upFlat], combine)
	}
}

func combineValues[T interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}](stored, update T, combine backends.Combine) T {
	switch combine {
	case backends.CombineAdd:
		return stored + update
	case backends.CombineMin:
		return min(stored, update)
	case backends.CombineMax:
		return max(stored, update)
	}
	return update
}

func clamp(v, low, high int) int {
	return min(max(v, low), high)
}

func incrCoords(coords, dims []int) {
	for axis := len(coords) - 1; axis >= 0; axis-- {
		coords[axis]++
		if coords[axis] < dims[axis] {
			return
		}
		coords[axis] = 0
	}
}
