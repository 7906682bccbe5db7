// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package slicing

import (
	"slices"

	"k8s.io/klog/v2"

	"github.com/gomlx/slicing/pkg/core/shapes"
	"github.com/gomlx/slicing/pkg/core/tensors"
	"github.com/gomlx/slicing/pkg/support/sets"
	"github.com/gomlx/slicing/pkg/support/xslices"
)

// GatherDescriptor is the output of Lower: everything a backends.Backend needs to
// execute an index expression as a single gather, followed by a reversal of the
// negative-stride axes and a reshape that materializes NewAxis dimensions.
//
// Two different axis numberings appear below. "Pre-reshape" axes number the direct
// output of the gather (PreReshapeShape); "output" axes number the final result
// (OutputShape), which additionally counts the size-1 axes listed in
// InsertedOutputAxes.
type GatherDescriptor struct {
	// OutputShape is the full result shape, including the size-1 axes introduced by
	// NewAxis elements.
	OutputShape []int

	// PreReshapeShape is the shape of the gather's direct output, before the reshape
	// inserts NewAxis dimensions. Reversal (ReversedOutputAxes) happens on this shape.
	PreReshapeShape []int

	// GatherSliceSizes is the per-operand-axis slab size to extract: 1 for collapsed and
	// advanced axes, the retained span otherwise. len == operand rank.
	GatherSliceSizes []int

	// StartIndices is the coordinate tensor: the concatenation, along a trailing
	// coordinate axis, of every per-axis position contributed by Integer, AdvancedIndex
	// and strided-slice elements. Shape = leading broadcast dimensions + [k], dtype
	// Int32, where k == len(StartIndexMap).
	StartIndices *tensors.Tensor

	// OffsetOutputAxes are the pre-reshape output axes holding whole retained input
	// spans (from Full and unit-stride slices).
	OffsetOutputAxes []int

	// CollapsedSliceAxes are the operand axes fully consumed by a single coordinate
	// (integers, advanced indices, strided slices), sorted ascending.
	CollapsedSliceAxes []int

	// StartIndexMap maps each coordinate-tensor slot back to the operand axis it
	// indexes.
	StartIndexMap []int

	// ReversedOutputAxes are pre-reshape output axes requiring a reversal pass after the
	// gather: they come from negative-stride slices, which are gathered ascending.
	ReversedOutputAxes []int

	// InsertedOutputAxes are output axes to be materialized by the final reshape only
	// (from NewAxis elements).
	InsertedOutputAxes []int
}

// lowerState is the accumulator threaded through the left-to-right fold over the
// normalized index elements. Methods return an updated copy.
type lowerState struct {
	// Running axis counters: current operand axis, current output axis before collapse
	// accounting, and current output axis after collapse.
	xAxis, yAxis, collapsedYAxis int

	gatherIndices *tensors.Tensor // Coordinate tensor under construction: leading dims + [k].

	offsetOutputAxes   []int
	collapsedSliceAxes []int
	startIndexMap      []int
	sliceShape         []int // Output shape under construction, NewAxis included.
	gatherSliceSizes   []int
	insertedOutputAxes []int
	reversedOutputAxes []int
}

// leadingDims returns the batch dimensions of the coordinate tensor under construction.
func (st lowerState) leadingDims() []int {
	dims := st.gatherIndices.Shape().Dimensions
	return dims[:len(dims)-1]
}

// Lower translates an index expression over an operand of the given shape into a
// GatherDescriptor. The index is normalized first (Normalize is idempotent, so both raw
// and normalized indices are accepted).
//
// It panics with an ErrInvalidIndex error on a malformed expression and with an
// ErrNonStaticIndex error if a slice bound, mask or index value is not available at
// lowering time. Out-of-range positions are not checked here: their handling is the
// consuming backend's documented behavior.
func Lower(operand shapes.Shape, idx ...IndexElement) *GatherDescriptor {
	idx = Normalize(operand, idx)
	idx = demoteScalarAdvanced(idx)

	// Locate the advanced-index group and normalize its arrays: each advanced element
	// consumes one operand axis; all arrays are broadcast to a common shape at the point
	// where the first one appears -- or logically relocated to the front of the output
	// if the group is non-contiguous.
	var advPositions, advOperandAxes []int
	var advArrays []*tensors.Tensor
	xAxis := 0
	for pos, e := range idx {
		if e.kind == KindNewAxis {
			continue
		}
		if e.kind == KindAdvanced {
			advPositions = append(advPositions, pos)
			advOperandAxes = append(advOperandAxes, xAxis)
			advArrays = append(advArrays, normalizePositions(toInt32(resolveArray(e)), operand.Dim(xAxis)))
		}
		xAxis++
	}
	advContiguous := true
	for ii := 1; ii < len(advPositions); ii++ {
		if advPositions[ii] != advPositions[ii-1]+1 {
			advContiguous = false
			break
		}
	}
	advSet := sets.MakeWith(advPositions...)

	st := lowerState{
		gatherIndices:    zerosInt32(0),
		gatherSliceSizes: make([]int, 0, operand.Rank()),
	}
	for pos, e := range idx {
		// The advanced group is handled as a block: at the first advanced position when
		// contiguous, at the very front when not.
		if len(advPositions) > 0 &&
			((advContiguous && pos == advPositions[0]) || (!advContiguous && pos == 0)) {
			st = st.appendAdvancedGroup(advArrays, advOperandAxes)
		}
		if advSet.Has(pos) {
			// Bookkeeping only: the block above contributed the coordinates.
			st.xAxis++
			st.gatherSliceSizes = append(st.gatherSliceSizes, 1)
			continue
		}
		switch e.kind {
		case KindInteger:
			st = st.appendInteger(e, operand, pos)
		case KindNewAxis:
			st.sliceShape = append(st.sliceShape, 1)
			st.insertedOutputAxes = append(st.insertedOutputAxes, st.yAxis)
			st.yAxis++
		case KindFull:
			dim := operand.Dim(st.xAxis)
			st.sliceShape = append(st.sliceShape, dim)
			st.gatherSliceSizes = append(st.gatherSliceSizes, dim)
			st.offsetOutputAxes = append(st.offsetOutputAxes, st.collapsedYAxis)
			st.collapsedYAxis++
			st.yAxis++
			st.xAxis++
		case KindSlice:
			st = st.appendSlice(e, operand, pos)
		default:
			grammarf("index element %s at position %d is not supported in lowering", e, pos)
		}
	}

	desc := &GatherDescriptor{
		OutputShape:        st.sliceShape,
		PreReshapeShape:    removeAxes(st.sliceShape, st.insertedOutputAxes),
		GatherSliceSizes:   st.gatherSliceSizes,
		StartIndices:       st.gatherIndices,
		OffsetOutputAxes:   st.offsetOutputAxes,
		CollapsedSliceAxes: slices.Sorted(slices.Values(st.collapsedSliceAxes)),
		StartIndexMap:      st.startIndexMap,
		ReversedOutputAxes: st.reversedOutputAxes,
		InsertedOutputAxes: st.insertedOutputAxes,
	}
	if klog.V(2).Enabled() {
		klog.Infof("slicing.Lower(%s, %v): output shape %v, %d coordinate slots, coordinates shaped %s",
			operand, idx, desc.OutputShape, len(desc.StartIndexMap), desc.StartIndices.Shape())
	}
	return desc
}

// demoteScalarAdvanced converts advanced elements to plain integers when every advanced
// element in the expression is rank-0: scalar index arrays alone do not trigger advanced
// indexing, matching NumPy semantics.
func demoteScalarAdvanced(idx []IndexElement) []IndexElement {
	anyAdvanced := false
	for _, e := range idx {
		if e.kind == KindAdvanced {
			if e.array == nil || e.array.Rank() > 0 {
				return idx
			}
			anyAdvanced = true
		}
	}
	if !anyAdvanced {
		return idx
	}
	out := xslices.Copy(idx)
	for ii, e := range out {
		if e.kind == KindAdvanced {
			out[ii] = IndexElement{kind: KindInteger, scalar: e.array}
		}
	}
	return out
}

// resolveArray returns the concrete tensor behind an advanced element, or raises the
// staticity error for values not available at lowering time.
func resolveArray(e IndexElement) *tensors.Tensor {
	if e.array != nil {
		return e.array
	}
	if t, ok := e.dyn.(*tensors.Tensor); ok && t.DType().IsInt() {
		return t
	}
	staticityf("advanced index value is not available at lowering time (%T); use the backend's dynamic-slice primitives instead", e.dyn)
	return nil
}

// appendAdvancedGroup broadcasts the advanced-index arrays to their common shape and
// concatenates them into the coordinate tensor, collapsing their operand axes.
func (st lowerState) appendAdvancedGroup(advArrays []*tensors.Tensor, advOperandAxes []int) lowerState {
	common := advArrays[0].Shape().Dimensions
	for _, a := range advArrays[1:] {
		common = broadcastShapes(common, a.Shape().Dimensions)
	}
	ndim := len(common)

	// Grow the coordinate tensor from [leading..., k] to [leading..., common..., k], and
	// broadcast each advanced array to [leading..., common..., 1] so they concatenate.
	oldDims := st.gatherIndices.Shape().Dimensions
	oldLeading := oldDims[:len(oldDims)-1]
	newLeading := append(xslices.Copy(oldLeading), common...)
	grown := broadcastInDim(st.gatherIndices,
		append(xslices.Copy(newLeading), xslices.Last(oldDims)),
		append(xslices.Iota(0, len(oldLeading)), len(newLeading)))
	partAxes := append(xslices.Iota(len(oldLeading), ndim), len(newLeading))
	parts := xslices.Map(advArrays, func(a *tensors.Tensor) *tensors.Tensor {
		expanded := broadcastTo(a, common).Reshape(append(xslices.Copy(common), 1)...)
		return broadcastInDim(expanded, append(xslices.Copy(newLeading), 1), partAxes)
	})
	st.gatherIndices = concatLast(append([]*tensors.Tensor{grown}, parts...)...)

	st.startIndexMap = append(st.startIndexMap, advOperandAxes...)
	st.collapsedSliceAxes = append(st.collapsedSliceAxes, advOperandAxes...)
	st.sliceShape = append(st.sliceShape, common...)
	st.yAxis += ndim
	st.collapsedYAxis += ndim
	return st
}

// appendInteger contributes one coordinate slot for a scalar position, collapsing its
// operand axis. Negative positions are shifted by the axis dimension; out-of-range
// positions are deliberately not checked here.
func (st lowerState) appendInteger(e IndexElement, operand shapes.Shape, pos int) lowerState {
	dim := operand.Dim(st.xAxis)
	position := resolvePosition(e, pos)
	if position < 0 {
		position += dim
	}
	coord := fullInt32(int32(position), append(xslices.Copy(st.leadingDims()), 1)...)
	st.gatherIndices = concatLast(st.gatherIndices, coord)
	st.collapsedSliceAxes = append(st.collapsedSliceAxes, st.xAxis)
	st.gatherSliceSizes = append(st.gatherSliceSizes, 1)
	st.startIndexMap = append(st.startIndexMap, st.xAxis)
	st.xAxis++
	return st
}

func resolvePosition(e IndexElement, pos int) int {
	if e.static {
		return e.position
	}
	scalar := e.scalar
	if scalar == nil {
		if t, ok := e.dyn.(*tensors.Tensor); ok && t.IsScalar() && t.DType().IsInt() {
			scalar = t
		} else {
			staticityf("integer index at position %d is not available at lowering time (%T); use the backend's dynamic-slice primitives instead", pos, e.dyn)
		}
	}
	return int(tensors.ToScalar[int32](toInt32(scalar)))
}

// appendSlice contributes a bounded/strided slice: unit strides become a slab extraction
// with an offset output axis; other strides materialize an explicit ascending position
// sequence, with a post-gather reversal when the original stride was negative.
func (st lowerState) appendSlice(e IndexElement, operand shapes.Shape, pos int) lowerState {
	if e.dynStart != nil || e.dynStop != nil || e.dynStep != nil {
		staticityf("slice at position %d must have static start/stop/step to be lowered; use the backend's dynamic-slice primitives instead", pos)
	}
	dim := operand.Dim(st.xAxis)
	start, limit, stride, needsReversal := staticSliceIndices(e, dim)
	if needsReversal {
		st.reversedOutputAxes = append(st.reversedOutputAxes, st.collapsedYAxis)
	}
	if stride == 1 {
		coord := fullInt32(int32(start), append(xslices.Copy(st.leadingDims()), 1)...)
		st.gatherIndices = concatLast(st.gatherIndices, coord)
		st.sliceShape = append(st.sliceShape, limit-start)
		st.gatherSliceSizes = append(st.gatherSliceSizes, limit-start)
		st.offsetOutputAxes = append(st.offsetOutputAxes, st.collapsedYAxis)
		st.startIndexMap = append(st.startIndexMap, st.xAxis)
	} else {
		positions := arangeInt32(start, limit, stride)
		size := positions.Shape().Dimensions[0]
		st.sliceShape = append(st.sliceShape, size)
		st.gatherSliceSizes = append(st.gatherSliceSizes, 1)

		// Both the coordinate tensor and the new position sequence grow to
		// [leading..., size, k or 1] before concatenation.
		oldDims := st.gatherIndices.Shape().Dimensions
		oldLeading := oldDims[:len(oldDims)-1]
		newLeading := append(xslices.Copy(oldLeading), size)
		grownPositions := broadcastInDim(positions, append(xslices.Copy(newLeading), 1), []int{len(newLeading) - 1})
		grown := broadcastInDim(st.gatherIndices,
			append(xslices.Copy(newLeading), xslices.Last(oldDims)),
			append(xslices.Iota(0, len(oldLeading)), len(newLeading)))
		st.gatherIndices = concatLast(grown, grownPositions)

		st.startIndexMap = append(st.startIndexMap, st.xAxis)
		st.collapsedSliceAxes = append(st.collapsedSliceAxes, st.xAxis)
	}
	st.collapsedYAxis++
	st.yAxis++
	st.xAxis++
	return st
}

// staticSliceIndices resolves a slice element against an axis dimension into concrete
// (start, limit, stride, needsReversal), with stride always positive: negative-stride
// slices are rewritten to their ascending equivalent and flagged for reversal.
// An empty selection resolves to (0, 0, 1, false) rather than an error.
func staticSliceIndices(e IndexElement, dim int) (start, limit, stride int, needsReversal bool) {
	start, stop, step := sliceIndices(e, dim)
	if (step < 0 && stop >= start) || (step > 0 && start >= stop) {
		return 0, 0, 1, false // Sliced to size zero.
	}
	if step > 0 {
		return start, stop, step, false
	}
	k := mod(start-stop-1, -step)
	return stop + k + 1, start + 1, -step, true
}

// sliceIndices implements the Python slice.indices(dim) resolution: unset bounds default
// by step direction, negative bounds wrap from the end, and everything is clamped to the
// valid range for the direction.
func sliceIndices(e IndexElement, dim int) (start, stop, step int) {
	step = 1
	if e.hasStep {
		step = e.step
	}
	if step == 0 {
		grammarf("slice step cannot be zero")
	}

	if step > 0 {
		start, stop = 0, dim
	} else {
		// -1 marks "one before position 0", Python's internal default for negative steps.
		start, stop = dim-1, -1
	}
	if e.hasStart {
		start = e.start
		if start < 0 {
			start += dim
		}
		start = clampInt(start, boolToInt(step < 0)*-1, dim-boolToInt(step < 0))
	}
	if e.hasStop {
		stop = e.stop
		if stop < 0 {
			stop += dim
		}
		stop = clampInt(stop, boolToInt(step < 0)*-1, dim-boolToInt(step < 0))
	}
	return
}

func clampInt(v, low, high int) int {
	return min(max(v, low), high)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mod is the Python modulo: the result takes the sign of the divisor.
func mod(a, b int) int {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

// removeAxes returns dims without the axes listed in axes (positions in dims).
func removeAxes(dims []int, axes []int) []int {
	if len(axes) == 0 {
		return dims
	}
	drop := sets.MakeWith(axes...)
	out := make([]int, 0, len(dims)-len(axes))
	for axis, dim := range dims {
		if !drop.Has(axis) {
			out = append(out, dim)
		}
	}
	return out
}
