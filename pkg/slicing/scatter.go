// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package slicing

import (
	"github.com/gomlx/slicing/pkg/core/shapes"
	"github.com/gomlx/slicing/pkg/core/tensors"
)

// ScatterDescriptor is the output of LowerScatter: everything a backends.Backend needs
// to execute an in-place update expression (operand[idx] = updates and variants) as a
// single scatter.
//
// Scatter is the dual of gather, and the descriptor is derived from the gather one for
// the same index expression: the axes of the updates tensor holding the written window
// correspond to the gather's offset output axes, the operand axes entered by a single
// coordinate to the gather's collapsed axes, and the coordinate slot mapping is shared.
type ScatterDescriptor struct {
	// StartIndices is the same coordinate tensor a gather of the expression would use:
	// shape [batchDims..., k], dtype Int32.
	StartIndices *tensors.Tensor

	// UpdateWindowAxes are the axes of the (prepared) updates tensor that hold the
	// written window.
	UpdateWindowAxes []int

	// InsertedWindowAxes are the operand axes written at a single coordinate, sorted
	// ascending.
	InsertedWindowAxes []int

	// ScatterAxisMap maps each coordinate-tensor slot to the operand axis it addresses.
	ScatterAxisMap []int

	// UpdateShape is the shape the caller-provided updates must be broadcast to before
	// preparation: it matches the gather's output shape, NewAxis dimensions included.
	UpdateShape []int

	// SqueezedUpdateAxes are the size-1 axes of UpdateShape (from NewAxis elements) to
	// squeeze away before the scatter.
	SqueezedUpdateAxes []int

	// ReversedUpdateAxes are axes of the squeezed updates to reverse before the scatter,
	// mirroring the gather's post-reversal of negative-stride slices.
	ReversedUpdateAxes []int
}

// LowerScatter translates an index expression over an operand of the given shape into a
// ScatterDescriptor, for updating the indexed region instead of reading it.
//
// Updates are prepared in three steps before the scatter: broadcast to UpdateShape,
// squeeze SqueezedUpdateAxes, reverse ReversedUpdateAxes. Update and the tests in this
// package show the sequence end to end.
//
// Same error behavior as Lower.
func LowerScatter(operand shapes.Shape, idx ...IndexElement) *ScatterDescriptor {
	return scatterFromGather(Lower(operand, idx...))
}

func scatterFromGather(g *GatherDescriptor) *ScatterDescriptor {
	return &ScatterDescriptor{
		StartIndices:       g.StartIndices,
		UpdateWindowAxes:   g.OffsetOutputAxes,
		InsertedWindowAxes: g.CollapsedSliceAxes,
		ScatterAxisMap:     g.StartIndexMap,
		UpdateShape:        g.OutputShape,
		SqueezedUpdateAxes: g.InsertedOutputAxes,
		ReversedUpdateAxes: g.ReversedOutputAxes,
	}
}
