// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the contract between the slicing (index lowering) package and
// the tensor-execution backend that consumes its descriptors.
//
// The lowering engine never moves data itself: it produces gather/scatter descriptors
// (axis classifications plus a coordinate tensor), and a Backend performs the data
// movement. The vocabulary follows the XLA gather/scatter operation semantics
// (https://openxla.org/xla/operation_semantics#gather).
package backends

import (
	"github.com/gomlx/slicing/pkg/core/tensors"
)

// Backend performs the data movement described by gather/scatter descriptors, plus the
// two fix-up operations the lowering prescribes after a gather: reversal and reshape.
//
// Implementations must document their out-of-range index policy. The reference
// implementation in backends/simplego clamps start indices to the valid range, the same
// behavior XLA documents for gather/scatter.
type Backend interface {
	// Gather extracts slices of operand, stitched together, as described by
	// startIndices and the axis metadata.
	//
	// Arguments:
	//   - operand: values from where we are gathering. The output DType follows the
	//     operand's.
	//   - startIndices: integer tensor of shape [batchDims..., k]: the last axis is the
	//     "index vector" axis; each index vector selects the start corner of one slice of
	//     the operand. The leading batch axes are carried to the output.
	//   - offsetOutputAxes: output axes that hold the gathered slices ("offset" axes).
	//     All other output axes are batch axes, taken from startIndices in order.
	//   - collapsedSliceAxes: operand axes (sorted ascending) whose slice size is 1 and
	//     that are omitted from the output.
	//   - startIndexMap: startIndexMap[i] is the operand axis indexed by slot i of each
	//     index vector, so len(startIndexMap) == k.
	//   - sliceSizes: per-operand-axis size of the slab to extract;
	//     len(sliceSizes) == operand.Rank() and sliceSizes[a] == 1 for each collapsed axis.
	//
	// The output rank is (startIndices.Rank() - 1) + len(offsetOutputAxes).
	Gather(operand, startIndices *tensors.Tensor,
		offsetOutputAxes, collapsedSliceAxes, startIndexMap, sliceSizes []int) (*tensors.Tensor, error)

	// Scatter writes updates into a copy of operand at the positions described by
	// startIndices and the axis metadata, combining colliding values with combine.
	// It is the dual of Gather: updateWindowAxes play the role of offset axes (axes of
	// updates holding the written window), insertedWindowAxes the role of collapsed axes,
	// and scatterAxisMap the role of startIndexMap.
	//
	// The operand is not modified; the returned tensor holds the result.
	Scatter(operand, startIndices, updates *tensors.Tensor,
		updateWindowAxes, insertedWindowAxes, scatterAxisMap []int,
		combine Combine) (*tensors.Tensor, error)

	// Reverse returns operand with the given axes reversed.
	Reverse(operand *tensors.Tensor, axes []int) (*tensors.Tensor, error)

	// Reshape returns operand reshaped to dimensions. The total size cannot change.
	Reshape(operand *tensors.Tensor, dimensions []int) (*tensors.Tensor, error)
}

// Combine selects how a Scatter combines an update value with the value already stored.
type Combine int

const (
	// CombineSet overwrites the stored value with the update.
	CombineSet Combine = iota

	// CombineAdd adds the update to the stored value.
	CombineAdd

	// CombineMin keeps the smaller of the stored value and the update.
	CombineMin

	// CombineMax keeps the larger of the stored value and the update.
	CombineMax
)

// String implements fmt.Stringer.
func (c Combine) String() string {
	switch c {
	case CombineSet:
		return "CombineSet"
	case CombineAdd:
		return "CombineAdd"
	case CombineMin:
		return "CombineMin"
	case CombineMax:
		return "CombineMax"
	}
	return "CombineInvalid"
}
