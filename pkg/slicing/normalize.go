// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package slicing

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/slicing/pkg/core/shapes"
	"github.com/gomlx/slicing/pkg/core/tensors"
)

// FromAny converts a raw index -- a single element or an any-typed sequence of elements,
// as produced by language-level indexing syntax -- into a tuple of IndexElements.
//
// It preserves the legacy array-library ambiguity for a plain sequence ([]any): if the
// sequence contains anything that looks like index syntax (slices, Ellipsis, NewAxis,
// nested sequences or non-scalar arrays), it is unpacked into a tuple of elements;
// otherwise the whole sequence is a single advanced index.
func FromAny(raw any) []IndexElement {
	switch v := raw.(type) {
	case []IndexElement:
		return v
	case []any:
		unpack := false
		for _, e := range v {
			if shouldUnpackListIndex(e) {
				unpack = true
				break
			}
		}
		if !unpack {
			return []IndexElement{listToAdvanced(v)}
		}
		out := make([]IndexElement, 0, len(v))
		for _, e := range v {
			out = append(out, elementFromAny(e))
		}
		return out
	}
	return []IndexElement{elementFromAny(raw)}
}

// shouldUnpackListIndex reports whether a []any sequence member makes the sequence read
// as index syntax (and hence as a tuple of elements) instead of as one advanced index.
func shouldUnpackListIndex(e any) bool {
	switch v := e.(type) {
	case nil:
		return true // NumPy None, i.e. NewAxis.
	case IndexElement:
		return v.kind != KindInteger
	case *tensors.Tensor:
		return v.Rank() != 0
	case []any:
		return true
	}
	// Go slices other than []any are arrays, hence non-scalar.
	return reflect.TypeOf(e).Kind() == reflect.Slice
}

// listToAdvanced converts a []any of scalar integers (or scalar bools, making it a mask)
// into a single advanced-index element.
func listToAdvanced(list []any) IndexElement {
	if len(list) == 0 {
		return Indices(tensors.FromFlatDataAndDimensions([]int32{}, 0))
	}
	if _, isBool := list[0].(bool); isBool {
		// A list of boolean scalars is a boolean mask.
		data := make([]bool, len(list))
		for ii, e := range list {
			b, ok := e.(bool)
			if !ok {
				grammarf("index list mixes booleans and %T", e)
			}
			data[ii] = b
		}
		return Mask(tensors.FromFlatDataAndDimensions(data, len(data)))
	}
	data := make([]int32, len(list))
	for ii, e := range list {
		switch v := e.(type) {
		case int:
			data[ii] = int32(v)
		case int32:
			data[ii] = v
		case int64:
			data[ii] = int32(v)
		case IndexElement:
			if v.kind == KindInteger && v.static {
				data[ii] = int32(v.position)
				continue
			}
			grammarf("index list element %s cannot be part of an advanced index", v)
		default:
			grammarf("unsupported index list element type %T", e)
		}
	}
	return Indices(tensors.FromFlatDataAndDimensions(data, len(data)))
}

// elementFromAny converts one raw index element to an IndexElement.
func elementFromAny(raw any) IndexElement {
	switch v := raw.(type) {
	case nil:
		return NewAxis()
	case IndexElement:
		return v
	case int:
		return At(v)
	case int32:
		return At(int(v))
	case int64:
		return At(int(v))
	case Dynamic:
		return AtValue(v)
	case *tensors.Tensor:
		return tensorToElement(v)
	case []any:
		return listToAdvanced(v)
	}
	if reflect.TypeOf(raw).Kind() == reflect.Slice {
		return tensorToElement(tensors.FromAnyValue(raw))
	}
	grammarf("unsupported index element type %T", raw)
	return IndexElement{}
}

func tensorToElement(t *tensors.Tensor) IndexElement {
	switch {
	case t.DType() == dtypes.Bool:
		return Mask(t)
	case t.DType().IsInt():
		// Rank-0 integer tensors stay advanced: whether they lower as plain integers
		// depends on the ranks of every other advanced element in the expression.
		return Indices(t)
	}
	grammarf("index arrays must be integer or boolean, got %s", t.Shape())
	return IndexElement{}
}

// Normalize expands a tuple of IndexElements into the canonical form consumed by Lower:
//
//  1. Boolean masks are replaced by advanced integer indices, one per mask axis, via the
//     positions where the mask is true. Masks must be statically known.
//  2. At most one Ellipsis is permitted; it is replaced by the Full elements needed to
//     make the element count (excluding NewAxis) match the operand rank.
//  3. Fewer elements than the operand rank (without an Ellipsis) are padded on the right
//     with Full. More elements than the operand rank is an error.
//
// The result has exactly operand.Rank() + count(NewAxis) elements and no Ellipsis or
// Mask. Normalizing an already-normalized index returns it unchanged.
func Normalize(operand shapes.Shape, idx []IndexElement) []IndexElement {
	idx = expandMasks(idx)

	rank := operand.Rank()
	numConsuming := 0
	ellipsisPos := -1
	for pos, e := range idx {
		switch e.kind {
		case KindNewAxis:
			// Consumes no operand axis.
		case KindEllipsis:
			if ellipsisPos >= 0 {
				grammarf("multiple ellipses (...) in index expression, at positions %d and %d", ellipsisPos, pos)
			}
			ellipsisPos = pos
		case KindInvalid:
			grammarf("invalid (zero) IndexElement at position %d", pos)
		default:
			numConsuming++
		}
	}
	if numConsuming > rank {
		grammarf("too many indices for operand: %d indices for rank %d", numConsuming, rank)
	}
	missing := rank - numConsuming
	if ellipsisPos < 0 && missing == 0 {
		return idx
	}

	out := make([]IndexElement, 0, len(idx)+missing)
	if ellipsisPos >= 0 {
		out = append(out, idx[:ellipsisPos]...)
		for ii := 0; ii < missing; ii++ {
			out = append(out, Full())
		}
		out = append(out, idx[ellipsisPos+1:]...)
	} else {
		out = append(out, idx...)
		for ii := 0; ii < missing; ii++ {
			out = append(out, Full())
		}
	}
	return out
}

// expandMasks converts each boolean mask into one advanced integer index per mask axis,
// flattening the mask's axes into the advanced-index group. No-op if there are no masks.
func expandMasks(idx []IndexElement) []IndexElement {
	hasMask := false
	for _, e := range idx {
		if e.kind == KindMask {
			hasMask = true
			break
		}
	}
	if !hasMask {
		return idx
	}
	out := make([]IndexElement, 0, len(idx))
	for _, e := range idx {
		if e.kind != KindMask {
			out = append(out, e)
			continue
		}
		if e.array == nil {
			staticityf("boolean indices must be static, got a dynamic mask %v", e.dyn)
		}
		if e.array.Rank() == 0 {
			grammarf("scalar boolean indices are not supported, reshape the mask to rank >= 1")
		}
		for _, positions := range nonzero(e.array) {
			out = append(out, IndexElement{kind: KindAdvanced, array: positions})
		}
	}
	return out
}
