// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package slicing

import (
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"github.com/gomlx/slicing/pkg/core/shapes"
	"github.com/gomlx/slicing/pkg/core/tensors"
	"github.com/gomlx/slicing/pkg/support/xsync"
)

// Skeleton is the static structure of an index expression: the element kinds, slice
// bounds and advanced-array shapes, with the value payloads (integer positions, index
// arrays, dynamic handles) stripped out. Two expressions with equal skeletons lower the
// same way, so Key is a valid plan-cache key.
type Skeleton struct {
	elements []skeletonElement
}

type skeletonElement struct {
	kind Kind

	// Slice bounds. Only static bounds can be part of a skeleton.
	start, stop, step          int
	hasStart, hasStop, hasStep bool

	// Index into the payload slice for Integer and Advanced elements, -1 otherwise.
	payloadSlot int

	// Shape of an Advanced element's index array: part of the static structure, since
	// the array dimensions decide the broadcast result and the output shape.
	arrayShape shapes.Shape
}

// Split separates an index expression into its static Skeleton and the dynamic payload:
// the integer positions and index arrays, in element order. Merge reverses it.
//
// Masks cannot be split (their contents change the output shape, so nothing about them
// is static): call Normalize first, which replaces masks by advanced indices. Slices
// with dynamic bounds cannot be split either and raise an ErrNonStaticIndex error.
func Split(idx []IndexElement) (Skeleton, []any) {
	skeleton := Skeleton{elements: make([]skeletonElement, 0, len(idx))}
	var payload []any
	for pos, e := range idx {
		se := skeletonElement{kind: e.kind, payloadSlot: -1}
		switch e.kind {
		case KindFull, KindNewAxis, KindEllipsis:
			// Purely structural.
		case KindSlice:
			if e.dynStart != nil || e.dynStop != nil || e.dynStep != nil {
				staticityf("slice at position %d has dynamic bounds and cannot be split into a static skeleton", pos)
			}
			se.start, se.stop, se.step = e.start, e.stop, e.step
			se.hasStart, se.hasStop, se.hasStep = e.hasStart, e.hasStop, e.hasStep
		case KindInteger:
			se.payloadSlot = len(payload)
			switch {
			case e.static:
				payload = append(payload, e.position)
			case e.scalar != nil:
				payload = append(payload, e.scalar)
			default:
				payload = append(payload, Dynamic{Handle: e.dyn})
			}
		case KindAdvanced:
			se.payloadSlot = len(payload)
			if e.array != nil {
				se.arrayShape = e.array.Shape()
				payload = append(payload, e.array)
			} else {
				if t, ok := e.dyn.(*tensors.Tensor); ok {
					se.arrayShape = t.Shape()
				}
				payload = append(payload, Dynamic{Handle: e.dyn})
			}
		case KindMask:
			grammarf("boolean masks cannot be split, call Normalize first to expand them into advanced indices")
		default:
			grammarf("invalid (zero) IndexElement at position %d", pos)
		}
		skeleton.elements = append(skeleton.elements, se)
	}
	return skeleton, payload
}

// Merge reassembles the index expression from a Skeleton and the payload produced by
// Split (or a new payload with the same slot layout).
func Merge(skeleton Skeleton, payload []any) []IndexElement {
	out := make([]IndexElement, 0, len(skeleton.elements))
	for _, se := range skeleton.elements {
		switch se.kind {
		case KindFull:
			out = append(out, Full())
		case KindNewAxis:
			out = append(out, NewAxis())
		case KindEllipsis:
			out = append(out, Ellipsis())
		case KindSlice:
			e := IndexElement{kind: KindSlice,
				start: se.start, stop: se.stop, step: se.step,
				hasStart: se.hasStart, hasStop: se.hasStop, hasStep: se.hasStep}
			out = append(out, e)
		case KindInteger:
			switch v := payload[se.payloadSlot].(type) {
			case int:
				out = append(out, At(v))
			case *tensors.Tensor:
				out = append(out, AtValue(v))
			case Dynamic:
				out = append(out, AtValue(v))
			default:
				grammarf("payload slot %d: cannot merge %T as an integer index", se.payloadSlot, v)
			}
		case KindAdvanced:
			switch v := payload[se.payloadSlot].(type) {
			case *tensors.Tensor:
				out = append(out, Indices(v))
			case Dynamic:
				out = append(out, IndexElement{kind: KindAdvanced, dyn: v.Handle})
			default:
				grammarf("payload slot %d: cannot merge %T as an advanced index", se.payloadSlot, v)
			}
		}
	}
	return out
}

// Key returns a canonical string for the skeleton, usable as a map key. Integer
// positions and array contents are not part of it; slice bounds and array shapes are.
func (s Skeleton) Key() string {
	var b strings.Builder
	b.WriteByte('[')
	for ii, se := range s.elements {
		if ii > 0 {
			b.WriteByte(',')
		}
		switch se.kind {
		case KindFull:
			b.WriteByte(':')
		case KindNewAxis:
			b.WriteString("None")
		case KindEllipsis:
			b.WriteString("...")
		case KindSlice:
			writeBound(&b, se.hasStart, se.start)
			b.WriteByte(':')
			writeBound(&b, se.hasStop, se.stop)
			if se.hasStep {
				fmt.Fprintf(&b, ":%d", se.step)
			}
		case KindInteger:
			b.WriteByte('i')
		case KindAdvanced:
			b.WriteString(se.arrayShape.String())
		}
	}
	b.WriteByte(']')
	return b.String()
}

func writeBound(b *strings.Builder, has bool, v int) {
	if has {
		fmt.Fprintf(b, "%d", v)
	}
}

// Cache memoizes the normalization of index expressions, keyed by the operand shape and
// the expression's Skeleton: repeated lowering of the same expression structure with
// different payloads (positions, index arrays) skips the normalization and validation
// pass and goes straight to Lower.
//
// The zero value is ready to use, and safe for concurrent use.
type Cache struct {
	plans xsync.Map[string, Skeleton]
}

// Lower is like the package-level Lower, but amortizes normalization across calls with
// the same operand shape and index structure.
func (c *Cache) Lower(operand shapes.Shape, idx ...IndexElement) *GatherDescriptor {
	// Masks cannot be part of a skeleton (their contents decide the output shape), so
	// expand them into advanced indices before splitting.
	idx = expandMasks(idx)
	skeleton, payload := Split(idx)
	key := operand.String() + "|" + skeleton.Key()
	normalized, hit := c.plans.Load(key)
	if !hit {
		normalized, _ = Split(Normalize(operand, Merge(skeleton, payload)))
		c.plans.Store(key, normalized)
	}
	if klog.V(1).Enabled() {
		if hit {
			klog.Infof("slicing.Cache: hit for %q", key)
		} else {
			klog.Infof("slicing.Cache: miss for %q (%d plans cached)", key, c.plans.Len())
		}
	}
	return Lower(operand, Merge(normalized, payload)...)
}

// LowerScatter is like the package-level LowerScatter, using the same cache as Lower.
func (c *Cache) LowerScatter(operand shapes.Shape, idx ...IndexElement) *ScatterDescriptor {
	return scatterFromGather(c.Lower(operand, idx...))
}

// Len returns the number of cached plans.
func (c *Cache) Len() int {
	return c.plans.Len()
}
