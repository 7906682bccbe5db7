// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package slicing lowers NumPy-style index expressions into gather/scatter descriptors
// that an XLA-like backend can execute.
//
// An index expression is a tuple of IndexElement values, one per operand axis (plus
// NewAxis insertions), built with the constructors in this package:
//
//	// x[1:5:2, ..., None, [0, 2]]
//	idx := []slicing.IndexElement{
//		slicing.Range(1, 5).Stride(2),
//		slicing.Ellipsis(),
//		slicing.NewAxis(),
//		slicing.Indices([]int32{0, 2}),
//	}
//
// The pipeline is Normalize → Split (optional, for caching) → Lower, producing a
// GatherDescriptor (or, for index-assignment updates, LowerScatter producing a
// ScatterDescriptor). The descriptor is consumed by a backends.Backend, which performs
// the actual data movement: gather, then reversal of negative-stride axes, then a reshape
// that materializes NewAxis dimensions. Take and Update run the whole pipeline against a
// backend.
//
// All lowering happens on the host, at "trace time": slice bounds and boolean masks must
// be statically known. Data-dependent values are only allowed as integer positions and
// advanced (integer array) indices, whose out-of-range behavior is deferred to the
// backend (the reference backend clamps).
//
// # Errors
//
// Functions in this package panic on invalid input, following the exceptions
// (github.com/gomlx/exceptions) convention. The panic value is an error wrapping one of
// two sentinels, so callers can recover and classify:
//
//	err := exceptions.TryCatch[error](func() { desc = slicing.Lower(shape, idx...) })
//	if errors.Is(err, slicing.ErrInvalidIndex) { ... }    // malformed expression
//	if errors.Is(err, slicing.ErrNonStaticIndex) { ... }  // value needed at lowering time
package slicing

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/slicing/pkg/core/tensors"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidIndex is wrapped by every panic reporting a malformed index expression:
	// multiple ellipses, too many elements for the operand rank, an unsupported element
	// type. These are programming errors in the caller's index expression, never retried.
	ErrInvalidIndex = errors.New("invalid index expression")

	// ErrNonStaticIndex is wrapped by every panic reporting an index component that must
	// be known at lowering time (slice bounds, boolean-mask contents) but is not. The
	// fix is an explicit dynamic-slice primitive on the backend, not this package.
	ErrNonStaticIndex = errors.New("index component must be statically known")
)

// grammarf panics with an ErrInvalidIndex error. See package documentation on errors.
func grammarf(format string, args ...any) {
	panic(errors.Wrapf(ErrInvalidIndex, format, args...))
}

// staticityf panics with an ErrNonStaticIndex error. See package documentation on errors.
func staticityf(format string, args ...any) {
	panic(errors.Wrapf(ErrNonStaticIndex, format, args...))
}

// Kind discriminates the variants of an IndexElement.
type Kind int

const (
	KindInvalid Kind = iota

	// KindFull is ":", the whole axis.
	KindFull

	// KindSlice is "start:stop:step" with statically known bounds.
	KindSlice

	// KindInteger is a scalar position; it collapses its axis.
	KindInteger

	// KindNewAxis inserts a size-1 output axis, consuming no input axis.
	KindNewAxis

	// KindEllipsis is "...", expanding to as many KindFull as needed. At most one per
	// expression.
	KindEllipsis

	// KindAdvanced is an integer index array (NumPy "fancy" index).
	KindAdvanced

	// KindMask is a boolean mask. It is a derived form: Normalize converts it to one
	// KindAdvanced element per mask axis, via the positions where the mask is true.
	KindMask
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindFull:
		return "Full"
	case KindSlice:
		return "Slice"
	case KindInteger:
		return "Integer"
	case KindNewAxis:
		return "NewAxis"
	case KindEllipsis:
		return "Ellipsis"
	case KindAdvanced:
		return "Advanced"
	case KindMask:
		return "Mask"
	}
	return "Invalid"
}

// Dynamic wraps a value that is not available at lowering time -- typically a node of a
// computation graph being traced. Where this package requires a static value (slice
// bounds, boolean masks, and -- since lowering materializes coordinates on the host --
// integer and advanced index values), a Dynamic triggers an ErrNonStaticIndex panic.
type Dynamic struct {
	Handle any
}

// IndexElement is one element of an index expression: a closed sum over the variants
// enumerated by Kind. Use the constructors (Full, Range, At, NewAxis, Ellipsis, Indices,
// Mask, ...); the zero value is invalid.
//
// IndexElement values are immutable: methods like Stride return copies.
type IndexElement struct {
	kind Kind

	// KindSlice bounds. An unset bound (has*==false) means the Python `None`: the default
	// for the step's direction.
	start, stop, step          int
	hasStart, hasStop, hasStep bool
	// Slice bounds given as non-static values. Always an ErrNonStaticIndex at lowering.
	dynStart, dynStop, dynStep any

	// KindInteger payload: static position, or a scalar integer tensor.
	static   bool
	position int
	scalar   *tensors.Tensor

	// KindAdvanced / KindMask payload.
	array *tensors.Tensor

	// A value not available at lowering time (Dynamic.Handle), or a placeholder installed
	// by Split.
	dyn any
}

// Kind returns the variant of this element.
func (e IndexElement) Kind() Kind { return e.kind }

// Full returns the element selecting the whole axis, the Python ":".
func Full() IndexElement {
	return IndexElement{kind: KindFull}
}

// NewAxis returns the element inserting a new size-1 output axis, the NumPy
// `np.newaxis`/`None`.
func NewAxis() IndexElement {
	return IndexElement{kind: KindNewAxis}
}

// Ellipsis returns the "..." element: it expands to the number of Full elements needed to
// make the index expression match the operand rank. Only one is allowed per expression.
func Ellipsis() IndexElement {
	return IndexElement{kind: KindEllipsis}
}

// Range returns the slice element `start:stop`, end-exclusive. Negative values count from
// the end of the axis. Use Stride to set a step.
func Range(start, stop int) IndexElement {
	return IndexElement{kind: KindSlice, start: start, hasStart: true, stop: stop, hasStop: true}
}

// RangeToEnd returns the slice element `start:`, from start to the end of the axis.
func RangeToEnd(start int) IndexElement {
	return IndexElement{kind: KindSlice, start: start, hasStart: true}
}

// RangeFromStart returns the slice element `:stop`, from the start of the axis,
// end-exclusive.
func RangeFromStart(stop int) IndexElement {
	return IndexElement{kind: KindSlice, stop: stop, hasStop: true}
}

// Stride returns a copy of the element with the given step, e.g.
// `Range(1, 7).Stride(2)` is `1:7:2` and `Full().Stride(-1)` is `::-1`.
// It panics if the element is not a slice-like element (Full, Range*) or if stride is 0.
func (e IndexElement) Stride(stride int) IndexElement {
	if e.kind != KindSlice && e.kind != KindFull {
		grammarf("Stride(%d) can only be applied to slice elements, got %s", stride, e)
	}
	if stride == 0 {
		grammarf("slice step cannot be zero")
	}
	e2 := e
	e2.kind = KindSlice
	e2.step = stride
	e2.hasStep = true
	return e2
}

// MakeSlice returns a slice element with each bound given as an int, nil (the Python
// `None`) or a Dynamic. Non-static bounds are accepted by the grammar but rejected at
// lowering time with ErrNonStaticIndex.
func MakeSlice(start, stop, step any) IndexElement {
	e := IndexElement{kind: KindSlice}
	e.start, e.hasStart, e.dynStart = sliceBound("start", start)
	e.stop, e.hasStop, e.dynStop = sliceBound("stop", stop)
	e.step, e.hasStep, e.dynStep = sliceBound("step", step)
	return e
}

func sliceBound(name string, bound any) (value int, has bool, dyn any) {
	switch v := bound.(type) {
	case nil:
		return
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		return int(v), true, nil
	case Dynamic:
		return 0, false, v.Handle
	}
	grammarf("slice %s must be an integer, nil or Dynamic, got %T", name, bound)
	return
}

// At returns the integer element selecting a single position of an axis, collapsing it.
// Negative positions count from the end of the axis.
func At(position int) IndexElement {
	return IndexElement{kind: KindInteger, static: true, position: position}
}

// AtValue is like At for a position given as an any-typed scalar: a Go integer, a scalar
// integer tensor, or a Dynamic.
func AtValue(position any) IndexElement {
	switch v := position.(type) {
	case int:
		return At(v)
	case int32:
		return At(int(v))
	case int64:
		return At(int(v))
	case *tensors.Tensor:
		if !v.IsScalar() || !v.DType().IsInt() {
			grammarf("AtValue requires a scalar integer tensor, got %s", v.Shape())
		}
		return IndexElement{kind: KindInteger, scalar: v}
	case Dynamic:
		return IndexElement{kind: KindInteger, dyn: v.Handle}
	}
	grammarf("AtValue: unsupported position type %T", position)
	return IndexElement{}
}

// Indices returns an advanced ("fancy") index element from an integer array: a *Tensor
// of integer dtype, a (possibly nested) Go slice of sized integers (e.g. []int32,
// [][]int64), or a Dynamic.
func Indices(value any) IndexElement {
	switch v := value.(type) {
	case *tensors.Tensor:
		if !v.DType().IsInt() {
			grammarf("Indices requires an integer tensor, got %s", v.Shape())
		}
		return IndexElement{kind: KindAdvanced, array: v}
	case Dynamic:
		return IndexElement{kind: KindAdvanced, dyn: v.Handle}
	}
	t := tensors.FromAnyValue(value)
	if !t.DType().IsInt() {
		grammarf("Indices requires integer values, got %s", t.Shape())
	}
	return IndexElement{kind: KindAdvanced, array: t}
}

// Mask returns a boolean-mask element from a bool array: a *Tensor of dtype Bool, a
// (possibly nested) Go slice of bool, or a Dynamic. Masks must be statically known;
// Normalize converts them to advanced integer indices via the positions where the mask
// is true.
func Mask(value any) IndexElement {
	switch v := value.(type) {
	case *tensors.Tensor:
		if v.DType() != dtypes.Bool {
			grammarf("Mask requires a boolean tensor, got %s", v.Shape())
		}
		return IndexElement{kind: KindMask, array: v}
	case Dynamic:
		return IndexElement{kind: KindMask, dyn: v.Handle}
	}
	t := tensors.FromAnyValue(value)
	if t.DType() != dtypes.Bool {
		grammarf("Mask requires boolean values, got %s", t.Shape())
	}
	return IndexElement{kind: KindMask, array: t}
}

// String implements fmt.Stringer, printing the element in Python slicing syntax where
// possible.
func (e IndexElement) String() string {
	switch e.kind {
	case KindFull:
		return ":"
	case KindSlice:
		var b strings.Builder
		writeBound := func(value int, has bool, dyn any) {
			if dyn != nil {
				b.WriteString("<dynamic>")
			} else if has {
				fmt.Fprintf(&b, "%d", value)
			}
		}
		writeBound(e.start, e.hasStart, e.dynStart)
		b.WriteByte(':')
		writeBound(e.stop, e.hasStop, e.dynStop)
		if e.hasStep || e.dynStep != nil {
			b.WriteByte(':')
			writeBound(e.step, e.hasStep, e.dynStep)
		}
		return b.String()
	case KindInteger:
		if e.static {
			return fmt.Sprintf("%d", e.position)
		}
		if e.scalar != nil {
			return e.scalar.GoStr()
		}
		return "<dynamic integer>"
	case KindNewAxis:
		return "NewAxis"
	case KindEllipsis:
		return "..."
	case KindAdvanced:
		if e.array != nil {
			return fmt.Sprintf("Indices%s", e.array.Shape())
		}
		return "<dynamic indices>"
	case KindMask:
		if e.array != nil {
			return fmt.Sprintf("Mask%s", e.array.Shape())
		}
		return "<dynamic mask>"
	}
	return "InvalidIndexElement"
}
