// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a small, host-only dense tensor: a flat data slice paired
// with a Shape.
//
// It is the currency of the slicing package: index arrays (advanced indices, boolean
// masks, coordinate tensors of a lowered gather) and the operands/results of the
// reference backend are all *Tensor values.
//
// The data layout is always row-major. Conversion from Go multi-dimensional slices uses
// reflection and requires sized element types (int32, float32, ...); the plain Go `int`
// is not accepted since its size is platform dependent.
package tensors

import (
	"fmt"
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/slicing/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Tensor is a host-only dense tensor: a flat slice of the Go type corresponding to its
// DType, plus a Shape.
//
// A Tensor is cheap to create and carries no resources beyond its data slice. It is safe
// for concurrent reads; concurrent mutation is the caller's responsibility.
type Tensor struct {
	shape shapes.Shape
	flat  any // Slice of the Go type for the dtype of the shape.
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		panic(errors.New("tensors.FromShape: invalid shape"))
	}
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size())
	return &Tensor{shape: shape, flat: flatV.Interface()}
}

// FromScalar creates a tensor with the given scalar. The DType is inferred from the value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromFlatDataAndDimensions([]T{value})
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the
// flattened values given in data. The data is copied into the Tensor.
// The DType is inferred from the data element type.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	copy(t.flat.([]T), data)
	return t
}

// FromValue returns a tensor constructed from the given multi-dimension slice (or scalar).
// If the rank of the value is larger than 1, the shape of all sub-slices must be the same.
//
// It panics if the shape is not regular or the element type is not supported.
// Notice FromFlatDataAndDimensions is faster if speed is a concern.
func FromValue(value any) *Tensor {
	return FromAnyValue(value)
}

// FromAnyValue is like FromValue for an any-typed input.
// If value already is a *Tensor, it is returned unchanged.
func FromAnyValue(value any) *Tensor {
	if valueT, ok := value.(*Tensor); ok {
		return valueT
	}
	shape, err := shapeForValue(value)
	if err != nil {
		panic(errors.Wrapf(err, "tensors.FromAnyValue(%T)", value))
	}
	t := FromShape(shape)
	flatV := reflect.ValueOf(t.flat)
	if shape.IsScalar() {
		flatV.Index(0).Set(reflect.ValueOf(value))
		return t
	}
	copySlicesRecursively(flatV, reflect.ValueOf(value), shape.Strides())
	return t
}

// copySlicesRecursively copies values of a multi-dimensional slice to a flat data slice,
// given the strides for each axis.
func copySlicesRecursively(data reflect.Value, mdSlice reflect.Value, strides []int) {
	if len(strides) == 1 {
		reflect.Copy(data, mdSlice)
		return
	}
	subStrides := strides[1:]
	for ii := 0; ii < mdSlice.Len(); ii++ {
		subData := data.Slice(ii*strides[0], (ii+1)*strides[0])
		copySlicesRecursively(subData, mdSlice.Index(ii), subStrides)
	}
}

func shapeForValue(value any) (shape shapes.Shape, err error) {
	valueT := reflect.TypeOf(value)
	baseT := valueT
	for baseT.Kind() == reflect.Slice {
		baseT = baseT.Elem()
	}
	if baseT.Kind() == reflect.Int || baseT.Kind() == reflect.Uint {
		err = errors.Errorf("cannot infer a DType from %q: plain int/uint are platform dependent, use a sized type (int32, int64, ...)", valueT)
		return
	}
	shape.DType = dtypes.FromGoType(baseT)
	if shape.DType == dtypes.InvalidDType {
		err = errors.Errorf("cannot convert type %q to a tensor element type", valueT)
		return
	}
	err = dimsForValueRecursive(&shape, reflect.ValueOf(value), valueT)
	return
}

func dimsForValueRecursive(shape *shapes.Shape, v reflect.Value, t reflect.Type) error {
	if t.Kind() != reflect.Slice {
		return nil
	}
	shape.Dimensions = append(shape.Dimensions, v.Len())
	if v.Len() == 0 {
		// Zero-sized axis: inner dimensions are unknowable, assume none.
		return nil
	}
	prefixLen := len(shape.Dimensions)
	if err := dimsForValueRecursive(shape, v.Index(0), t.Elem()); err != nil {
		return err
	}
	// All siblings must agree with the dimensions derived from the first element.
	for ii := 1; ii < v.Len(); ii++ {
		test := shapes.Shape{DType: shape.DType, Dimensions: shape.Dimensions[:prefixLen:prefixLen]}
		if err := dimsForValueRecursive(&test, v.Index(ii), t.Elem()); err != nil {
			return err
		}
		if !test.Equal(*shape) {
			return errors.Errorf("sub-slices have irregular shapes, found %s and %s", shape, test)
		}
	}
	return nil
}

// Shape of the Tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the Tensor.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the Tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements stored in the Tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// IsScalar returns whether the Tensor holds a single value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// LayoutStrides returns the row-major strides of the Tensor's layout, in element counts.
func (t *Tensor) LayoutStrides() []int { return t.shape.Strides() }

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type
// corresponding to the DType. Even scalar values have a flattened representation of one
// element.
//
// accessFn is given the actual data, not a copy: it must not modify it. See
// Tensor.MutableFlatData for a mutable version.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with the flattened data as a slice of the Go type
// corresponding to the DType. The contents may be modified in place.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	accessFn(t.flat)
}

// ConstFlatData is the generic version of Tensor.ConstFlatData: it calls accessFn with
// the flat data slice cast to []T, which must match the tensor's DType.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	accessFn(flatAs[T](t))
}

// MutableFlatData is the generic version of Tensor.MutableFlatData.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	accessFn(flatAs[T](t))
}

// CopyFlatData returns a copy of the flat data of the tensor as []T, which must match the
// tensor's DType.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	flat := flatAs[T](t)
	c := make([]T, len(flat))
	copy(c, flat)
	return c
}

// ToScalar returns the value of a scalar (or single-element) tensor.
func ToScalar[T dtypes.Supported](t *Tensor) T {
	flat := flatAs[T](t)
	if len(flat) != 1 {
		exceptions.Panicf("tensors.ToScalar: tensor shaped %s is not a scalar", t.shape)
	}
	return flat[0]
}

func flatAs[T dtypes.Supported](t *Tensor) []T {
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("tensor shaped %s cannot be accessed as %T", t.shape, flat)
	}
	return flat
}

// Reshape returns a tensor sharing the same underlying data, with the new dimensions.
// The total size must not change.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	newShape := shapes.Make(t.shape.DType, dimensions...)
	if newShape.Size() != t.shape.Size() {
		exceptions.Panicf("tensors.Reshape: cannot reshape %s to %s, sizes differ", t.shape, newShape)
	}
	return &Tensor{shape: newShape, flat: t.flat}
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := FromShape(t.shape)
	reflect.Copy(reflect.ValueOf(c.flat), reflect.ValueOf(t.flat))
	return c
}

// Equal checks whether t and other hold exactly the same shape and values.
func (t *Tensor) Equal(other *Tensor) bool {
	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	return reflect.DeepEqual(t.flat, other.flat)
}

// Value returns the data of the tensor as a multidimensional Go slice (or a scalar value
// for rank-0). The returned slices point to an internal copy of the data.
func (t *Tensor) Value() any {
	if t.IsScalar() {
		return reflect.ValueOf(t.flat).Index(0).Interface()
	}
	flatV := reflect.ValueOf(t.Clone().flat)
	return convertDataToSlices(flatV, t.shape.Dimensions...).Interface()
}

// convertDataToSlices takes flat data and builds a multidimensional slice with the given
// dimensions pointing to it.
func convertDataToSlices(dataV reflect.Value, dimensions ...int) reflect.Value {
	if len(dimensions) <= 1 {
		return dataV
	}
	resultT := dataV.Type().Elem()
	for range dimensions {
		resultT = reflect.SliceOf(resultT)
	}
	strides := shapes.Shape{DType: dtypes.InvalidDType, Dimensions: dimensions}.Strides()
	return createSlicesRecursively(resultT, dataV, dimensions, strides)
}

func createSlicesRecursively(resultT reflect.Type, data reflect.Value, dimensions []int, strides []int) reflect.Value {
	if len(strides) == 1 {
		return data
	}
	numElements := dimensions[0]
	slice := reflect.MakeSlice(resultT, numElements, numElements)
	for ii := 0; ii < numElements; ii++ {
		subData := data.Slice(ii*strides[0], (ii+1)*strides[0])
		slice.Index(ii).Set(createSlicesRecursively(resultT.Elem(), subData, dimensions[1:], strides[1:]))
	}
	return slice
}

// GoStr converts the tensor data to a multidimensional Go slice and pretty-prints it.
func (t *Tensor) GoStr() string {
	return fmt.Sprintf("%v", t.Value())
}

// String prints the shape and the data, if not too large.
func (t *Tensor) String() string {
	if t.Size() > 100 {
		return fmt.Sprintf("Tensor%s", t.shape)
	}
	return fmt.Sprintf("Tensor%s: %s", t.shape, t.GoStr())
}
