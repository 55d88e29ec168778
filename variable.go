package xcollection

import (
	"fmt"
	"math"
	"sort"
)

// Attributes holds free-form metadata on a variable or dataset.
type Attributes map[string]interface{}

// Copy returns a shallow copy of a. Values are shared.
func (a Attributes) Copy() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys returns the attribute names, sorted.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Variable is a labeled N-dimensional array of float64 values stored in
// row-major order.
type Variable struct {
	Dims  []string
	Shape []int
	Data  []float64
	Attrs Attributes
}

// NewVariable validates and builds a variable. data is used without copying.
func NewVariable(dims []string, shape []int, data []float64, attrs Attributes) (*Variable, error) {
	v := &Variable{Dims: dims, Shape: shape, Data: data, Attrs: attrs}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// MustVariable is like NewVariable but panics on invalid input. It is meant
// for literals in tests and examples.
func MustVariable(dims []string, shape []int, data []float64, attrs Attributes) *Variable {
	v, err := NewVariable(dims, shape, data, attrs)
	if err != nil {
		panic(err)
	}
	return v
}

// Scalar returns a 0-dimensional variable holding x.
func Scalar(x float64) *Variable {
	return &Variable{Dims: []string{}, Shape: []int{}, Data: []float64{x}}
}

func (v *Variable) Validate() error {
	if len(v.Dims) != len(v.Shape) {
		return fmt.Errorf("%d dims do not match shape %v", len(v.Dims), v.Shape)
	}
	seen := map[string]struct{}{}
	for i, d := range v.Dims {
		if d == "" {
			return fmt.Errorf("dimension %d has an empty name", i)
		}
		if _, ok := seen[d]; ok {
			return fmt.Errorf("duplicate dimension %q", d)
		}
		seen[d] = struct{}{}
		if v.Shape[i] < 0 {
			return fmt.Errorf("dimension %q has negative length %d", d, v.Shape[i])
		}
	}
	if n := product(v.Shape); len(v.Data) != n {
		return fmt.Errorf("shape %v needs %d values, got %d", v.Shape, n, len(v.Data))
	}
	return nil
}

// Size is the number of elements.
func (v *Variable) Size() int { return len(v.Data) }

// Ndim is the number of dimensions.
func (v *Variable) Ndim() int { return len(v.Dims) }

// Axis returns the position of dim, or -1.
func (v *Variable) Axis(dim string) int {
	for i, d := range v.Dims {
		if d == dim {
			return i
		}
	}
	return -1
}

// At returns the element at the given index, one entry per dimension.
func (v *Variable) At(idx ...int) (float64, error) {
	if len(idx) != len(v.Shape) {
		return 0, fmt.Errorf("expected %d indices, got %d", len(v.Shape), len(idx))
	}
	off := 0
	st := strides(v.Shape)
	for i, x := range idx {
		if x < 0 || x >= v.Shape[i] {
			return 0, fmt.Errorf("index %d out of range for dimension %q of length %d", x, v.Dims[i], v.Shape[i])
		}
		off += x * st[i]
	}
	return v.Data[off], nil
}

// Copy returns a deep copy, attributes included.
func (v *Variable) Copy() *Variable {
	return &Variable{
		Dims:  append([]string{}, v.Dims...),
		Shape: append([]int{}, v.Shape...),
		Data:  append([]float64{}, v.Data...),
		Attrs: v.Attrs.Copy(),
	}
}

// HasNaN reports whether any element is NaN.
func (v *Variable) HasNaN() bool {
	for _, x := range v.Data {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

// Isel returns the positional slice [start, stop) along dim. Bounds are
// clamped to the dimension length, and negative bounds count from the end.
// A variable without dim is returned as a copy.
func (v *Variable) Isel(dim string, start, stop int) *Variable {
	ax := v.Axis(dim)
	if ax < 0 {
		return v.Copy()
	}
	start, stop = clampSlice(start, stop, v.Shape[ax])

	shape := append([]int{}, v.Shape...)
	shape[ax] = stop - start
	out := &Variable{
		Dims:  append([]string{}, v.Dims...),
		Shape: shape,
		Data:  make([]float64, 0, product(shape)),
		Attrs: v.Attrs.Copy(),
	}

	// outer: product of dims before ax; inner: product after ax
	outer := product(v.Shape[:ax])
	inner := product(v.Shape[ax+1:])
	n := v.Shape[ax]
	for o := 0; o < outer; o++ {
		base := o * n * inner
		out.Data = append(out.Data, v.Data[base+start*inner:base+stop*inner]...)
	}
	return out
}

func clampSlice(start, stop, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop > n {
		stop = n
	}
	if start > n {
		start = n
	}
	if stop < start {
		stop = start
	}
	return start, stop
}

// strides returns C-order element strides for shape.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
