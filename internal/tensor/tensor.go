package tensor

import "fmt"

// #region int-tensor
// Int is a dense integer tensor stored as one flat row-major buffer.
type Int struct {
	Shape  []int
	Data   []int64
	Device string
}

// NewInt allocates a zero-filled integer tensor with the given shape.
func NewInt(shape ...int) *Int {
	return &Int{Shape: append([]int(nil), shape...), Data: make([]int64, volume(shape)), Device: "cpu"}
}

// Dims returns the number of axes.
func (t *Int) Dims() int { return len(t.Shape) }

// At returns the element at idx.
func (t *Int) At(idx ...int) int64 { return t.Data[offset(t.Shape, idx)] }

// Set stores v at idx.
func (t *Int) Set(v int64, idx ...int) { t.Data[offset(t.Shape, idx)] = v }

// Row returns the last-axis slice of a rank-3 tensor at [i, j]. The slice aliases Data.
func (t *Int) Row(i, j int) []int64 {
	n := t.Shape[2]
	start := offset(t.Shape, []int{i, j, 0})
	return t.Data[start : start+n]
}

// Fill sets every element to v.
func (t *Int) Fill(v int64) {
	for i := range t.Data {
		t.Data[i] = v
	}
}

// Place tags the tensor with the device it lives on.
func (t *Int) Place(device string) { t.Device = device }

// #endregion int-tensor

// #region float-tensor
// Float is a dense float64 tensor stored as one flat row-major buffer.
type Float struct {
	Shape []int
	Data  []float64
}

// NewFloat allocates a zero-filled float tensor with the given shape.
func NewFloat(shape ...int) *Float {
	return &Float{Shape: append([]int(nil), shape...), Data: make([]float64, volume(shape))}
}

// FromFloats wraps data with a shape, checking that the sizes agree.
func FromFloats(data []float64, shape ...int) (*Float, error) {
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("tensor shape %v has a negative dimension", shape)
		}
	}
	if len(data) != volume(shape) {
		return nil, fmt.Errorf("tensor data length %d does not match shape %v", len(data), shape)
	}
	return &Float{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Dims returns the number of axes.
func (t *Float) Dims() int { return len(t.Shape) }

// At returns the element at idx.
func (t *Float) At(idx ...int) float64 { return t.Data[offset(t.Shape, idx)] }

// Set stores v at idx.
func (t *Float) Set(v float64, idx ...int) { t.Data[offset(t.Shape, idx)] = v }

// Row returns the last-axis slice of a rank-3 tensor at [i, j]. The slice aliases Data.
func (t *Float) Row(i, j int) []float64 {
	n := t.Shape[2]
	start := offset(t.Shape, []int{i, j, 0})
	return t.Data[start : start+n]
}

// #endregion float-tensor

// #region helpers
func volume(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("tensor: negative dimension in shape %v", shape))
		}
		n *= d
	}
	return n
}

func offset(shape, idx []int) int {
	if len(idx) != len(shape) {
		panic(fmt.Sprintf("tensor: index %v has rank %d, shape %v has rank %d", idx, len(idx), shape, len(shape)))
	}
	off := 0
	for k, i := range idx {
		if i < 0 || i >= shape[k] {
			if !(i == 0 && shape[k] == 0 && k == len(shape)-1) {
				panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, shape))
			}
		}
		off = off*shape[k] + i
	}
	return off
}

// #endregion helpers
