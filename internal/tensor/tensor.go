package tensor

import "fmt"

// Tensor is a float32 tensor bound to a compute backend B.
//
// Every operation dispatches to the backend, so wrapping the backend with
// autodiff.New is enough to make a model differentiable.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros(Shape{3, 4}, backend)
//	y := x.AddScalar(1).MatMul(w)
type Tensor[B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps a RawTensor.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return &Tensor[B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	buf := make([]float32, len(data))
	copy(buf, data)
	raw, err := RawFromSlice(buf, shape, b.Device())
	if err != nil {
		return nil, err
	}
	return New(raw, b), nil
}

// Shape returns the tensor's shape.
func (t *Tensor[B]) Shape() Shape {
	return t.raw.Shape()
}

// NumElements returns the total number of elements.
func (t *Tensor[B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[B]) Backend() B {
	return t.backend
}

// Data returns the tensor's memory (zero-copy).
//
// WARNING: modifications to the returned slice modify the tensor.
func (t *Tensor[B]) Data() []float32 {
	return t.raw.AsFloat32()
}

// Item returns the value of a single-element tensor.
func (t *Tensor[B]) Item() float32 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("item: tensor with shape %v is not a scalar", t.Shape()))
	}
	return t.Data()[0]
}

// At returns the element at the given indices.
func (t *Tensor[B]) At(indices ...int) float32 {
	return t.Data()[t.offset(indices)]
}

// Set writes the element at the given indices.
func (t *Tensor[B]) Set(value float32, indices ...int) {
	t.Data()[t.offset(indices)] = value
}

func (t *Tensor[B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		off += idx * t.raw.Strides()[i]
	}
	return off
}

// Detach returns a tensor holding a copy of the data that is unknown to
// any gradient tape. Operations on it never propagate gradients back.
func (t *Tensor[B]) Detach() *Tensor[B] {
	return New(t.raw.Clone(), t.backend)
}

// Clone returns a deep copy of the tensor.
func (t *Tensor[B]) Clone() *Tensor[B] {
	return New(t.raw.Clone(), t.backend)
}

// String returns a short description of the tensor.
func (t *Tensor[B]) String() string {
	return fmt.Sprintf("Tensor%v on %s", t.Shape(), t.raw.Device())
}
