package tensor

import "fmt"

// Device represents the compute device holding tensor memory.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation used by backends.
//
// Data is always contiguous, row-major float32. Integer payloads such as
// class labels and token ids travel as plain []int32 slices instead.
//
// Gradients are keyed by *RawTensor identity, so every operation returns
// a fresh RawTensor even when the data could be shared.
type RawTensor struct {
	data   []float32
	shape  Shape
	stride []int
	device Device
}

// NewRaw allocates a zero-filled RawTensor with the given shape.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: device,
	}, nil
}

// MustRaw is like NewRaw but panics on an invalid shape.
// Backends use it for results whose shape was already validated.
func MustRaw(shape Shape, device Device) *RawTensor {
	r, err := NewRaw(shape, device)
	if err != nil {
		panic(err)
	}
	return r
}

// RawFromSlice wraps data (without copying) as a RawTensor of the given shape.
func RawFromSlice(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	return &RawTensor{
		data:   data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the row-major strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// Device returns the device holding the data.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// AsFloat32 returns the underlying data.
//
// WARNING: the slice aliases tensor memory; writes modify the tensor.
func (r *RawTensor) AsFloat32() []float32 {
	return r.data
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		device: r.device,
	}
}

// View returns a new RawTensor sharing the data under a different shape.
// The element count must match.
func (r *RawTensor) View(shape Shape) *RawTensor {
	if shape.NumElements() != len(r.data) {
		panic(fmt.Sprintf("view: cannot view %v (%d elements) as %v", r.shape, len(r.data), shape))
	}
	return &RawTensor{
		data:   r.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: r.device,
	}
}

// Fill sets every element to value.
func (r *RawTensor) Fill(value float32) {
	for i := range r.data {
		r.data[i] = value
	}
}

// CopyFrom copies src's data into r. Shapes must have the same element count.
func (r *RawTensor) CopyFrom(src *RawTensor) {
	if len(src.data) != len(r.data) {
		panic(fmt.Sprintf("copy: size mismatch %v vs %v", r.shape, src.shape))
	}
	copy(r.data, src.data)
}
