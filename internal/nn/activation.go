package nn

import (
	"github.com/born-ml/coursework/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module: f(x) = max(0, x).
//
// Example:
//
//	relu := nn.NewReLU[Backend]()
//	output := relu.Forward(input) // All negative values become 0
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.ReLU()
}

// Parameters returns an empty slice (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// Tanh is a hyperbolic tangent activation module.
type Tanh[B tensor.Backend] struct{}

// NewTanh creates a new Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies tanh activation.
func (t *Tanh[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.Tanh()
}

// Parameters returns an empty slice.
func (t *Tanh[B]) Parameters() []*Parameter[B] {
	return nil
}

// LogSoftmax normalises the last dimension into log-probabilities.
type LogSoftmax[B tensor.Backend] struct{}

// NewLogSoftmax creates a new LogSoftmax module.
func NewLogSoftmax[B tensor.Backend]() *LogSoftmax[B] {
	return &LogSoftmax[B]{}
}

// Forward applies log_softmax over the last dimension.
func (l *LogSoftmax[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.LogSoftmax(-1)
}

// Parameters returns an empty slice.
func (l *LogSoftmax[B]) Parameters() []*Parameter[B] {
	return nil
}

// Flatten reshapes [N, ...] into [N, prod(...)].
type Flatten[B tensor.Backend] struct{}

// NewFlatten creates a new Flatten module.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return &Flatten[B]{}
}

// Forward flattens all but the first dimension.
func (f *Flatten[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.Reshape(input.Shape()[0], -1)
}

// Parameters returns an empty slice.
func (f *Flatten[B]) Parameters() []*Parameter[B] {
	return nil
}
