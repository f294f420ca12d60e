// Package nn implements neural network modules on top of the tensor and
// autodiff packages.
//
// This package provides building blocks for constructing neural networks:
//   - Module interface: base interface for feed-forward components
//   - Parameter: trainable tensors looked up in gradient maps
//   - Layers: Linear, Conv2D, MaxPool2D, Embedding, LSTM, Attention
//   - Activations and regularisation: ReLU, Tanh, Dropout, LogSoftmax
//   - Losses and metrics: NLLLoss, CrossEntropyLoss, Accuracy
//   - Sequential: container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/coursework/internal/tensor"
)

// Module is the base interface for feed-forward neural network components.
//
// Every module must implement:
//   - Forward: compute output from input
//   - Parameters: return all trainable parameters
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(784, 128, rng, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, rng, backend),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns all trainable parameters of this module.
	// Modules without weights return an empty slice.
	Parameters() []*Parameter[B]
}

// Trainable is implemented by modules whose behaviour differs between
// training and evaluation (Dropout).
type Trainable interface {
	SetTraining(training bool)
}

// SetTraining switches every Trainable among modules to the given mode.
func SetTraining(training bool, modules ...any) {
	for _, m := range modules {
		if t, ok := m.(Trainable); ok {
			t.SetTraining(training)
		}
	}
}
