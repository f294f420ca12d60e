package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x: input tensor [batch_size, in_features]
//   - W: weight matrix [out_features, in_features]
//   - b: bias vector [out_features] (optional)
//   - y: output tensor [batch_size, out_features]
//
// Weights and biases use the fan-in uniform initialisation.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, rng, backend)
//	output := layer.Forward(input) // [batch, 784] -> [batch, 128]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
	ownsWeight  bool
}

// NewLinear creates a new Linear layer with a bias.
//
// Parameters:
//   - inFeatures: Number of input features
//   - outFeatures: Number of output features
//   - rng: Random source for initialisation
//   - backend: Computation backend
//
// Returns a new Linear layer.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	l := NewLinearNoBias(inFeatures, outFeatures, rng, backend)
	l.bias = NewParameter("bias", FanInUniform(inFeatures, tensor.Shape{outFeatures}, rng, backend))
	return l
}

// NewLinearNoBias creates a Linear layer without a bias term.
func NewLinearNoBias[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}
	w := FanInUniform(inFeatures, tensor.Shape{outFeatures, inFeatures}, rng, backend)
	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", w),
		ownsWeight:  true,
	}
}

// NewTiedLinear creates a Linear layer whose weight is an existing
// parameter of shape [out_features, in_features] owned by another module
// (weight tying). The shared weight is not returned by Parameters, so an
// optimizer updates it once through its owner.
func NewTiedLinear[B tensor.Backend](weight *Parameter[B], withBias bool, rng *rand.Rand, backend B) *Linear[B] {
	shape := weight.Tensor().Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("linear: tied weight must be 2D, got %v", shape))
	}
	l := &Linear[B]{
		inFeatures:  shape[1],
		outFeatures: shape[0],
		weight:      weight,
	}
	if withBias {
		l.bias = NewParameter("bias", FanInUniform(shape[1], tensor.Shape{shape[0]}, rng, backend))
	}
	return l
}

// Forward computes y = x @ W.T + b.
//
// Panics if the input is not [batch, in_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("linear: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	// Transpose is recorded on the tape so the gradient reaches W.
	output := input.MatMul(l.weight.Tensor().T())
	if l.bias != nil {
		output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}
	return output
}

// Parameters returns the weight (unless tied) and the bias if present.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	if l.ownsWeight {
		params = append(params, l.weight)
	}
	if l.bias != nil {
		params = append(params, l.bias)
	}
	return params
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter (nil without bias).
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
