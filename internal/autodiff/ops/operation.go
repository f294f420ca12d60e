// Package ops defines the differentiable operations recorded on a
// gradient tape.
//
// Each operation keeps references to its inputs and output from the
// forward pass and, given dL/d(output), returns dL/d(input) for every
// input in the order reported by Inputs. A nil entry means no gradient
// flows to that input.
package ops

import "github.com/born-ml/coursework/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes input gradients from the output gradient.
	//
	// Example for AddOp:
	//   inputs: [a, b]
	//   outputGrad: dL/d(a+b)
	//   returns: [dL/d(a+b), dL/d(a+b)]
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor produced by this operation.
	Output() *tensor.RawTensor
}

// node stores the inputs and output shared by every operation.
type node struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func newNode(output *tensor.RawTensor, inputs ...*tensor.RawTensor) node {
	return node{inputs: inputs, output: output}
}

// Inputs returns the recorded inputs.
func (n *node) Inputs() []*tensor.RawTensor {
	return n.inputs
}

// Output returns the recorded output.
func (n *node) Output() *tensor.RawTensor {
	return n.output
}
