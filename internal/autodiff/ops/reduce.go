package ops

import "github.com/born-ml/coursework/internal/tensor"

// SumOp represents the sum of every element into a scalar.
// Backward broadcasts the scalar gradient to the input shape.
type SumOp struct{ node }

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{newNode(output, x)}
}

// Backward broadcasts grad to the input shape.
func (op *SumOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{broadcastTo(grad, op.inputs[0].Shape(), backend)}
}

// SumDimOp represents a sum along one dimension.
type SumDimOp struct {
	node
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{node: newNode(output, x), dim: x.Shape().NormalizeDim(dim), keepDim: keepDim}
}

// Backward restores the reduced dimension and broadcasts along it.
func (op *SumDimOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.inputs[0].Shape()
	g := grad
	if !op.keepDim {
		kept := inShape.Clone()
		kept[op.dim] = 1
		g = backend.Reshape(g, kept)
	}
	return []*tensor.RawTensor{broadcastTo(g, inShape, backend)}
}
