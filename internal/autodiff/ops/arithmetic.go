package ops

import "github.com/born-ml/coursework/internal/tensor"

// AddOp represents output = a + b (with broadcasting).
//
// Backward: both inputs receive the output gradient, summed over any
// broadcast dimensions.
type AddOp struct{ node }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{newNode(output, a, b)}
}

// Backward computes input gradients for addition.
func (op *AddOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(grad, a.Shape(), backend),
		reduceBroadcast(grad, b.Shape(), backend),
	}
}

// SubOp represents output = a - b.
type SubOp struct{ node }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{newNode(output, a, b)}
}

// Backward computes input gradients for subtraction: [grad, -grad].
func (op *SubOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(grad, a.Shape(), backend),
		reduceBroadcast(backend.MulScalar(grad, -1), b.Shape(), backend),
	}
}

// MulOp represents the element-wise product output = a * b.
//
// Backward:
//   - d(a*b)/da = b
//   - d(a*b)/db = a
type MulOp struct{ node }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{newNode(output, a, b)}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(grad, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(grad, a), b.Shape(), backend),
	}
}

// DivOp represents output = a / b.
//
// Backward:
//   - d(a/b)/da = 1/b
//   - d(a/b)/db = -a/b² = -output/b
type DivOp struct{ node }

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{newNode(output, a, b)}
}

// Backward computes input gradients for division.
func (op *DivOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.Div(grad, b)
	gradB := backend.MulScalar(backend.Div(backend.Mul(grad, op.output), b), -1)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, a.Shape(), backend),
		reduceBroadcast(gradB, b.Shape(), backend),
	}
}

// AddScalarOp represents output = x + s. The gradient passes through.
type AddScalarOp struct{ node }

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{newNode(output, x)}
}

// Backward returns the output gradient unchanged.
func (op *AddScalarOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{grad}
}

// MulScalarOp represents output = x * s.
type MulScalarOp struct {
	node
	scalar float32
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(x, output *tensor.RawTensor, scalar float32) *MulScalarOp {
	return &MulScalarOp{node: newNode(output, x), scalar: scalar}
}

// Backward returns grad * s.
func (op *MulScalarOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(grad, op.scalar)}
}
