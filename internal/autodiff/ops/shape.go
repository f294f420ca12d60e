package ops

import "github.com/born-ml/coursework/internal/tensor"

// ReshapeOp represents a reshape. The gradient is reshaped back.
type ReshapeOp struct{ node }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{newNode(output, x)}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(grad, op.inputs[0].Shape())}
}

// TransposeOp represents a permutation of axes.
// Backward applies the inverse permutation.
type TransposeOp struct {
	node
	axes []int
}

// NewTransposeOp creates a new TransposeOp. axes must be the resolved
// permutation (never empty).
func NewTransposeOp(x, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{node: newNode(output, x), axes: append([]int(nil), axes...)}
}

// Backward transposes the gradient back.
func (op *TransposeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Transpose(grad, inversePermutation(op.axes)...)}
}

// CatOp represents concatenation along dim. Each input receives the
// slice of the gradient it contributed.
type CatOp struct {
	node
	dim int
}

// NewCatOp creates a new CatOp.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{node: newNode(output, inputs...), dim: output.Shape().NormalizeDim(dim)}
}

// Backward splits the gradient along dim.
func (op *CatOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	start := 0
	for i, in := range op.inputs {
		size := in.Shape()[op.dim]
		grads[i] = backend.Narrow(grad, op.dim, start, size)
		start += size
	}
	return grads
}

// NarrowOp represents a slice [start, start+length) along dim.
// Backward places the gradient inside zeros of the input shape.
type NarrowOp struct {
	node
	dim, start int
}

// NewNarrowOp creates a new NarrowOp.
func NewNarrowOp(x, output *tensor.RawTensor, dim, start int) *NarrowOp {
	return &NarrowOp{node: newNode(output, x), dim: x.Shape().NormalizeDim(dim), start: start}
}

// Backward pads the gradient with zeros on both sides of dim.
func (op *NarrowOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.inputs[0].Shape()
	length := grad.Shape()[op.dim]
	after := inShape[op.dim] - op.start - length

	parts := make([]*tensor.RawTensor, 0, 3)
	if op.start > 0 {
		s := inShape.Clone()
		s[op.dim] = op.start
		parts = append(parts, tensor.MustRaw(s, backend.Device()))
	}
	parts = append(parts, grad)
	if after > 0 {
		s := inShape.Clone()
		s[op.dim] = after
		parts = append(parts, tensor.MustRaw(s, backend.Device()))
	}
	if len(parts) == 1 {
		return []*tensor.RawTensor{grad}
	}
	return []*tensor.RawTensor{backend.Cat(parts, op.dim)}
}
