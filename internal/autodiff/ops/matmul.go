package ops

import "github.com/born-ml/coursework/internal/tensor"

// MatMulOp represents a matrix multiplication: output = a @ b.
//
// Backward pass:
//   - d(A@B)/dA = outputGrad @ B^T
//   - d(A@B)/dB = A^T @ outputGrad
type MatMulOp struct{ node }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{newNode(output, a, b)}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.MatMul(grad, backend.Transpose(b, 1, 0))
	gradB := backend.MatMul(backend.Transpose(a, 1, 0), grad)
	return []*tensor.RawTensor{gradA, gradB}
}

// BatchMatMulOp represents output[i] = a[i] @ b[i] over a batch.
//
// Backward pass transposes the last two axes of each operand:
//   - dA = grad @ B^T
//   - dB = A^T @ grad
type BatchMatMulOp struct{ node }

// NewBatchMatMulOp creates a new BatchMatMulOp.
func NewBatchMatMulOp(a, b, output *tensor.RawTensor) *BatchMatMulOp {
	return &BatchMatMulOp{newNode(output, a, b)}
}

// Backward computes input gradients for batched matrix multiplication.
func (op *BatchMatMulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.BatchMatMul(grad, backend.Transpose(b, 0, 2, 1))
	gradB := backend.BatchMatMul(backend.Transpose(a, 0, 2, 1), grad)
	return []*tensor.RawTensor{gradA, gradB}
}
