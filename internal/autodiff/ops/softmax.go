package ops

import "github.com/born-ml/coursework/internal/tensor"

// SoftmaxOp represents output = softmax(x) along dim.
//
// Backward: dx = y * (grad - sum(grad * y, dim)).
type SoftmaxOp struct {
	node
	dim int
}

// NewSoftmaxOp creates a new SoftmaxOp.
func NewSoftmaxOp(x, output *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{node: newNode(output, x), dim: x.Shape().NormalizeDim(dim)}
}

// Backward computes the softmax Jacobian-vector product.
func (op *SoftmaxOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	y := op.output
	dot := backend.SumDim(backend.Mul(grad, y), op.dim, true)
	return []*tensor.RawTensor{backend.Mul(y, backend.Sub(grad, dot))}
}

// LogSoftmaxOp represents output = log_softmax(x) along dim.
//
// Backward: dx = grad - exp(output) * sum(grad, dim).
type LogSoftmaxOp struct {
	node
	dim int
}

// NewLogSoftmaxOp creates a new LogSoftmaxOp.
func NewLogSoftmaxOp(x, output *tensor.RawTensor, dim int) *LogSoftmaxOp {
	return &LogSoftmaxOp{node: newNode(output, x), dim: x.Shape().NormalizeDim(dim)}
}

// Backward computes the log-softmax Jacobian-vector product.
func (op *LogSoftmaxOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	total := backend.SumDim(grad, op.dim, true)
	probs := backend.Exp(op.output)
	return []*tensor.RawTensor{backend.Sub(grad, backend.Mul(probs, total))}
}
