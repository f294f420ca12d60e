package ops

import "github.com/born-ml/coursework/internal/tensor"

// ExpOp represents output = exp(x). Backward: grad * output.
type ExpOp struct{ node }

// NewExpOp creates a new ExpOp.
func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{newNode(output, x)}
}

// Backward computes grad * exp(x).
func (op *ExpOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(grad, op.output)}
}

// LogOp represents output = log(x). Backward: grad / x.
type LogOp struct{ node }

// NewLogOp creates a new LogOp.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{newNode(output, x)}
}

// Backward computes grad / x.
func (op *LogOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(grad, op.inputs[0])}
}

// ReLUOp represents output = max(0, x).
//
// The gradient is passed where the input was positive and zeroed
// elsewhere (the subgradient at 0 is taken as 0).
type ReLUOp struct{ node }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{newNode(output, x)}
}

// Backward computes grad * (x > 0).
func (op *ReLUOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	result := tensor.MustRaw(grad.Shape(), grad.Device())
	g := grad.AsFloat32()
	x := op.inputs[0].AsFloat32()
	dst := result.AsFloat32()
	for i := range dst {
		if x[i] > 0 {
			dst[i] = g[i]
		}
	}
	return []*tensor.RawTensor{result}
}

// TanhOp represents output = tanh(x). Backward: grad * (1 - output²).
type TanhOp struct{ node }

// NewTanhOp creates a new TanhOp.
func NewTanhOp(x, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{newNode(output, x)}
}

// Backward computes grad * (1 - tanh(x)²).
func (op *TanhOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	sq := backend.Mul(op.output, op.output)
	return []*tensor.RawTensor{backend.Mul(grad, oneMinus(sq, backend))}
}

// SigmoidOp represents output = σ(x). Backward: grad * σ(x) * (1 - σ(x)).
type SigmoidOp struct{ node }

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{newNode(output, x)}
}

// Backward computes grad * σ(x) * (1 - σ(x)).
func (op *SigmoidOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	local := backend.Mul(op.output, oneMinus(op.output, backend))
	return []*tensor.RawTensor{backend.Mul(grad, local)}
}
