package autodiff

import (
	"github.com/born-ml/coursework/internal/tensor"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
	// Compute returns the undecorated backend used for gradient math.
	Compute() tensor.Backend
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Compute returns the wrapped backend as a plain tensor.Backend.
func (b *AutodiffBackend[B]) Compute() tensor.Backend {
	return b.inner
}

// Backward computes gradients of t using the backend's tape.
//
// The output gradient is seeded with ones, so for a scalar loss the
// result holds dLoss/dx for every recorded tensor x.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Full(tensor.Shape{2}, 3, backend)
//	y := x.Mul(x).Sum() // y = Σx²
//	gradients := autodiff.Backward(y, backend)
//	grad := gradients[x.Raw()] // 2x = [6, 6]
func Backward[B BackwardCapable](t *tensor.Tensor[B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	outputGrad := tensor.MustRaw(t.Shape(), backend.Device())
	outputGrad.Fill(1)
	return tape.Backward(t.Raw(), outputGrad, backend.Compute())
}
