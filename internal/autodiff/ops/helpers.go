package ops

import (
	"fmt"

	"github.com/born-ml/coursework/internal/tensor"
)

// reduceBroadcast sums a gradient back down to the shape of an input
// that was broadcast in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gs := grad.Shape()
	if gs.Equal(target) {
		return grad
	}
	if len(target) > len(gs) {
		panic(fmt.Sprintf("reduceBroadcast: target %v has more dims than grad %v", target, gs))
	}

	result := grad
	// Leading dimensions that the target lacks are summed away.
	for i := 0; i < len(gs)-len(target); i++ {
		result = backend.SumDim(result, 0, false)
	}
	// Dimensions where the target is 1 are summed with keepDim.
	rs := result.Shape()
	for i := range target {
		if target[i] == 1 && rs[i] != 1 {
			result = backend.SumDim(result, i, true)
		}
	}
	if !result.Shape().Equal(target) {
		result = backend.Reshape(result, target)
	}
	return result
}

// broadcastTo expands grad (already compatible) to shape by adding it to
// a zero tensor.
func broadcastTo(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	zeros := tensor.MustRaw(shape, backend.Device())
	return backend.Add(zeros, grad)
}

// oneMinus returns 1 - x.
func oneMinus(x *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return backend.AddScalar(backend.MulScalar(x, -1), 1)
}

// inversePermutation returns axes such that Transpose(Transpose(x, p), inv) == x.
func inversePermutation(axes []int) []int {
	inv := make([]int, len(axes))
	for i, ax := range axes {
		inv[ax] = i
	}
	return inv
}
