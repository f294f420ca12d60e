package tensor

import "fmt"

// Add returns t + other (broadcasting).
func (t *Tensor[B]) Add(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub returns t - other (broadcasting).
func (t *Tensor[B]) Sub(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul returns the element-wise product t * other (broadcasting).
func (t *Tensor[B]) Mul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div returns the element-wise quotient t / other (broadcasting).
func (t *Tensor[B]) Div(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Div(t.raw, other.raw), t.backend)
}

// AddScalar returns t + s.
func (t *Tensor[B]) AddScalar(s float32) *Tensor[B] {
	return New(t.backend.AddScalar(t.raw, s), t.backend)
}

// MulScalar returns t * s.
func (t *Tensor[B]) MulScalar(s float32) *Tensor[B] {
	return New(t.backend.MulScalar(t.raw, s), t.backend)
}

// MatMul returns the matrix product of two 2-D tensors.
func (t *Tensor[B]) MatMul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.MatMul(t.raw, other.raw), t.backend)
}

// BatchMatMul returns the batched matrix product of two 3-D tensors.
func (t *Tensor[B]) BatchMatMul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.BatchMatMul(t.raw, other.raw), t.backend)
}

// Reshape returns a tensor with the same data and a new shape.
// One dimension may be -1 and is inferred from the element count.
func (t *Tensor[B]) Reshape(dims ...int) *Tensor[B] {
	return New(t.backend.Reshape(t.raw, inferShape(dims, t.NumElements())), t.backend)
}

// Transpose permutes dimensions. Without axes it reverses them.
func (t *Tensor[B]) Transpose(axes ...int) *Tensor[B] {
	return New(t.backend.Transpose(t.raw, axes...), t.backend)
}

// T is shorthand for the transpose of a 2-D tensor.
func (t *Tensor[B]) T() *Tensor[B] {
	return t.Transpose(1, 0)
}

// Narrow returns length elements along dim starting at start.
func (t *Tensor[B]) Narrow(dim, start, length int) *Tensor[B] {
	return New(t.backend.Narrow(t.raw, dim, start, length), t.backend)
}

// Exp applies e^x element-wise.
func (t *Tensor[B]) Exp() *Tensor[B] {
	return New(t.backend.Exp(t.raw), t.backend)
}

// Log applies the natural logarithm element-wise.
func (t *Tensor[B]) Log() *Tensor[B] {
	return New(t.backend.Log(t.raw), t.backend)
}

// ReLU applies max(0, x) element-wise.
func (t *Tensor[B]) ReLU() *Tensor[B] {
	return New(t.backend.ReLU(t.raw), t.backend)
}

// Tanh applies the hyperbolic tangent element-wise.
func (t *Tensor[B]) Tanh() *Tensor[B] {
	return New(t.backend.Tanh(t.raw), t.backend)
}

// Sigmoid applies 1/(1+e^-x) element-wise.
func (t *Tensor[B]) Sigmoid() *Tensor[B] {
	return New(t.backend.Sigmoid(t.raw), t.backend)
}

// Softmax normalises along dim.
func (t *Tensor[B]) Softmax(dim int) *Tensor[B] {
	return New(t.backend.Softmax(t.raw, dim), t.backend)
}

// LogSoftmax returns log(softmax(x)) along dim, computed stably.
func (t *Tensor[B]) LogSoftmax(dim int) *Tensor[B] {
	return New(t.backend.LogSoftmax(t.raw, dim), t.backend)
}

// Sum reduces all elements to a scalar tensor.
func (t *Tensor[B]) Sum() *Tensor[B] {
	return New(t.backend.Sum(t.raw), t.backend)
}

// SumDim reduces along dim.
func (t *Tensor[B]) SumDim(dim int, keepDim bool) *Tensor[B] {
	return New(t.backend.SumDim(t.raw, dim, keepDim), t.backend)
}

// MaskedFill replaces elements where mask is non-zero with value.
// mask must broadcast to t's shape.
func (t *Tensor[B]) MaskedFill(mask *Tensor[B], value float32) *Tensor[B] {
	return New(t.backend.MaskedFill(t.raw, mask.raw, value), t.backend)
}

// Argmax returns, for every row of the last dimension, the index of the
// largest element. Ties resolve to the first index.
//
// It is not differentiable and bypasses the backend.
func (t *Tensor[B]) Argmax() []int {
	shape := t.Shape()
	if len(shape) == 0 {
		return []int{0}
	}
	cols := shape[len(shape)-1]
	data := t.Data()
	rows := len(data) / cols
	out := make([]int, rows)
	for r := 0; r < rows; r++ {
		row := data[r*cols : (r+1)*cols]
		best := 0
		for j := 1; j < cols; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[r] = best
	}
	return out
}

// Cat concatenates tensors along dim.
func Cat[B Backend](ts []*Tensor[B], dim int) *Tensor[B] {
	if len(ts) == 0 {
		panic("cat: no tensors")
	}
	raws := make([]*RawTensor, len(ts))
	for i, t := range ts {
		raws[i] = t.raw
	}
	b := ts[0].backend
	return New(b.Cat(raws, dim), b)
}

// Embedding looks up rows of weight for each id.
// The result has shape [len(ids), weight.Shape()[1]].
func Embedding[B Backend](weight *Tensor[B], ids []int32) *Tensor[B] {
	return New(weight.backend.Embedding(weight.raw, ids), weight.backend)
}

// inferShape resolves a single -1 dimension.
func inferShape(dims []int, numElements int) Shape {
	shape := make(Shape, len(dims))
	copy(shape, dims)
	unknown := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if unknown >= 0 {
				panic(fmt.Sprintf("reshape: more than one -1 in %v", dims))
			}
			unknown = i
			continue
		}
		known *= d
	}
	if unknown >= 0 {
		if known == 0 || numElements%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension of %v for %d elements", dims, numElements))
		}
		shape[unknown] = numElements / known
	}
	return shape
}
