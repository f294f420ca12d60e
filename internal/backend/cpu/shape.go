package cpu

import (
	"fmt"

	"github.com/born-ml/coursework/internal/tensor"
)

// Reshape returns a copy of x with a new shape of equal element count.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if shape.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v into %v", x.Shape(), shape))
	}
	result := tensor.MustRaw(shape, cpu.device)
	result.CopyFrom(x)
	return result
}

// Transpose permutes the dimensions of x. With no axes the order is reversed.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: %d axes for %dD tensor", len(axes), ndim))
	}

	outShape := make(tensor.Shape, ndim)
	seen := make([]bool, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v", axes))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	// Fast path for matrices.
	if ndim == 2 && axes[0] == 1 {
		rows, cols := shape[0], shape[1]
		result := tensor.MustRaw(outShape, cpu.device)
		in, out := x.AsFloat32(), result.AsFloat32()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				out[j*rows+i] = in[i*cols+j]
			}
		}
		return result
	}

	inStrides := x.Strides()
	// srcStrides[i] is the input stride walked when output dim i advances.
	srcStrides := make([]int, ndim)
	for i, ax := range axes {
		srcStrides[i] = inStrides[ax]
	}

	result := tensor.MustRaw(outShape, cpu.device)
	in, out := x.AsFloat32(), result.AsFloat32()
	index := make([]int, ndim)
	src := 0
	for i := range out {
		out[i] = in[src]
		for d := ndim - 1; d >= 0; d-- {
			index[d]++
			src += srcStrides[d]
			if index[d] < outShape[d] {
				break
			}
			src -= srcStrides[d] * outShape[d]
			index[d] = 0
		}
	}
	return result
}

// Cat concatenates tensors along dim. All other dimensions must match.
func (cpu *CPUBackend) Cat(xs []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(xs) == 0 {
		panic("cat: no tensors")
	}
	first := xs[0].Shape()
	dim = first.NormalizeDim(dim)

	outShape := first.Clone()
	outShape[dim] = 0
	for _, x := range xs {
		s := x.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cat: rank mismatch %v vs %v", first, s))
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cat: shape mismatch %v vs %v at dim %d", first, s, d))
			}
		}
		outShape[dim] += s[dim]
	}

	outer, inner := splitAround(outShape, dim)
	result := tensor.MustRaw(outShape, cpu.device)
	out := result.AsFloat32()
	rowLen := outShape[dim] * inner

	offset := 0
	for _, x := range xs {
		chunk := x.Shape()[dim] * inner
		data := x.AsFloat32()
		for o := 0; o < outer; o++ {
			copy(out[o*rowLen+offset:o*rowLen+offset+chunk], data[o*chunk:(o+1)*chunk])
		}
		offset += chunk
	}
	return result
}

// Narrow returns length elements along dim starting at start.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dim %d of %v", start, start+length, dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	outer, inner := splitAround(shape, dim)
	result := tensor.MustRaw(outShape, cpu.device)
	in, out := x.AsFloat32(), result.AsFloat32()

	srcRow := shape[dim] * inner
	dstRow := length * inner
	for o := 0; o < outer; o++ {
		copy(out[o*dstRow:(o+1)*dstRow], in[o*srcRow+start*inner:o*srcRow+(start+length)*inner])
	}
	return result
}

// splitAround returns the product of dimensions before and after dim.
func splitAround(shape tensor.Shape, dim int) (outer, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, inner
}
