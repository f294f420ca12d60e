package cpu

import (
	"github.com/born-ml/coursework/internal/tensor"
)

// Sum reduces all elements into a scalar tensor of shape [].
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustRaw(tensor.Shape{}, cpu.device)
	var sum float32
	for _, v := range x.AsFloat32() {
		sum += v
	}
	result.AsFloat32()[0] = sum
	return result
}

// SumDim sums along dim. With keepDim the reduced dimension stays as size 1.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	outer, inner := splitAround(shape, dim)
	size := shape[dim]

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, len(shape)-1)
		outShape = append(outShape, shape[:dim]...)
		outShape = append(outShape, shape[dim+1:]...)
	}

	result := tensor.MustRaw(outShape, cpu.device)
	in, out := x.AsFloat32(), result.AsFloat32()
	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			src := in[(o*size+k)*inner : (o*size+k+1)*inner]
			dst := out[o*inner : (o+1)*inner]
			for i, v := range src {
				dst[i] += v
			}
		}
	}
	return result
}
