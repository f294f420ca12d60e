package cpu

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/coursework/internal/tensor"
)

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, math32.Exp)
}

// Log computes the natural logarithm element-wise.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, math32.Log)
}

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Tanh computes the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, math32.Tanh)
}

// Sigmoid computes 1/(1+e^-x) element-wise, branching on the sign so
// neither side overflows.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 {
		if v >= 0 {
			return 1 / (1 + math32.Exp(-v))
		}
		e := math32.Exp(v)
		return e / (1 + e)
	})
}

// Softmax computes exp(x - max) / sum(exp(x - max)) along dim.
// Rows where every entry is -Inf produce zeros instead of NaN.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return cpu.alongDim(x, dim, func(in, out []float32, stride int) {
		maxVal := rowMax(in, stride)
		if math32.IsInf(maxVal, -1) {
			return
		}
		var sum float32
		for i := 0; i < len(in); i += stride {
			e := math32.Exp(in[i] - maxVal)
			out[i] = e
			sum += e
		}
		for i := 0; i < len(in); i += stride {
			out[i] /= sum
		}
	})
}

// LogSoftmax computes x - max - log(sum(exp(x - max))) along dim.
func (cpu *CPUBackend) LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return cpu.alongDim(x, dim, func(in, out []float32, stride int) {
		maxVal := rowMax(in, stride)
		var sum float32
		for i := 0; i < len(in); i += stride {
			sum += math32.Exp(in[i] - maxVal)
		}
		logSum := math32.Log(sum)
		for i := 0; i < len(in); i += stride {
			out[i] = (in[i] - maxVal) - logSum
		}
	})
}

// alongDim calls fn once per line of x along dim. Each line is handed over
// as a strided window: elements sit at indices 0, stride, 2*stride, ...
func (cpu *CPUBackend) alongDim(x *tensor.RawTensor, dim int, fn func(in, out []float32, stride int)) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	outer, inner := splitAround(shape, dim)
	size := shape[dim]

	result := tensor.MustRaw(shape, cpu.device)
	in, out := x.AsFloat32(), result.AsFloat32()
	span := (size-1)*inner + 1
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			start := o*size*inner + i
			fn(in[start:start+span], out[start:start+span], inner)
		}
	}
	return result
}

func rowMax(in []float32, stride int) float32 {
	maxVal := math32.Inf(-1)
	for i := 0; i < len(in); i += stride {
		if in[i] > maxVal {
			maxVal = in[i]
		}
	}
	return maxVal
}
