// Package cpu implements tensor.Backend with pure Go kernels.
package cpu

import (
	"fmt"

	"github.com/born-ml/coursework/internal/parallel"
	"github.com/born-ml/coursework/internal/tensor"
)

// CPUBackend implements tensor operations on the CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a CPU backend that spreads matrix products and
// convolutions over all CPUs.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit worker setup.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{device: tensor.CPU, par: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, func(x, y float32) float32 { return x / y })
}

// AddScalar adds s to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 { return v + s })
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 { return v * s })
}

// binary applies fn element-wise, broadcasting a and b to a common shape.
func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, fn func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	result := tensor.MustRaw(outShape, cpu.device)
	out := result.AsFloat32()
	ad, bd := a.AsFloat32(), b.AsFloat32()

	// Fast path: identical shapes.
	if !needsBroadcast {
		for i := range out {
			out[i] = fn(ad[i], bd[i])
		}
		return result
	}

	// A single-element right-hand side never changes the element count.
	if len(bd) == 1 {
		s := bd[0]
		for i := range out {
			out[i] = fn(ad[i], s)
		}
		return result
	}

	aStrides := a.Shape().BroadcastStrides(outShape)
	bStrides := b.Shape().BroadcastStrides(outShape)
	index := make([]int, len(outShape))
	ai, bi := 0, 0
	for i := range out {
		out[i] = fn(ad[ai], bd[bi])

		// Advance the multi-index odometer and the two input offsets.
		for d := len(outShape) - 1; d >= 0; d-- {
			index[d]++
			ai += aStrides[d]
			bi += bStrides[d]
			if index[d] < outShape[d] {
				break
			}
			ai -= aStrides[d] * outShape[d]
			bi -= bStrides[d] * outShape[d]
			index[d] = 0
		}
	}
	return result
}

// unary applies fn to every element of x.
func (cpu *CPUBackend) unary(x *tensor.RawTensor, fn func(v float32) float32) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), cpu.device)
	out := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		out[i] = fn(v)
	}
	return result
}

var _ tensor.Backend = (*CPUBackend)(nil)
