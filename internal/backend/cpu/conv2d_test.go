package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/coursework/internal/parallel"
	"github.com/born-ml/coursework/internal/tensor"
)

// TestConv2D_BasicForward tests basic Conv2D forward pass.
func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := raw(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	// Diagonal kernel:
	// 1 0
	// 0 1
	kernel := raw(t, []float32{1, 0, 0, 1}, 1, 1, 2, 2)

	output := backend.Conv2D(input, kernel, 1, 0)
	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 2, 2}), "got %v", output.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, output.AsFloat32())
}

// TestConv2D_WithPadding tests Conv2D with zero padding.
func TestConv2D_WithPadding(t *testing.T) {
	backend := New()
	input := raw(t, []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}, 1, 1, 3, 3)
	kernel := raw(t, []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}, 1, 1, 3, 3)

	output := backend.Conv2D(input, kernel, 1, 1)
	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 3, 3}))
	// Corners see 4 ones, edges 6, the center 9.
	assert.Equal(t, []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}, output.AsFloat32())
}

// TestConv2D_Stride checks output geometry with stride 2.
func TestConv2D_Stride(t *testing.T) {
	backend := New()
	data := make([]float32, 2*2*5*5)
	for i := range data {
		data[i] = float32(i % 7)
	}
	input := raw(t, data, 2, 2, 5, 5)
	kernel := tensor.MustRaw(tensor.Shape{3, 2, 3, 3}, tensor.CPU)
	kernel.Fill(1)

	output := backend.Conv2D(input, kernel, 2, 1)
	assert.True(t, output.Shape().Equal(tensor.Shape{2, 3, 3, 3}), "got %v", output.Shape())
}

func TestConv2D_ChannelMismatchPanics(t *testing.T) {
	backend := New()
	input := tensor.MustRaw(tensor.Shape{1, 2, 4, 4}, tensor.CPU)
	kernel := tensor.MustRaw(tensor.Shape{1, 3, 2, 2}, tensor.CPU)
	assert.Panics(t, func() { backend.Conv2D(input, kernel, 1, 0) })
}

// TestConv2D_KernelBackwardMatchesForward uses linearity: with an all-ones
// output gradient, dKernel[k] equals the sum of the inputs kernel tap k saw.
func TestConv2D_KernelBackwardMatchesForward(t *testing.T) {
	backend := New()
	input := raw(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	kernel := tensor.MustRaw(tensor.Shape{1, 1, 2, 2}, tensor.CPU)
	grad := tensor.MustRaw(tensor.Shape{1, 1, 2, 2}, tensor.CPU)
	grad.Fill(1)

	dk := backend.Conv2DKernelBackward(input, kernel, grad, 1, 0)
	assert.Equal(t, []float32{12, 16, 24, 28}, dk.AsFloat32())

	kernel.Fill(1)
	dx := backend.Conv2DInputBackward(input, kernel, grad, 1, 0)
	// Each input pixel counts how many windows covered it.
	assert.Equal(t, []float32{1, 2, 1, 2, 4, 2, 1, 2, 1}, dx.AsFloat32())
}

func TestCPUBackend_ParallelMatchesSequential(t *testing.T) {
	seq := NewWithConfig(parallel.Sequential())
	par := NewWithConfig(parallel.Config{Workers: 4, MinChunk: 1})

	fill := func(shape ...int) *tensor.RawTensor {
		r := tensor.MustRaw(tensor.Shape(shape), tensor.CPU)
		for i := range r.AsFloat32() {
			r.AsFloat32()[i] = float32((i*7)%11) - 5
		}
		return r
	}

	input := fill(3, 2, 9, 9)
	kernel := fill(4, 2, 3, 3)
	out := seq.Conv2D(input, kernel, 1, 1)
	require.Equal(t, out.AsFloat32(), par.Conv2D(input, kernel, 1, 1).AsFloat32())

	grad := fill(out.Shape()...)
	assert.Equal(t,
		seq.Conv2DKernelBackward(input, kernel, grad, 1, 1).AsFloat32(),
		par.Conv2DKernelBackward(input, kernel, grad, 1, 1).AsFloat32())
	assert.Equal(t,
		seq.Conv2DInputBackward(input, kernel, grad, 1, 1).AsFloat32(),
		par.Conv2DInputBackward(input, kernel, grad, 1, 1).AsFloat32())

	a, b := fill(37, 13), fill(13, 5)
	assert.Equal(t, seq.MatMul(a, b).AsFloat32(), par.MatMul(a, b).AsFloat32())
	ba, bb := fill(6, 4, 3), fill(6, 3, 2)
	assert.Equal(t, seq.BatchMatMul(ba, bb).AsFloat32(), par.BatchMatMul(ba, bb).AsFloat32())
}
