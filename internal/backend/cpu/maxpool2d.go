package cpu

import (
	"fmt"

	"github.com/born-ml/coursework/internal/tensor"
)

// MaxPool2D applies max pooling over [N, C, H, W] input with a square
// window. Output spatial size is (H - kernelSize)/stride + 1.
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	n, c, h, w, hOut, wOut := poolGeometry(input.Shape(), kernelSize, stride)
	output := tensor.MustRaw(tensor.Shape{n, c, hOut, wOut}, cpu.device)
	in, out := input.AsFloat32(), output.AsFloat32()

	for plane := 0; plane < n*c; plane++ {
		base := plane * h * w
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				out[(plane*hOut+oh)*wOut+ow] = in[base+argmaxWindow(in[base:base+h*w], w, oh*stride, ow*stride, kernelSize)]
			}
		}
	}
	return output
}

// MaxPool2DBackward routes each output gradient to the input position
// that held the window maximum. Every other position receives zero.
//
// Example (2x2 pool, stride=2):
//
//	Input:  [[1, 2],  Output: [4]  Input Grad: [[0, 0],
//	         [3, 4]]                             [0, grad]]
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	n, c, h, w, hOut, wOut := poolGeometry(input.Shape(), kernelSize, stride)
	gs := grad.Shape()
	if len(gs) != 4 || gs[2] != hOut || gs[3] != wOut {
		panic(fmt.Sprintf("maxpool2d backward: grad shape %v does not match output [%d,%d,%d,%d]", gs, n, c, hOut, wOut))
	}
	result := tensor.MustRaw(input.Shape(), cpu.device)
	in, gd, out := input.AsFloat32(), grad.AsFloat32(), result.AsFloat32()

	for plane := 0; plane < n*c; plane++ {
		base := plane * h * w
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				idx := argmaxWindow(in[base:base+h*w], w, oh*stride, ow*stride, kernelSize)
				out[base+idx] += gd[(plane*hOut+oh)*wOut+ow]
			}
		}
	}
	return result
}

func poolGeometry(shape tensor.Shape, kernelSize, stride int) (n, c, h, w, hOut, wOut int) {
	if len(shape) != 4 {
		panic(fmt.Sprintf("maxpool2d: input must be 4D [N,C,H,W], got %v", shape))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d / stride %d", kernelSize, stride))
	}
	n, c, h, w = shape[0], shape[1], shape[2], shape[3]
	hOut = (h-kernelSize)/stride + 1
	wOut = (w-kernelSize)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("maxpool2d: window %d larger than input %dx%d", kernelSize, h, w))
	}
	return n, c, h, w, hOut, wOut
}

// argmaxWindow returns the plane offset of the maximum inside the window
// whose top-left corner is (y0, x0). Ties resolve to the first position.
func argmaxWindow(plane []float32, width, y0, x0, size int) int {
	best := y0*width + x0
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			if idx := y*width + x; plane[idx] > plane[best] {
				best = idx
			}
		}
	}
	return best
}
