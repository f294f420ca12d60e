package cpu

import (
	"fmt"

	"github.com/born-ml/coursework/internal/parallel"
	"github.com/born-ml/coursework/internal/tensor"
)

// convGeometry holds the dimensions of one Conv2D call.
type convGeometry struct {
	n, cIn, h, w       int
	cOut, kh, kw       int
	hOut, wOut         int
	stride, padding    int
	colWidth, colCount int
}

func newConvGeometry(input, kernel *tensor.RawTensor, stride, padding int) convGeometry {
	is, ks := input.Shape(), kernel.Shape()
	if len(is) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %v", is))
	}
	if len(ks) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %v", ks))
	}
	if is[1] != ks[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", is[1], ks[1]))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d / padding %d", stride, padding))
	}
	g := convGeometry{
		n: is[0], cIn: is[1], h: is[2], w: is[3],
		cOut: ks[0], kh: ks[2], kw: ks[3],
		stride: stride, padding: padding,
	}
	g.hOut = (g.h+2*padding-g.kh)/stride + 1
	g.wOut = (g.w+2*padding-g.kw)/stride + 1
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("conv2d: kernel %dx%d does not fit input %dx%d with padding %d", g.kh, g.kw, g.h, g.w, padding))
	}
	g.colWidth = g.cIn * g.kh * g.kw
	g.colCount = g.n * g.hOut * g.wOut
	return g
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out] with
// H_out = (H + 2*padding - K_h)/stride + 1.
//
// Every receptive field is unrolled into a row of a column buffer, after
// which the convolution is a single matrix product with the flattened
// kernel.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry(input, kernel, stride, padding)
	col := im2col(input.AsFloat32(), g)
	kd := kernel.AsFloat32()

	output := tensor.MustRaw(tensor.Shape{g.n, g.cOut, g.hOut, g.wOut}, cpu.device)
	out := output.AsFloat32()
	spatial := g.hOut * g.wOut

	parallel.Range(g.colCount, cpu.par, func(lo, hi int) {
		for row := lo; row < hi; row++ {
			n, pos := row/spatial, row%spatial
			patch := col[row*g.colWidth : (row+1)*g.colWidth]
			for co := 0; co < g.cOut; co++ {
				k := kd[co*g.colWidth : (co+1)*g.colWidth]
				var sum float32
				for i, v := range patch {
					sum += v * k[i]
				}
				out[(n*g.cOut+co)*spatial+pos] = sum
			}
		}
	})
	return output
}

// Conv2DKernelBackward computes the gradient of the loss with respect to
// the kernel: dK[co, k] = sum over rows of grad[n, co, pos] * col[row, k].
// Output channels are independent and split across workers.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry(input, kernel, stride, padding)
	col := im2col(input.AsFloat32(), g)
	gd := grad.AsFloat32()

	result := tensor.MustRaw(kernel.Shape(), cpu.device)
	dk := result.AsFloat32()
	spatial := g.hOut * g.wOut

	parallel.Range(g.cOut, parallel.Config{Workers: cpu.par.Workers, MinChunk: 1}, func(lo, hi int) {
		for row := 0; row < g.colCount; row++ {
			n, pos := row/spatial, row%spatial
			patch := col[row*g.colWidth : (row+1)*g.colWidth]
			for co := lo; co < hi; co++ {
				gv := gd[(n*g.cOut+co)*spatial+pos]
				if gv == 0 {
					continue
				}
				k := dk[co*g.colWidth : (co+1)*g.colWidth]
				for i, v := range patch {
					k[i] += gv * v
				}
			}
		}
	})
	return result
}

// Conv2DInputBackward computes the gradient with respect to the input by
// forming column gradients and scattering them back with col2im.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry(input, kernel, stride, padding)
	kd, gd := kernel.AsFloat32(), grad.AsFloat32()
	spatial := g.hOut * g.wOut

	dcol := make([]float32, g.colCount*g.colWidth)
	parallel.Range(g.colCount, cpu.par, func(lo, hi int) {
		for row := lo; row < hi; row++ {
			n, pos := row/spatial, row%spatial
			dst := dcol[row*g.colWidth : (row+1)*g.colWidth]
			for co := 0; co < g.cOut; co++ {
				gv := gd[(n*g.cOut+co)*spatial+pos]
				if gv == 0 {
					continue
				}
				k := kd[co*g.colWidth : (co+1)*g.colWidth]
				for i, v := range k {
					dst[i] += gv * v
				}
			}
		}
	})

	result := tensor.MustRaw(input.Shape(), cpu.device)
	col2im(result.AsFloat32(), dcol, g)
	return result
}

// im2col unrolls receptive fields into rows of
// [N*H_out*W_out, C_in*K_h*K_w]. Padded positions stay zero.
func im2col(in []float32, g convGeometry) []float32 {
	col := make([]float32, g.colCount*g.colWidth)
	row := 0
	for n := 0; n < g.n; n++ {
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				dst := col[row*g.colWidth : (row+1)*g.colWidth]
				i := 0
				for c := 0; c < g.cIn; c++ {
					base := (n*g.cIn + c) * g.h * g.w
					for ky := 0; ky < g.kh; ky++ {
						y := oh*g.stride - g.padding + ky
						for kx := 0; kx < g.kw; kx++ {
							x := ow*g.stride - g.padding + kx
							if y >= 0 && y < g.h && x >= 0 && x < g.w {
								dst[i] = in[base+y*g.w+x]
							}
							i++
						}
					}
				}
				row++
			}
		}
	}
	return col
}

// col2im is the adjoint of im2col: it accumulates column entries back
// into their source pixels.
func col2im(out, col []float32, g convGeometry) {
	row := 0
	for n := 0; n < g.n; n++ {
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				src := col[row*g.colWidth : (row+1)*g.colWidth]
				i := 0
				for c := 0; c < g.cIn; c++ {
					base := (n*g.cIn + c) * g.h * g.w
					for ky := 0; ky < g.kh; ky++ {
						y := oh*g.stride - g.padding + ky
						for kx := 0; kx < g.kw; kx++ {
							x := ow*g.stride - g.padding + kx
							if y >= 0 && y < g.h && x >= 0 && x < g.w {
								out[base+y*g.w+x] += src[i]
							}
							i++
						}
					}
				}
				row++
			}
		}
	}
}
