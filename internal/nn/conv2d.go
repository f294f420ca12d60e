package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/tensor"
)

// Conv2D implements a 2D convolutional layer with square kernels.
//
// Input:  [N, C_in, H, W]
// Output: [N, C_out, H_out, W_out] with
// H_out = (H + 2*padding - kernel) / stride + 1.
//
// Example:
//
//	conv := nn.NewConv2D(1, 8, 5, 1, 2, rng, backend) // 28x28 -> 28x28
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B] // [out_channels, in_channels, kernel, kernel]
	bias   *Parameter[B] // [out_channels]

	backend B
}

// NewConv2D creates a new Conv2D layer with a bias.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (filters)
//   - kernelSize: Height and width of the kernel
//   - stride: Stride of the convolution
//   - padding: Zero-padding added to both sides
//   - rng: Random source for initialisation
//   - backend: Computation backend
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding int,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	fanIn := inChannels * kernelSize * kernelSize
	weight := FanInUniform(fanIn, tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, rng, backend)
	bias := FanInUniform(fanIn, tensor.Shape{outChannels}, rng, backend)

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("conv2d.weight", weight),
		bias:        NewParameter("conv2d.bias", bias),
		backend:     backend,
	}
}

// Forward performs the convolution and adds the per-channel bias.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	out := tensor.New(c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding), c.backend)
	// Reshape is recorded, so the gradient flows back to the [C_out] bias.
	return out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
}

// Parameters returns [weight, bias].
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// OutputSize returns the spatial output size for an input of size h x w.
func (c *Conv2D[B]) OutputSize(h, w int) (int, int) {
	return (h+2*c.padding-c.kernelSize)/c.stride + 1, (w+2*c.padding-c.kernelSize)/c.stride + 1
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding)
}
