package ops

import "github.com/born-ml/coursework/internal/tensor"

// Conv2DOp represents a 2D convolution: output = conv2d(input, kernel).
//
// Backward pass:
//   - dInput: transposed convolution of the gradient with the kernel
//   - dKernel: correlation of the input with the gradient
type Conv2DOp struct {
	node
	stride, padding int
}

// NewConv2DOp creates a new Conv2DOp.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{node: newNode(output, input, kernel), stride: stride, padding: padding}
}

// Backward computes [dInput, dKernel].
func (op *Conv2DOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input, kernel := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.Conv2DInputBackward(input, kernel, grad, op.stride, op.padding),
		backend.Conv2DKernelBackward(input, kernel, grad, op.stride, op.padding),
	}
}

// MaxPool2DOp represents max pooling. Gradients flow only to the
// position that held each window's maximum.
type MaxPool2DOp struct {
	node
	kernelSize, stride int
}

// NewMaxPool2DOp creates a new MaxPool2DOp.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool2DOp {
	return &MaxPool2DOp{node: newNode(output, input), kernelSize: kernelSize, stride: stride}
}

// Backward routes the gradient to the argmax positions.
func (op *MaxPool2DOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(op.inputs[0], grad, op.kernelSize, op.stride)}
}
