// Package tensor provides the float32 tensor types and the Backend
// interface that compute backends implement.
package tensor

// Backend defines the operations a compute backend must provide.
//
// Every method returns a newly allocated RawTensor and never mutates its
// inputs. Shape errors are programming errors and panic.
//
// Implementations:
//   - cpu.CPUBackend: pure Go kernels
//   - autodiff.AutodiffBackend: decorator recording a gradient tape
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations.
	AddScalar(x *RawTensor, s float32) *RawTensor
	MulScalar(x *RawTensor, s float32) *RawTensor

	// MatMul multiplies 2-D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor
	// BatchMatMul multiplies 3-D batches: [B, M, K] @ [B, K, N] -> [B, M, N].
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor
	Cat(xs []*RawTensor, dim int) *RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor

	// Convolution and pooling over [N, C, H, W] inputs.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, kernelSize, stride int) *RawTensor

	// Element-wise math and activations.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor
	LogSoftmax(x *RawTensor, dim int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Indexing.
	Embedding(weight *RawTensor, ids []int32) *RawTensor
	MaskedFill(x, mask *RawTensor, value float32) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
