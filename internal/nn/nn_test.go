package nn_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/coursework/internal/autodiff"
	"github.com/born-ml/coursework/internal/backend/cpu"
	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(42, 0))
}

func fromSlice(t *testing.T, data []float32, backend Backend, shape ...int) *tensor.Tensor[Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape), backend)
	require.NoError(t, err)
	return x
}

// TestParameter tests Parameter creation and methods.
func TestParameter(t *testing.T) {
	backend := autodiff.New(cpu.New())
	data := fromSlice(t, []float32{1, 2, 3}, backend, 3)
	param := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.Nil(t, param.Grad())
	assert.Equal(t, 3, param.NumElements())

	grad := fromSlice(t, []float32{0.1, 0.2, 0.3}, backend, 3)
	param.SetGrad(grad)
	assert.Same(t, grad, param.Grad())
	param.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestLinear_ForwardValues(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(3, 2, newRNG(), backend)
	require.Len(t, layer.Parameters(), 2)
	assert.True(t, layer.Weight().Tensor().Shape().Equal(tensor.Shape{2, 3}))

	copy(layer.Weight().Tensor().Data(), []float32{1, 0, -1, 2, 1, 0})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -0.5})

	x := fromSlice(t, []float32{1, 2, 3, 0, 1, 0}, backend, 2, 3)
	y := layer.Forward(x)
	require.True(t, y.Shape().Equal(tensor.Shape{2, 2}))
	assert.InDeltaSlice(t, []float32{-1.5, 3.5, 0.5, 0.5}, y.Data(), 1e-6)

	assert.Panics(t, func() { layer.Forward(fromSlice(t, []float32{1, 2}, backend, 1, 2)) })
}

func TestLinear_InitWithinFanInBound(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(16, 4, newRNG(), backend)
	bound := float32(0.25)
	for _, v := range layer.Weight().Tensor().Data() {
		assert.LessOrEqual(t, float32(math.Abs(float64(v))), bound)
	}
}

func TestTiedLinear_SharesWeight(t *testing.T) {
	backend := autodiff.New(cpu.New())
	emb := nn.NewEmbedding(6, 4, 0, newRNG(), backend)
	gen := nn.NewTiedLinear(emb.Weight, true, newRNG(), backend)

	assert.Same(t, emb.Weight, gen.Weight())
	assert.Equal(t, 4, gen.InFeatures())
	assert.Equal(t, 6, gen.OutFeatures())
	params := gen.Parameters()
	require.Len(t, params, 1)
	assert.Same(t, gen.Bias(), params[0])
}

func TestConv2D_Shapes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	conv := nn.NewConv2D(1, 8, 5, 1, 2, newRNG(), backend)
	x := tensor.Zeros(tensor.Shape{2, 1, 28, 28}, backend)
	y := conv.Forward(x)
	assert.True(t, y.Shape().Equal(tensor.Shape{2, 8, 28, 28}), "got %v", y.Shape())

	h, w := conv.OutputSize(28, 28)
	assert.Equal(t, 28, h)
	assert.Equal(t, 28, w)

	// Zero input yields the bias in every position.
	bias := conv.Parameters()[1].Tensor().Data()
	assert.InDelta(t, bias[3], y.At(1, 3, 10, 10), 1e-6)
}

func TestConv2D_BiasGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	conv := nn.NewConv2D(1, 2, 3, 1, 1, newRNG(), backend)
	backend.Tape().StartRecording()
	x := tensor.Ones(tensor.Shape{1, 1, 4, 4}, backend)
	loss := conv.Forward(x).Sum()
	grads := autodiff.Backward(loss, backend)

	bias := conv.Parameters()[1]
	g, ok := grads[bias.Tensor().Raw()]
	require.True(t, ok)
	// d(sum)/d(bias_c) counts the output positions of channel c.
	assert.Equal(t, []float32{16, 16}, g.AsFloat32())
}

func TestMaxPool2D_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	pool := nn.NewMaxPool2D(2, 2, backend)
	x := tensor.Zeros(tensor.Shape{1, 16, 13, 13}, backend)
	assert.True(t, pool.Forward(x).Shape().Equal(tensor.Shape{1, 16, 6, 6}))
	assert.Empty(t, pool.Parameters())
}

func TestDropout_TrainAndEval(t *testing.T) {
	backend := autodiff.New(cpu.New())
	d := nn.NewDropout[Backend](0.5, newRNG())
	x := tensor.Ones(tensor.Shape{1000}, backend)

	y := d.Forward(x).Data()
	zeros := 0
	for _, v := range y {
		switch v {
		case 0:
			zeros++
		default:
			assert.InDelta(t, 2.0, v, 1e-6)
		}
	}
	assert.InDelta(t, 500, zeros, 80)

	nn.SetTraining(false, d)
	assert.False(t, d.Training())
	assert.Same(t, x, d.Forward(x))

	assert.Panics(t, func() { nn.NewDropout[Backend](1, newRNG()) })
}

func TestSequential_ParametersAndMode(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := newRNG()
	drop := nn.NewDropout[Backend](0.3, rng)
	model := nn.NewSequential[Backend](
		nn.NewLinear(4, 3, rng, backend),
		nn.NewReLU[Backend](),
		drop,
		nn.NewLinear(3, 2, rng, backend),
		nn.NewLogSoftmax[Backend](),
	)
	assert.Equal(t, 5, model.Len())
	assert.Len(t, model.Parameters(), 4)
	assert.Equal(t, 4*3+3+3*2+2, nn.CountParameters(model.Parameters()))

	model.SetTraining(false)
	assert.False(t, drop.Training())

	out := model.Forward(tensor.Ones(tensor.Shape{5, 4}, backend))
	require.True(t, out.Shape().Equal(tensor.Shape{5, 2}))
	for r := 0; r < 5; r++ {
		p := math.Exp(float64(out.At(r, 0))) + math.Exp(float64(out.At(r, 1)))
		assert.InDelta(t, 1.0, p, 1e-5)
	}
	assert.Panics(t, func() { model.Module(5) })
}

func TestFlatten(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Zeros(tensor.Shape{3, 16, 6, 6}, backend)
	assert.True(t, nn.NewFlatten[Backend]().Forward(x).Shape().Equal(tensor.Shape{3, 576}))
}

func TestAccuracy(t *testing.T) {
	assert.InDelta(t, 0.75, nn.Accuracy([]int{1, 2, 3, 4}, []int{1, 2, 0, 4}), 1e-12)
	assert.Equal(t, 0.0, nn.Accuracy(nil, nil))
	assert.Panics(t, func() { nn.Accuracy([]int{1}, []int{1, 2}) })
}

func TestSequenceMask(t *testing.T) {
	backend := autodiff.New(cpu.New())
	m := nn.SequenceMask([]int{3, 1}, 3, backend)
	assert.Equal(t, []float32{1, 1, 1, 1, 0, 0}, m.Data())
	p := nn.PaddingMask([]int{3, 1}, 3, backend)
	assert.Equal(t, []float32{0, 0, 0, 0, 1, 1}, p.Data())
}
