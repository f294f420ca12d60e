package optim_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/coursework/internal/autodiff"
	"github.com/born-ml/coursework/internal/backend/cpu"
	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/optim"
	"github.com/born-ml/coursework/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func scalarParam(t *testing.T, v float32, backend Backend) *nn.Parameter[Backend] {
	t.Helper()
	x, err := tensor.FromSlice([]float32{v}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	return nn.NewParameter("x", x)
}

func gradOf(param *nn.Parameter[Backend], g float32) map[*tensor.RawTensor]*tensor.RawTensor {
	raw := tensor.MustRaw(tensor.Shape{1}, tensor.CPU)
	raw.AsFloat32()[0] = g
	return map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): raw}
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, 2.0, backend)
	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{param}, optim.SGDConfig{LR: 0.1}, backend)

	optimizer.Step(gradOf(param, 1.0))

	// x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	if got := param.Tensor().Data()[0]; !floatEqual(got, 1.9, 1e-6) {
		t.Errorf("SGD update: got %f, want 1.9", got)
	}
}

// TestSGD_WithMomentum tests SGD with momentum.
func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, 1.0, backend)
	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	optimizer.Step(gradOf(param, 1.0)) // v=1, x=0.9
	optimizer.Step(gradOf(param, 1.0)) // v=1.9, x=0.71

	if got := param.Tensor().Data()[0]; !floatEqual(got, 0.71, 1e-6) {
		t.Errorf("SGD momentum: got %f, want 0.71", got)
	}
}

func TestSGD_WeightDecay(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, 2.0, backend)
	optimizer := optim.NewSGD([]*nn.Parameter[Backend]{param}, optim.SGDConfig{LR: 0.1, WeightDecay: 0.5}, backend)

	optimizer.Step(gradOf(param, 1.0))
	// g = 1 + 0.5*2 = 2; x = 2 - 0.2
	assert.InDelta(t, 1.8, param.Tensor().Data()[0], 1e-6)
}

// TestAdam_FirstStep checks the first Adam step moves each weight by ~lr.
func TestAdam_FirstStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, 1.0, backend)
	optimizer := optim.NewAdam([]*nn.Parameter[Backend]{param}, optim.AdamConfig{LR: 0.01}, backend)

	optimizer.Step(gradOf(param, 5.0))
	assert.InDelta(t, 0.99, param.Tensor().Data()[0], 1e-5)
	assert.Equal(t, 1, optimizer.GetTimestep())
	assert.Equal(t, float32(0.01), optimizer.GetLR())
}

func TestAdam_SkipsParametersWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := scalarParam(t, 1.0, backend)
	b := scalarParam(t, 3.0, backend)
	optimizer := optim.NewAdam([]*nn.Parameter[Backend]{a, b}, optim.AdamConfig{}, backend)

	optimizer.Step(gradOf(a, 1.0))
	assert.Equal(t, float32(3.0), b.Tensor().Data()[0])
	assert.Equal(t, float32(0.001), optimizer.GetLR())
}

func TestNew(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[Backend]{scalarParam(t, 1, backend)}

	sgd, err := optim.New("sgd", params, optim.Config{LR: 0.5}, backend)
	require.NoError(t, err)
	assert.IsType(t, &optim.SGD[Backend]{}, sgd)
	assert.Equal(t, float32(0.5), sgd.GetLR())

	adam, err := optim.New("Adam", params, optim.Config{}, backend)
	require.NoError(t, err)
	assert.IsType(t, &optim.Adam[Backend]{}, adam)

	_, err = optim.New("rmsprop", params, optim.Config{}, backend)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optim.ErrUnknownOptimizer))
}

// TestOptimizers_FitLinearRegression trains y = 3x - 1 end to end through
// the tape.
func TestOptimizers_FitLinearRegression(t *testing.T) {
	for _, name := range []string{"sgd", "adam"} {
		t.Run(name, func(t *testing.T) {
			backend := autodiff.New(cpu.New())
			rng := rand.New(rand.NewPCG(42, 0))
			layer := nn.NewLinear(1, 1, rng, backend)
			optimizer, err := optim.New(name, layer.Parameters(), optim.Config{LR: 0.05}, backend)
			require.NoError(t, err)

			xs := []float32{-1, -0.5, 0, 0.5, 1}
			ys := make([]float32, len(xs))
			for i, x := range xs {
				ys[i] = 3*x - 1
			}
			x, _ := tensor.FromSlice(xs, tensor.Shape{5, 1}, backend)
			y, _ := tensor.FromSlice(ys, tensor.Shape{5, 1}, backend)

			var last float32
			for step := 0; step < 400; step++ {
				backend.Tape().Clear()
				backend.Tape().StartRecording()
				diff := layer.Forward(x).Sub(y)
				loss := diff.Mul(diff).Sum().MulScalar(1.0 / 5)
				grads := autodiff.Backward(loss, backend)
				backend.Tape().StopRecording()
				optimizer.ZeroGrad()
				optimizer.Step(grads)
				last = loss.Item()
			}
			assert.Less(t, last, float32(1e-2))
			assert.InDelta(t, 3.0, layer.Weight().Tensor().Data()[0], 0.1)
			assert.InDelta(t, -1.0, layer.Bias().Tensor().Data()[0], 0.1)
		})
	}
}
