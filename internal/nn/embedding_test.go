package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/coursework/internal/autodiff"
	"github.com/born-ml/coursework/internal/backend/cpu"
	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/tensor"
)

func TestEmbedding_Lookup(t *testing.T) {
	backend := autodiff.New(cpu.New())
	emb := nn.NewEmbedding(5, 3, nn.NoPadding, newRNG(), backend)
	w := emb.Weight.Tensor()

	out := emb.Forward([]int32{4, 1})
	require.True(t, out.Shape().Equal(tensor.Shape{2, 3}))
	for j := 0; j < 3; j++ {
		assert.Equal(t, w.At(4, j), out.At(0, j))
		assert.Equal(t, w.At(1, j), out.At(1, j))
	}
	assert.Panics(t, func() { emb.Forward([]int32{5}) })
}

func TestEmbedding_PaddingRowZeroAndFrozen(t *testing.T) {
	backend := autodiff.New(cpu.New())
	emb := nn.NewEmbedding(4, 3, 0, newRNG(), backend)
	w := emb.Weight.Tensor()
	for j := 0; j < 3; j++ {
		assert.Equal(t, float32(0), w.At(0, j))
	}

	// Force a non-zero padding row to check the output is still zero.
	w.Set(5, 0, 1)

	backend.Tape().StartRecording()
	out := emb.Forward([]int32{2, 0, 2})
	assert.Equal(t, []float32{0, 0, 0}, out.Data()[3:6])

	grads := autodiff.Backward(out.Sum(), backend)
	g := grads[w.Raw()].AsFloat32()
	assert.Equal(t, []float32{0, 0, 0}, g[0:3], "padding row must get no gradient")
	assert.Equal(t, []float32{2, 2, 2}, g[6:9], "repeated id accumulates")
}

func TestEmbedding_InvalidPadding(t *testing.T) {
	backend := autodiff.New(cpu.New())
	assert.Panics(t, func() { nn.NewEmbedding(4, 3, 4, newRNG(), backend) })
}
