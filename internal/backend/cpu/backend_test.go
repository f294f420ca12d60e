package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/coursework/internal/tensor"
)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.RawFromSlice(append([]float32(nil), data...), tensor.Shape(shape), tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestCPUBackend_Metadata(t *testing.T) {
	b := New()
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.CPU, b.Device())
}

func TestCPUBackend_BinaryBroadcast(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	row := raw(t, []float32{10, 20, 30}, 3)
	col := raw(t, []float32{1, 2}, 2, 1)

	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, b.Add(a, row).AsFloat32())
	assert.Equal(t, []float32{0, 1, 2, 2, 3, 4}, b.Sub(a, col).AsFloat32())
	assert.Equal(t, []float32{1, 2, 3, 8, 10, 12}, b.Mul(a, col).AsFloat32())
	assert.Equal(t, []float32{0.1, 0.1, 0.1, 0.4, 0.25, 0.2}, b.Div(a, row).AsFloat32())

	scalar := raw(t, []float32{2}, 1)
	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12}, b.Mul(a, scalar).AsFloat32())
}

func TestCPUBackend_BinaryIncompatiblePanics(t *testing.T) {
	b := New()
	assert.Panics(t, func() {
		b.Add(raw(t, []float32{1, 2, 3}, 3), raw(t, []float32{1, 2}, 2))
	})
}

func TestCPUBackend_Scalar(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, -2}, 2)
	assert.Equal(t, []float32{3, 0}, b.AddScalar(a, 2).AsFloat32())
	assert.Equal(t, []float32{-3, 6}, b.MulScalar(a, -3).AsFloat32())
	// Inputs are never mutated.
	assert.Equal(t, []float32{1, -2}, a.AsFloat32())
}

func TestCPUBackend_MatMul(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	c := raw(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)
	out := b.MatMul(a, c)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{58, 64, 139, 154}, out.AsFloat32())

	assert.Panics(t, func() { b.MatMul(a, a) })
}

func TestCPUBackend_BatchMatMul(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 0, 0, 1, 2, 0, 0, 2}, 2, 2, 2)
	c := raw(t, []float32{1, 2, 3, 4, 1, 2, 3, 4}, 2, 2, 2)
	out := b.BatchMatMul(a, c)
	assert.Equal(t, []float32{1, 2, 3, 4, 2, 4, 6, 8}, out.AsFloat32())
}

func TestCPUBackend_Transpose(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	out := b.Transpose(a)
	assert.True(t, out.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.AsFloat32())

	x := raw(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, 2, 2, 2)
	out = b.Transpose(x, 0, 2, 1)
	assert.Equal(t, []float32{0, 2, 1, 3, 4, 6, 5, 7}, out.AsFloat32())
}

func TestCPUBackend_CatNarrow(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4}, 2, 2)
	c := raw(t, []float32{5, 6}, 2, 1)
	cat := b.Cat([]*tensor.RawTensor{a, c}, 1)
	assert.True(t, cat.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{1, 2, 5, 3, 4, 6}, cat.AsFloat32())

	n := b.Narrow(cat, 1, 1, 2)
	assert.Equal(t, []float32{2, 5, 4, 6}, n.AsFloat32())

	rows := b.Cat([]*tensor.RawTensor{a, a}, 0)
	assert.True(t, rows.Shape().Equal(tensor.Shape{4, 2}))
	assert.Equal(t, []float32{3, 4, 1, 2}, b.Narrow(rows, 0, 1, 2).AsFloat32())
}

func TestCPUBackend_Reshape(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	out := b.Reshape(a, tensor.Shape{3, 2})
	assert.True(t, out.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, a.AsFloat32(), out.AsFloat32())
	assert.Panics(t, func() { b.Reshape(a, tensor.Shape{4}) })
}

func TestCPUBackend_SoftmaxRowsSumToOne(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 1000, 1000, 1000}, 2, 3)
	out := b.Softmax(a, -1).AsFloat32()
	assert.InDelta(t, 1.0, out[0]+out[1]+out[2], 1e-6)
	assert.InDelta(t, 1.0/3, out[4], 1e-6)
	assert.Greater(t, out[2], out[1])

	logp := b.LogSoftmax(a, 1).AsFloat32()
	assert.InDelta(t, -1.0986123, logp[3], 1e-6)
}

func TestCPUBackend_LogSoftmaxLargeLogits(t *testing.T) {
	b := New()
	a := raw(t, []float32{1000, 1000, 1000, 1e4, 1e4 - 1, 1e4 - 2}, 2, 3)
	logp := b.LogSoftmax(a, -1).AsFloat32()
	for i := range 3 {
		assert.InDelta(t, -1.0986123, logp[i], 1e-6)
	}
	// Offsets from the row maximum survive exactly.
	assert.InDelta(t, -0.40760596, logp[3], 1e-6)
	assert.InDelta(t, -1.407606, logp[4], 1e-6)
	assert.InDelta(t, -2.407606, logp[5], 1e-6)
}

func TestCPUBackend_SoftmaxAlongDimZero(t *testing.T) {
	b := New()
	a := raw(t, []float32{0, 0, 0, 0}, 2, 2)
	out := b.Softmax(a, 0).AsFloat32()
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, out)
}

func TestCPUBackend_Activations(t *testing.T) {
	b := New()
	a := raw(t, []float32{-1, 0, 2}, 3)
	assert.Equal(t, []float32{0, 0, 2}, b.ReLU(a).AsFloat32())
	sig := b.Sigmoid(a).AsFloat32()
	assert.InDelta(t, 0.5, sig[1], 1e-7)
	assert.InDelta(t, 0.26894142, sig[0], 1e-6)
	th := b.Tanh(a).AsFloat32()
	assert.InDelta(t, 0.9640276, th[2], 1e-6)
	ex := b.Exp(a).AsFloat32()
	assert.InDelta(t, 1.0, ex[1], 1e-7)
	assert.InDelta(t, 0.0, b.Log(b.Exp(a)).AsFloat32()[1], 1e-7)
}

func TestCPUBackend_Reductions(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	sum := b.Sum(a)
	assert.Equal(t, 0, len(sum.Shape()))
	assert.Equal(t, float32(21), sum.AsFloat32()[0])

	rows := b.SumDim(a, 1, false)
	assert.True(t, rows.Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{6, 15}, rows.AsFloat32())

	cols := b.SumDim(a, 0, true)
	assert.True(t, cols.Shape().Equal(tensor.Shape{1, 3}))
	assert.Equal(t, []float32{5, 7, 9}, cols.AsFloat32())
}

func TestCPUBackend_Embedding(t *testing.T) {
	b := New()
	w := raw(t, []float32{0, 0, 1, 1, 2, 2}, 3, 2)
	out := b.Embedding(w, []int32{2, 0, 2})
	assert.True(t, out.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, []float32{2, 2, 0, 0, 2, 2}, out.AsFloat32())
	assert.Panics(t, func() { b.Embedding(w, []int32{3}) })
}

func TestCPUBackend_MaskedFill(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4}, 2, 2)
	mask := raw(t, []float32{0, 1}, 1, 2)
	out := b.MaskedFill(a, mask, -9)
	assert.Equal(t, []float32{1, -9, 3, -9}, out.AsFloat32())
}
