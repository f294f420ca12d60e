package linear

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(42, 0))
}

// twoBlobs returns points near (1, 0) labelled 0 and near (0, 1) labelled 1,
// with an optional trailing bias feature.
func twoBlobs(n int, bias bool, rng *rand.Rand) (*mat.Dense, []int) {
	cols := 2
	if bias {
		cols = 3
	}
	X := mat.NewDense(n, cols, nil)
	y := make([]int, n)
	for i := range n {
		label := i % 2
		a, b := 1+0.2*rng.Float64(), 0.2*rng.Float64()
		if label == 1 {
			a, b = b, a
		}
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		if bias {
			X.Set(i, 2, 1)
		}
		y[i] = label
	}
	return X, y
}

func TestPerceptron_MistakeUpdate(t *testing.T) {
	p := NewPerceptron(3, 3)
	X := mat.NewDense(1, 3, []float64{1, 2, 1})

	// All scores tie at zero, so class 0 is predicted.
	p.TrainEpoch(X, []int{1}, 0)

	assert.Equal(t, []float64{-1, -2, -1}, p.W.RawRowView(0))
	assert.Equal(t, []float64{1, 2, 1}, p.W.RawRowView(1))
	assert.Equal(t, []float64{0, 0, 0}, p.W.RawRowView(2))
}

func TestPerceptron_CorrectPredictionLeavesWeights(t *testing.T) {
	p := NewPerceptron(2, 2)
	X := mat.NewDense(1, 2, []float64{3, 4})
	p.TrainEpoch(X, []int{0}, 0)
	assert.Equal(t, 0.0, mat.Sum(p.W))
}

func TestPerceptron_Separable(t *testing.T) {
	rng := newRNG()
	X, y := twoBlobs(40, true, rng)
	p := NewPerceptron(2, 3)
	for range 10 {
		p.TrainEpoch(X, y, 0)
	}
	assert.Equal(t, 1.0, p.Evaluate(X, y))
}

func TestLogisticRegression_SingleStep(t *testing.T) {
	l := NewLogisticRegression(2, 2)
	X := mat.NewDense(1, 2, []float64{1, 2})
	l.TrainEpoch(X, []int{0}, 0.1)

	// Uniform probabilities: W[0] += 0.1*0.5*x, W[1] -= 0.1*0.5*x.
	assert.InDeltaSlice(t, []float64{0.05, 0.1}, l.W.RawRowView(0), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.05, -0.1}, l.W.RawRowView(1), 1e-12)
}

func TestLogisticRegression_HonoursLearningRate(t *testing.T) {
	X := mat.NewDense(1, 1, []float64{1})

	l := NewLogisticRegression(2, 1)
	l.TrainEpoch(X, []int{1}, DefaultLearningRate)
	assert.InDelta(t, DefaultLearningRate*0.5, l.W.At(1, 0), 1e-12)

	frozen := NewLogisticRegression(2, 1)
	frozen.TrainEpoch(X, []int{1}, 0)
	assert.Zero(t, frozen.W.At(0, 0))
	assert.Zero(t, frozen.W.At(1, 0))
}

func TestLogisticRegression_Learns(t *testing.T) {
	rng := newRNG()
	X, y := twoBlobs(40, true, rng)
	l := NewLogisticRegression(2, 3)
	for range 20 {
		l.TrainEpoch(X, y, 0.1)
	}
	assert.Equal(t, 1.0, l.Evaluate(X, y))
}

func TestLinearModel_LabelMismatchPanics(t *testing.T) {
	l := NewLogisticRegression(2, 2)
	assert.Panics(t, func() {
		l.TrainEpoch(mat.NewDense(2, 2, nil), []int{0}, 0.1)
	})
}

func TestMLP_Shapes(t *testing.T) {
	m := NewMLP(10, 784, 200, 2, newRNG())
	require.Equal(t, 3, m.NumLayers())

	r, c := m.Weights(0).Dims()
	assert.Equal(t, []int{200, 784}, []int{r, c})
	r, c = m.Weights(1).Dims()
	assert.Equal(t, []int{200, 200}, []int{r, c})
	r, c = m.Weights(2).Dims()
	assert.Equal(t, []int{10, 200}, []int{r, c})
	assert.Equal(t, 0.0, mat.Sum(m.Biases(0)))

	// N(0.1, 0.1) initialisation.
	mean := mat.Sum(m.Weights(0)) / float64(200*784)
	assert.InDelta(t, 0.1, mean, 0.01)
}

func TestMLP_ForwardIsDistribution(t *testing.T) {
	m := NewMLP(4, 3, 5, 1, newRNG())
	_, as := m.Forward(mat.NewVecDense(3, []float64{0.3, -1, 2}))
	probs := as[len(as)-1].RawVector().Data

	assert.InDelta(t, 1.0, floats.Sum(probs), 1e-12)
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
	}
	for _, h := range as[0].RawVector().Data {
		assert.GreaterOrEqual(t, h, 0.0)
	}
}

func TestMLP_GradientsMatchFiniteDifferences(t *testing.T) {
	rng := newRNG()
	m := NewMLP(3, 4, 5, 2, rng)
	// Spread the weights so that some hidden units are inactive.
	for l := range m.NumLayers() {
		data := m.Weights(l).RawMatrix().Data
		for i := range data {
			data[i] = rng.NormFloat64() * 0.5
		}
		bias := m.Biases(l).RawVector().Data
		for i := range bias {
			bias[i] = rng.NormFloat64() * 0.1
		}
	}
	x := mat.NewVecDense(4, []float64{0.5, -0.2, 1.0, 0.3})
	const gold = 2

	loss := func() float64 {
		_, as := m.Forward(x)
		return -math.Log(as[len(as)-1].AtVec(gold))
	}

	gradW, gradB := m.Gradients(x, gold)
	const eps = 1e-6
	for l := range m.NumLayers() {
		w := m.Weights(l).RawMatrix().Data
		gw := gradW[l].RawMatrix().Data
		for i := range w {
			orig := w[i]
			w[i] = orig + eps
			plus := loss()
			w[i] = orig - eps
			minus := loss()
			w[i] = orig
			assert.InDelta(t, (plus-minus)/(2*eps), gw[i], 1e-5, "layer %d weight %d", l, i)
		}
		b := m.Biases(l).RawVector().Data
		gb := gradB[l].RawVector().Data
		for i := range b {
			orig := b[i]
			b[i] = orig + eps
			plus := loss()
			b[i] = orig - eps
			minus := loss()
			b[i] = orig
			assert.InDelta(t, (plus-minus)/(2*eps), gb[i], 1e-5, "layer %d bias %d", l, i)
		}
	}
}

func TestMLP_TrainEpochUpdatesInPlace(t *testing.T) {
	m := NewMLP(2, 2, 3, 1, newRNG())
	w := m.Weights(0)
	before := mat.DenseCopyOf(w)

	m.TrainEpoch(mat.NewDense(1, 2, []float64{1, 1}), []int{1}, 0.1)

	assert.Same(t, w, m.Weights(0))
	assert.False(t, mat.Equal(before, w))
}

func TestMLP_Learns(t *testing.T) {
	rng := newRNG()
	X, y := twoBlobs(40, false, rng)
	m := NewMLP(2, 2, 8, 1, rng)
	for range 30 {
		m.TrainEpoch(X, y, 0.05)
	}
	assert.Equal(t, 1.0, m.Evaluate(X, y))
}

func TestNewMLP_InvalidLayers(t *testing.T) {
	assert.Panics(t, func() { NewMLP(2, 2, 2, 0, newRNG()) })
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		want any
		bias bool
	}{
		{PerceptronName, &Perceptron{}, true},
		{LogisticRegressionName, &LogisticRegression{}, true},
		{MLPName, &MLP{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.name, 10, 785, 16, 1, newRNG())
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
			assert.Equal(t, tt.bias, UsesBias(tt.name))
		})
	}

	_, err := New("svm", 10, 785, 16, 1, newRNG())
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestCheckLearningRate(t *testing.T) {
	assert.NoError(t, CheckLearningRate(PerceptronName, 0))
	assert.NoError(t, CheckLearningRate(MLPName, DefaultLearningRate))
	assert.Error(t, CheckLearningRate(LogisticRegressionName, 0))
	assert.Error(t, CheckLearningRate(MLPName, -0.1))
}
