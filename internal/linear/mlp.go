package linear

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/coursework/internal/nn"
)

// MLP is a feed-forward network with ReLU hidden layers and a softmax
// output, trained by per-example gradient descent on the cross-entropy
// loss with a hand-written backward pass.
//
// Forward, for layers l = 1..L:
//
//	z_l = W_l a_{l-1} + b_l      (a_0 = x)
//	a_l = relu(z_l)               (l < L)
//	a_L = softmax(z_L)
//
// Backward:
//
//	grad_z_L = a_L - one_hot(y)
//	grad_W_l = grad_z_l ⊗ a_{l-1}
//	grad_b_l = grad_z_l
//	grad_z_{l-1} = (W_lᵀ grad_z_l) ⊙ relu'(z_{l-1})
type MLP struct {
	weights []*mat.Dense
	biases  []*mat.VecDense
}

// NewMLP creates an MLP with `layers` hidden layers of width hidden.
// Weights are drawn from N(0.1, 0.1) and biases start at zero.
func NewMLP(classes, features, hidden, layers int, rng *rand.Rand) *MLP {
	if layers < 1 {
		panic(fmt.Sprintf("mlp: need at least one hidden layer, got %d", layers))
	}
	if classes <= 0 || features <= 0 || hidden <= 0 {
		panic(fmt.Sprintf("mlp: invalid sizes classes=%d features=%d hidden=%d", classes, features, hidden))
	}

	dist := distuv.Normal{Mu: 0.1, Sigma: 0.1, Src: rng}
	units := make([]int, 0, layers+2)
	units = append(units, features)
	for range layers {
		units = append(units, hidden)
	}
	units = append(units, classes)

	m := &MLP{}
	for i := 1; i < len(units); i++ {
		data := make([]float64, units[i]*units[i-1])
		for j := range data {
			data[j] = dist.Rand()
		}
		m.weights = append(m.weights, mat.NewDense(units[i], units[i-1], data))
		m.biases = append(m.biases, mat.NewVecDense(units[i], nil))
	}
	return m
}

// NumLayers returns the number of weight matrices (hidden layers + 1).
func (m *MLP) NumLayers() int {
	return len(m.weights)
}

// Weights returns the weight matrix of layer i. The matrix is live.
func (m *MLP) Weights(i int) *mat.Dense {
	return m.weights[i]
}

// Biases returns the bias vector of layer i. The vector is live.
func (m *MLP) Biases(i int) *mat.VecDense {
	return m.biases[i]
}

// Forward returns the pre-activations z_l and activations a_l of every
// layer for a single example. The last activation is a probability vector.
func (m *MLP) Forward(x mat.Vector) (zs, as []*mat.VecDense) {
	h := x
	last := len(m.weights) - 1
	for i, w := range m.weights {
		rows, _ := w.Dims()
		z := mat.NewVecDense(rows, nil)
		z.MulVec(w, h)
		z.AddVec(z, m.biases[i])

		a := mat.VecDenseCopyOf(z)
		if i < last {
			relu(a.RawVector().Data)
		} else {
			softmax(a.RawVector().Data)
		}
		zs = append(zs, z)
		as = append(as, a)
		h = a
	}
	return zs, as
}

// Gradients runs the forward and backward passes for one example and
// returns the loss gradients for every weight matrix and bias vector.
func (m *MLP) Gradients(x mat.Vector, y int) ([]*mat.Dense, []*mat.VecDense) {
	zs, as := m.Forward(x)
	n := len(m.weights)

	gradZ := mat.VecDenseCopyOf(as[n-1])
	gradZ.SetVec(y, gradZ.AtVec(y)-1)

	gradW := make([]*mat.Dense, n)
	gradB := make([]*mat.VecDense, n)
	for i := n - 1; i >= 0; i-- {
		var h mat.Vector = x
		if i > 0 {
			h = as[i-1]
		}
		rows, cols := m.weights[i].Dims()
		gradW[i] = mat.NewDense(rows, cols, nil)
		gradW[i].Outer(1, gradZ, h)
		gradB[i] = mat.VecDenseCopyOf(gradZ)

		if i == 0 {
			break
		}
		gradH := mat.NewVecDense(cols, nil)
		gradH.MulVec(m.weights[i].T(), gradZ)
		reluGrad(gradH.RawVector().Data, zs[i-1].RawVector().Data)
		gradZ = gradH
	}
	return gradW, gradB
}

// TrainEpoch performs one gradient step per row of X.
func (m *MLP) TrainEpoch(X mat.Matrix, y []int, lr float64) {
	checkLabels(X, y)
	for i, gold := range y {
		x := rowData(X, i)
		gradW, gradB := m.Gradients(mat.NewVecDense(len(x), x), gold)
		for l := range m.weights {
			floats.AddScaled(m.weights[l].RawMatrix().Data, -lr, gradW[l].RawMatrix().Data)
			floats.AddScaled(m.biases[l].RawVector().Data, -lr, gradB[l].RawVector().Data)
		}
	}
}

// Predict returns the argmax of the output distribution for every row.
func (m *MLP) Predict(X mat.Matrix) []int {
	n, _ := X.Dims()
	out := make([]int, n)
	for i := range out {
		x := rowData(X, i)
		_, as := m.Forward(mat.NewVecDense(len(x), x))
		out[i] = floats.MaxIdx(as[len(as)-1].RawVector().Data)
	}
	return out
}

// Evaluate returns the accuracy of Predict against y.
func (m *MLP) Evaluate(X mat.Matrix, y []int) float64 {
	return nn.Accuracy(m.Predict(X), y)
}

func relu(z []float64) {
	for i, v := range z {
		if v < 0 {
			z[i] = 0
		}
	}
}

// reluGrad zeroes grad wherever the pre-activation was not positive.
func reluGrad(grad, z []float64) {
	for i, v := range z {
		if v <= 0 {
			grad[i] = 0
		}
	}
}
