// Package linear implements the hand-written classifiers of the first
// assignment: a multi-class perceptron, multinomial logistic regression
// and a multi-layer perceptron with an explicit backward pass.
//
// All models work on float64 gonum matrices with one example per row and
// are trained online, one example at a time.
package linear

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/coursework/internal/nn"
)

// ErrUnknownModel is returned by New for an unsupported model name.
var ErrUnknownModel = errors.New("unknown model")

// Model names accepted by New.
const (
	PerceptronName         = "perceptron"
	LogisticRegressionName = "logistic_regression"
	MLPName                = "mlp"
)

// Model is a classifier trained one epoch at a time.
type Model interface {
	// TrainEpoch visits every row of X once, in order, updating the
	// weights after each example. Perceptron ignores lr.
	TrainEpoch(X mat.Matrix, y []int, lr float64)

	// Predict returns the argmax class for every row of X.
	Predict(X mat.Matrix) []int

	// Evaluate returns the fraction of rows whose prediction equals y.
	Evaluate(X mat.Matrix, y []int) float64
}

// New creates a model by name.
//
// Parameters:
//   - name: "perceptron", "logistic_regression" or "mlp"
//   - classes, features: output and input sizes
//   - hidden, layers: MLP width and depth (ignored by linear models)
//   - rng: source for the MLP weight initialisation
func New(name string, classes, features, hidden, layers int, rng *rand.Rand) (Model, error) {
	switch name {
	case PerceptronName:
		return NewPerceptron(classes, features), nil
	case LogisticRegressionName:
		return NewLogisticRegression(classes, features), nil
	case MLPName:
		return NewMLP(classes, features, hidden, layers, rng), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
}

// CheckLearningRate rejects a non-positive lr for the models that use one.
// The perceptron always steps by 1.
func CheckLearningRate(name string, lr float64) error {
	if name != PerceptronName && lr <= 0 {
		return fmt.Errorf("%s: learning rate must be positive, got %v", name, lr)
	}
	return nil
}

// UsesBias reports whether the named model expects a constant bias
// feature appended to its inputs.
func UsesBias(name string) bool {
	return name != MLPName
}

// linearModel holds the classes × features weight matrix shared by the
// perceptron and logistic regression.
type linearModel struct {
	W *mat.Dense
}

func newLinearModel(classes, features int) linearModel {
	return linearModel{W: mat.NewDense(classes, features, nil)}
}

// Predict returns argmax_c (W x)_c for every row x of X.
func (m *linearModel) Predict(X mat.Matrix) []int {
	var scores mat.Dense
	scores.Mul(X, m.W.T())
	n, _ := scores.Dims()
	out := make([]int, n)
	for i := range out {
		out[i] = floats.MaxIdx(scores.RawRowView(i))
	}
	return out
}

// Evaluate returns the accuracy of Predict against y.
func (m *linearModel) Evaluate(X mat.Matrix, y []int) float64 {
	return nn.Accuracy(m.Predict(X), y)
}

// scores returns W x for a single example.
func (m *linearModel) scores(x mat.Vector) []float64 {
	classes, _ := m.W.Dims()
	s := mat.NewVecDense(classes, nil)
	s.MulVec(m.W, x)
	return s.RawVector().Data
}

// rowData returns the i-th row of X as a contiguous slice.
func rowData(X mat.Matrix, i int) []float64 {
	if d, ok := X.(mat.RawRowViewer); ok {
		return d.RawRowView(i)
	}
	_, c := X.Dims()
	return mat.Row(make([]float64, c), i, X)
}

func checkLabels(X mat.Matrix, y []int) {
	if n, _ := X.Dims(); n != len(y) {
		panic(fmt.Sprintf("linear: %d examples but %d labels", n, len(y)))
	}
}

// softmax writes the numerically stable softmax of z into z.
func softmax(z []float64) {
	floats.AddConst(-floats.Max(z), z)
	for i, v := range z {
		z[i] = expClamp(v)
	}
	floats.Scale(1/floats.Sum(z), z)
}
