package linear

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultLearningRate is the command-line default step size for logistic
// regression and the MLP.
const DefaultLearningRate = 0.001

// LogisticRegression is multinomial logistic regression trained by
// per-example SGD on the cross-entropy loss:
//
//	W += lr * (one_hot(y) - softmax(W x)) xᵀ
type LogisticRegression struct {
	linearModel
}

// NewLogisticRegression creates a zero-initialised model.
func NewLogisticRegression(classes, features int) *LogisticRegression {
	return &LogisticRegression{linearModel: newLinearModel(classes, features)}
}

// TrainEpoch performs one SGD update per row of X.
func (l *LogisticRegression) TrainEpoch(X mat.Matrix, y []int, lr float64) {
	checkLabels(X, y)
	for i, gold := range y {
		x := rowData(X, i)
		probs := l.scores(mat.NewVecDense(len(x), x))
		softmax(probs)
		for c, p := range probs {
			target := 0.0
			if c == gold {
				target = 1
			}
			floats.AddScaled(l.W.RawRowView(c), lr*(target-p), x)
		}
	}
}

// expClamp is math.Exp with the argument floored so that fully saturated
// scores give 0 instead of a denormal.
func expClamp(v float64) float64 {
	if v < -700 {
		return 0
	}
	return math.Exp(v)
}
