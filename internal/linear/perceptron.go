package linear

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Perceptron is the multi-class perceptron with zero-initialised weights.
//
// On a mistake ŷ ≠ y the gold row moves towards x and the predicted row
// away from it:
//
//	W[y] += x
//	W[ŷ] -= x
type Perceptron struct {
	linearModel
}

// NewPerceptron creates a perceptron with a classes × features weight matrix.
func NewPerceptron(classes, features int) *Perceptron {
	return &Perceptron{linearModel: newLinearModel(classes, features)}
}

// TrainEpoch applies the mistake-driven update to each row of X. The
// learning rate is fixed at 1.
func (p *Perceptron) TrainEpoch(X mat.Matrix, y []int, _ float64) {
	checkLabels(X, y)
	for i, gold := range y {
		x := rowData(X, i)
		predicted := floats.MaxIdx(p.scores(mat.NewVecDense(len(x), x)))
		if predicted == gold {
			continue
		}
		floats.Add(p.W.RawRowView(gold), x)
		floats.Sub(p.W.RawRowView(predicted), x)
	}
}
