package nn

import (
	"fmt"

	"github.com/born-ml/coursework/internal/tensor"
)

// NLLLoss computes the negative log-likelihood of target classes given
// log-probabilities, averaged over targets that are not IgnoreIndex.
//
//	Loss = -(1/n) Σ_{i: y_i ≠ ignore} logp[i, y_i]
//
// The loss is built from differentiable ops (a constant weight tensor
// holding -1/n at every target position, multiplied into logp and
// summed), so the gradient is -1/n at targets and zero elsewhere.
type NLLLoss[B tensor.Backend] struct {
	IgnoreIndex int
}

// NewNLLLoss creates a loss ignoring targets equal to ignoreIndex
// (NoPadding to keep every target).
func NewNLLLoss[B tensor.Backend](ignoreIndex int) *NLLLoss[B] {
	return &NLLLoss[B]{IgnoreIndex: ignoreIndex}
}

// Forward computes the mean loss of logProbs [N, C] against targets [N].
//
// Returns a scalar tensor. When every target is ignored the loss is zero.
func (l *NLLLoss[B]) Forward(logProbs *tensor.Tensor[B], targets []int32) *tensor.Tensor[B] {
	shape := logProbs.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("nll_loss: log-probabilities must be 2D [N, C], got %v", shape))
	}
	n, classes := shape[0], shape[1]
	if len(targets) != n {
		panic(fmt.Sprintf("nll_loss: %d targets for %d rows", len(targets), n))
	}

	count := 0
	for _, y := range targets {
		if int(y) == l.IgnoreIndex {
			continue
		}
		if y < 0 || int(y) >= classes {
			panic(fmt.Sprintf("nll_loss: target %d out of range [0, %d)", y, classes))
		}
		count++
	}

	weights := tensor.Zeros(shape, logProbs.Backend())
	if count > 0 {
		w := weights.Data()
		scale := -1 / float32(count)
		for i, y := range targets {
			if int(y) != l.IgnoreIndex {
				w[i*classes+int(y)] = scale
			}
		}
	}
	return logProbs.Mul(weights).Sum()
}

// CrossEntropyLoss computes NLLLoss(LogSoftmax(logits)).
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss[Backend](padID)
//	loss := criterion.Forward(logits, targets) // logits: [N, C]
type CrossEntropyLoss[B tensor.Backend] struct {
	nll *NLLLoss[B]
}

// NewCrossEntropyLoss creates a new cross-entropy loss.
func NewCrossEntropyLoss[B tensor.Backend](ignoreIndex int) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{nll: NewNLLLoss[B](ignoreIndex)}
}

// Forward computes the mean cross-entropy of logits [N, C] against targets.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[B], targets []int32) *tensor.Tensor[B] {
	return c.nll.Forward(logits.LogSoftmax(-1), targets)
}
