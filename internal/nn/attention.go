package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/tensor"
)

// Attention implements Luong "general" attention
// (https://arxiv.org/abs/1508.04025).
//
// For a query q [batch, H] and encoder outputs enc [batch, S, H]:
//
//	z      = W_in q
//	scores = enc · z            (padding positions set to -inf)
//	p      = softmax(scores)
//	c      = p · enc
//	out    = tanh(W_out [c; q] + b_out)
type Attention[B tensor.Backend] struct {
	hiddenSize int
	linearIn   *Linear[B] // H -> H, no bias
	linearOut  *Linear[B] // 2H -> H
	backend    B
}

// NewAttention creates an attention layer over hidden size H.
func NewAttention[B tensor.Backend](hiddenSize int, rng *rand.Rand, backend B) *Attention[B] {
	return &Attention[B]{
		hiddenSize: hiddenSize,
		linearIn:   NewLinearNoBias(hiddenSize, hiddenSize, rng, backend),
		linearOut:  NewLinear(2*hiddenSize, hiddenSize, rng, backend),
		backend:    backend,
	}
}

// Forward attends from query [batch, H] over encoderOutputs [batch, S, H].
// srcLengths gives the real source length of each batch row.
//
// Returns the attentional hidden state [batch, H].
func (a *Attention[B]) Forward(query, encoderOutputs *tensor.Tensor[B], srcLengths []int) *tensor.Tensor[B] {
	p := a.Weights(query, encoderOutputs, srcLengths)
	batch, srcLen := p.Shape()[0], p.Shape()[1]
	context := p.Reshape(batch, 1, srcLen).BatchMatMul(encoderOutputs).Reshape(batch, a.hiddenSize)
	return a.linearOut.Forward(tensor.Cat([]*tensor.Tensor[B]{context, query}, 1)).Tanh()
}

// Weights returns the attention distribution p [batch, S]. Padding
// positions get exactly zero weight.
func (a *Attention[B]) Weights(query, encoderOutputs *tensor.Tensor[B], srcLengths []int) *tensor.Tensor[B] {
	es := encoderOutputs.Shape()
	if len(es) != 3 || es[2] != a.hiddenSize {
		panic(fmt.Sprintf("attention: expected encoder outputs [batch, seq, %d], got %v", a.hiddenSize, es))
	}
	batch, srcLen := es[0], es[1]
	if len(srcLengths) != batch {
		panic(fmt.Sprintf("attention: %d lengths for batch of %d", len(srcLengths), batch))
	}

	z := a.linearIn.Forward(query).Reshape(batch, a.hiddenSize, 1)
	scores := encoderOutputs.BatchMatMul(z).Reshape(batch, srcLen)
	scores = scores.MaskedFill(PaddingMask(srcLengths, srcLen, a.backend), float32(math.Inf(-1)))
	return scores.Softmax(-1)
}

// Parameters returns the parameters of both projections.
func (a *Attention[B]) Parameters() []*Parameter[B] {
	return append(a.linearIn.Parameters(), a.linearOut.Parameters()...)
}
