// Package seq2seq implements the character-level encoder/decoder with
// optional Luong attention used for transliteration, together with its
// training loop, greedy decoding and error-rate evaluation.
package seq2seq

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/tensor"
)

// Encoder embeds a padded source batch and runs a bidirectional LSTM
// with hidden/2 units per direction, so that outputs and the merged final
// state both have width hidden.
type Encoder[B tensor.Backend] struct {
	embedding  *nn.Embedding[B]
	dropout    *nn.Dropout[B]
	lstm       *nn.LSTM[B]
	hiddenSize int
}

// NewEncoder creates an encoder over a source vocabulary of vocabSize ids.
// hiddenSize must be even.
func NewEncoder[B tensor.Backend](vocabSize, hiddenSize, paddingIdx int, dropout float32, rng *rand.Rand, backend B) *Encoder[B] {
	if hiddenSize%2 != 0 {
		panic(fmt.Sprintf("encoder: hidden size must be even, got %d", hiddenSize))
	}
	return &Encoder[B]{
		embedding:  nn.NewEmbedding(vocabSize, hiddenSize, paddingIdx, rng, backend),
		dropout:    nn.NewDropout[B](dropout, rng),
		lstm:       nn.NewLSTM(hiddenSize, hiddenSize/2, true, rng, backend),
		hiddenSize: hiddenSize,
	}
}

// Forward encodes src, a row-major [batch, srcLen] id matrix whose rows
// have the real lengths given in lengths.
//
// Returns the outputs [batch, srcLen, hidden] (zero past each length) and
// the final state with the forward and backward directions concatenated.
func (e *Encoder[B]) Forward(src []int32, batch, srcLen int, lengths []int) (*tensor.Tensor[B], nn.LSTMState[B]) {
	if len(src) != batch*srcLen {
		panic(fmt.Sprintf("encoder: %d ids for batch %dx%d", len(src), batch, srcLen))
	}
	emb := e.embedding.Forward(src).Reshape(batch, srcLen, e.hiddenSize)
	emb = e.dropout.Forward(emb)

	out, finals := e.lstm.Forward(emb, lengths, nil)
	return e.dropout.Forward(out), reshapeState(finals)
}

// reshapeState merges per-direction states [batch, H/2] into [batch, H].
func reshapeState[B tensor.Backend](states []nn.LSTMState[B]) nn.LSTMState[B] {
	if len(states) == 1 {
		return states[0]
	}
	hs := make([]*tensor.Tensor[B], len(states))
	cs := make([]*tensor.Tensor[B], len(states))
	for i, s := range states {
		hs[i], cs[i] = s.H, s.C
	}
	return nn.LSTMState[B]{H: tensor.Cat(hs, 1), C: tensor.Cat(cs, 1)}
}

// SetTraining switches dropout between training and evaluation mode.
func (e *Encoder[B]) SetTraining(training bool) {
	e.dropout.SetTraining(training)
}

// Training reports whether dropout is active.
func (e *Encoder[B]) Training() bool {
	return e.dropout.Training()
}

// Parameters returns the embedding and LSTM parameters.
func (e *Encoder[B]) Parameters() []*nn.Parameter[B] {
	return append(e.embedding.Parameters(), e.lstm.Parameters()...)
}
