package seq2seq

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/tensor"
)

// Decoder is a unidirectional LSTM run one target position at a time,
// optionally followed by attention over the encoder outputs.
type Decoder[B tensor.Backend] struct {
	embedding  *nn.Embedding[B]
	dropout    *nn.Dropout[B]
	cell       *nn.LSTMCell[B]
	attn       *nn.Attention[B]
	hiddenSize int
	vocabSize  int
}

// NewDecoder creates a decoder. attn may be nil.
func NewDecoder[B tensor.Backend](vocabSize, hiddenSize, paddingIdx int, attn *nn.Attention[B], dropout float32, rng *rand.Rand, backend B) *Decoder[B] {
	return &Decoder[B]{
		embedding:  nn.NewEmbedding(vocabSize, hiddenSize, paddingIdx, rng, backend),
		dropout:    nn.NewDropout[B](dropout, rng),
		cell:       nn.NewLSTMCell(hiddenSize, hiddenSize, rng, backend),
		attn:       attn,
		hiddenSize: hiddenSize,
		vocabSize:  vocabSize,
	}
}

// Forward runs teacher forcing over tgt, a row-major [batch, tgtLen] id
// matrix. Every position but the last is fed (all of tgt when tgtLen is 1).
//
// Returns the outputs [batch, steps, hidden] and the final LSTM state.
func (d *Decoder[B]) Forward(
	tgt []int32, batch, tgtLen int,
	state nn.LSTMState[B],
	encoderOutputs *tensor.Tensor[B], srcLengths []int,
) (*tensor.Tensor[B], nn.LSTMState[B]) {
	if len(tgt) != batch*tgtLen {
		panic(fmt.Sprintf("decoder: %d ids for batch %dx%d", len(tgt), batch, tgtLen))
	}
	steps := tgtLen
	if tgtLen > 1 {
		steps = tgtLen - 1
	}

	outputs := make([]*tensor.Tensor[B], steps)
	ids := make([]int32, batch)
	for t := range steps {
		for b := range batch {
			ids[b] = tgt[b*tgtLen+t]
		}
		var out *tensor.Tensor[B]
		out, state = d.Step(ids, state, encoderOutputs, srcLengths)
		outputs[t] = out.Reshape(batch, 1, d.hiddenSize)
	}
	return tensor.Cat(outputs, 1), state
}

// Step feeds one token per batch row and returns the output [batch, hidden]
// and the next state.
func (d *Decoder[B]) Step(
	ids []int32,
	state nn.LSTMState[B],
	encoderOutputs *tensor.Tensor[B], srcLengths []int,
) (*tensor.Tensor[B], nn.LSTMState[B]) {
	x := d.dropout.Forward(d.embedding.Forward(ids))
	state = d.cell.Forward(x, state)
	out := state.H
	if d.attn != nil {
		out = d.attn.Forward(out, encoderOutputs, srcLengths)
	}
	return d.dropout.Forward(out), state
}

// HasAttention reports whether the decoder attends over the encoder.
func (d *Decoder[B]) HasAttention() bool {
	return d.attn != nil
}

// SetTraining switches dropout between training and evaluation mode.
func (d *Decoder[B]) SetTraining(training bool) {
	d.dropout.SetTraining(training)
}

// Training reports whether dropout is active.
func (d *Decoder[B]) Training() bool {
	return d.dropout.Training()
}

// Parameters returns the embedding, LSTM and attention parameters.
func (d *Decoder[B]) Parameters() []*nn.Parameter[B] {
	params := append(d.embedding.Parameters(), d.cell.Parameters()...)
	if d.attn != nil {
		params = append(params, d.attn.Parameters()...)
	}
	return params
}
