package seq2seq

import (
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/dataset"
	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/tensor"
)

// Model is the encoder/decoder with a generator projecting decoder
// outputs to target-vocabulary scores. The generator weight is the
// decoder embedding weight.
type Model[B tensor.Backend] struct {
	Encoder   *Encoder[B]
	Decoder   *Decoder[B]
	generator *nn.Linear[B]
	backend   B
}

// ModelConfig holds the model sizes.
type ModelConfig struct {
	SrcVocab     int
	TgtVocab     int
	HiddenSize   int
	Dropout      float32
	UseAttention bool
}

// NewModel creates the model. Id 0 (<pad>) is the padding row of both
// embeddings.
func NewModel[B tensor.Backend](cfg ModelConfig, rng *rand.Rand, backend B) *Model[B] {
	var attn *nn.Attention[B]
	if cfg.UseAttention {
		attn = nn.NewAttention(cfg.HiddenSize, rng, backend)
	}
	pad := int(dataset.PadID)
	enc := NewEncoder(cfg.SrcVocab, cfg.HiddenSize, pad, cfg.Dropout, rng, backend)
	dec := NewDecoder(cfg.TgtVocab, cfg.HiddenSize, pad, attn, cfg.Dropout, rng, backend)
	return &Model[B]{
		Encoder:   enc,
		Decoder:   dec,
		generator: nn.NewTiedLinear(dec.embedding.Weight, true, rng, backend),
		backend:   backend,
	}
}

// Forward runs teacher forcing on a batch and returns target-vocabulary
// scores [batch*steps, tgtVocab], row b*steps+t predicting tgt[b, t+1].
func (m *Model[B]) Forward(batch dataset.PairBatch) *tensor.Tensor[B] {
	encOut, state := m.Encoder.Forward(batch.Src, batch.Size, batch.SrcLen, batch.SrcLengths)
	out, _ := m.Decoder.Forward(batch.Tgt, batch.Size, batch.TgtLen, state, encOut, batch.SrcLengths)
	steps := out.Shape()[1]
	return m.generator.Forward(out.Reshape(batch.Size*steps, m.Decoder.hiddenSize))
}

// Generate scores the next token from a decoder output [batch, hidden].
func (m *Model[B]) Generate(out *tensor.Tensor[B]) *tensor.Tensor[B] {
	return m.generator.Forward(out)
}

// SetTraining switches every dropout layer between training and
// evaluation mode.
func (m *Model[B]) SetTraining(training bool) {
	nn.SetTraining(training, m.Encoder, m.Decoder)
}

// Training reports whether the model is in training mode.
func (m *Model[B]) Training() bool {
	return m.Decoder.Training()
}

// Parameters returns all trainable parameters; the shared
// embedding/generator weight appears once.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	params := append(m.Encoder.Parameters(), m.Decoder.Parameters()...)
	return append(params, m.generator.Parameters()...)
}
