package seq2seq

import (
	"fmt"
	"math/rand/v2"

	"github.com/agnivade/levenshtein"

	"github.com/born-ml/coursework/internal/autodiff"
	"github.com/born-ml/coursework/internal/backend/cpu"
	"github.com/born-ml/coursework/internal/dataset"
	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/optim"
	"github.com/born-ml/coursework/internal/report"
	"github.com/born-ml/coursework/internal/tensor"
)

// Backend is the CPU backend with gradient tracking used for training.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Config contains the training hyper-parameters.
type Config struct {
	Epochs       int     // Number of epochs (default: 20)
	BatchSize    int     // Pairs per batch (default: 64)
	HiddenSize   int     // Hidden width, even (default: 128)
	Dropout      float32 // Dropout probability (default: 0.3)
	LearningRate float32 // Adam learning rate (default: 0.003)
	L2Decay      float32 // Weight decay (default: 0)
	UseAttention bool    // Attend over encoder outputs (default: false)
	MaxLen       int     // Maximum decoded length (default: 50)
	Seed         uint64  // Seed for initialisation, dropout and shuffling (default: 42)
}

// DefaultConfig returns the default hyper-parameters.
func DefaultConfig() Config {
	return Config{
		Epochs:       20,
		BatchSize:    64,
		HiddenSize:   128,
		Dropout:      0.3,
		LearningRate: 0.003,
		MaxLen:       50,
		Seed:         42,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Epochs <= 0:
		return fmt.Errorf("seq2seq: epochs must be positive, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("seq2seq: batch size must be positive, got %d", c.BatchSize)
	case c.HiddenSize <= 0 || c.HiddenSize%2 != 0:
		return fmt.Errorf("seq2seq: hidden size must be positive and even, got %d", c.HiddenSize)
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("seq2seq: dropout %v not in [0, 1)", c.Dropout)
	case c.LearningRate <= 0:
		return fmt.Errorf("seq2seq: learning rate must be positive, got %v", c.LearningRate)
	case c.MaxLen <= 0:
		return fmt.Errorf("seq2seq: max length must be positive, got %d", c.MaxLen)
	}
	return nil
}

// Trainer couples a model with its vocabularies, optimizer and loss.
type Trainer[B autodiff.BackwardCapable] struct {
	model     *Model[B]
	src, tgt  *dataset.Vocab
	optimizer optim.Optimizer
	criterion *nn.CrossEntropyLoss[B]
	backend   B
}

// NewTrainer creates a trainer using Adam.
func NewTrainer[B autodiff.BackwardCapable](model *Model[B], src, tgt *dataset.Vocab, cfg Config, backend B) *Trainer[B] {
	return &Trainer[B]{
		model: model,
		src:   src,
		tgt:   tgt,
		optimizer: optim.NewAdam(model.Parameters(),
			optim.AdamConfig{LR: cfg.LearningRate, WeightDecay: cfg.L2Decay}, backend),
		criterion: nn.NewCrossEntropyLoss[B](int(dataset.PadID)),
		backend:   backend,
	}
}

// Model returns the trained model.
func (t *Trainer[B]) Model() *Model[B] {
	return t.model
}

// TrainBatch runs one optimisation step and returns the mean
// cross-entropy over the non-padding target positions.
func (t *Trainer[B]) TrainBatch(batch dataset.PairBatch) float32 {
	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	t.model.SetTraining(true)

	logits := t.model.Forward(batch)
	loss := t.criterion.Forward(logits, shiftedTargets(batch))
	grads := autodiff.Backward(loss, t.backend)

	tape.StopRecording()
	tape.Clear()

	t.optimizer.ZeroGrad()
	t.optimizer.Step(grads)
	return loss.Item()
}

// shiftedTargets returns tgt[:, 1:] flattened row-major, the gold next
// token for every decoder step.
func shiftedTargets(batch dataset.PairBatch) []int32 {
	if batch.TgtLen <= 1 {
		return append([]int32(nil), batch.Tgt...)
	}
	steps := batch.TgtLen - 1
	out := make([]int32, 0, batch.Size*steps)
	for b := range batch.Size {
		row := batch.Tgt[b*batch.TgtLen : (b+1)*batch.TgtLen]
		out = append(out, row[1:]...)
	}
	return out
}

// Translate greedily decodes every pair of batch, starting from <sos> and
// stopping at <eos> or after maxLen tokens.
func (t *Trainer[B]) Translate(batch dataset.PairBatch, maxLen int) []string {
	tape := t.backend.GetTape()
	wasRecording, wasTraining := tape.IsRecording(), t.model.Training()
	tape.StopRecording()
	t.model.SetTraining(false)
	defer func() {
		t.model.SetTraining(wasTraining)
		if wasRecording {
			tape.StartRecording()
		}
	}()

	m := t.model
	encOut, state := m.Encoder.Forward(batch.Src, batch.Size, batch.SrcLen, batch.SrcLengths)

	ids := make([]int32, batch.Size)
	for i := range ids {
		ids[i] = dataset.SOSID
	}
	decoded := make([][]int32, batch.Size)
	done := make([]bool, batch.Size)
	remaining := batch.Size

	for step := 0; step < maxLen && remaining > 0; step++ {
		var out *tensor.Tensor[B]
		out, state = m.Decoder.Step(ids, state, encOut, batch.SrcLengths)
		for b, next := range m.Generate(out).Argmax() {
			ids[b] = int32(next) //nolint:gosec // vocabulary ids fit in int32
			if done[b] {
				continue
			}
			if ids[b] == dataset.EOSID {
				done[b] = true
				remaining--
				continue
			}
			decoded[b] = append(decoded[b], ids[b])
		}
	}

	out := make([]string, batch.Size)
	for b, seq := range decoded {
		out[b] = t.tgt.Decode(seq)
	}
	return out
}

// ErrorRate returns the mean character error rate of greedy decoding on
// pairs: Levenshtein distance to the gold target over its length.
func (t *Trainer[B]) ErrorRate(pairs []dataset.Pair, batchSize, maxLen int) float64 {
	if len(pairs) == 0 {
		return 0
	}
	var total float64
	for _, batch := range dataset.PairBatches(pairs, t.src, t.tgt, batchSize, false, nil) {
		for i, hyp := range t.Translate(batch, maxLen) {
			total += CharErrorRate(hyp, batch.Pairs[i].Target)
		}
	}
	return total / float64(len(pairs))
}

// CharErrorRate is the edit distance between hyp and gold divided by the
// number of runes in gold. An empty gold gives 0 for an empty hypothesis
// and 1 otherwise.
func CharErrorRate(hyp, gold string) float64 {
	n := len([]rune(gold))
	if n == 0 {
		if hyp == "" {
			return 0
		}
		return 1
	}
	return float64(levenshtein.ComputeDistance(hyp, gold)) / float64(n)
}

// Run is the outcome of Train.
type Run struct {
	Trainer   *Trainer[Backend]
	History   *report.History
	TestError float64
}

// Train builds vocabularies from the training pairs with splitter, then
// trains for cfg.Epochs epochs. After each epoch it reports the mean
// training loss of the epoch and the dev error rate; the final test
// error rate is returned in the Run.
func Train(cfg Config, corpus *dataset.Corpus, splitter dataset.Splitter, onEpoch report.EpochReport) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(corpus.Train) == 0 {
		return nil, dataset.ErrEmptyDataset
	}

	src := dataset.BuildVocab(dataset.SourceTexts(corpus.Train), splitter)
	tgt := dataset.BuildVocab(dataset.TargetTexts(corpus.Train), splitter)

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	backend := autodiff.New(cpu.New())
	model := NewModel(ModelConfig{
		SrcVocab:     src.Size(),
		TgtVocab:     tgt.Size(),
		HiddenSize:   cfg.HiddenSize,
		Dropout:      cfg.Dropout,
		UseAttention: cfg.UseAttention,
	}, rng, backend)
	trainer := NewTrainer(model, src, tgt, cfg, backend)

	history := &report.History{}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		batches := dataset.PairBatches(corpus.Train, src, tgt, cfg.BatchSize, true, rng)
		var lossSum float64
		for _, b := range batches {
			lossSum += float64(trainer.TrainBatch(b))
		}
		e := report.Epoch{Epoch: epoch, Metrics: map[string]float64{
			report.TrainLoss:  lossSum / float64(len(batches)),
			report.ValidError: trainer.ErrorRate(corpus.Dev, cfg.BatchSize, cfg.MaxLen),
		}}
		history.Add(e)
		if onEpoch != nil {
			onEpoch(e)
		}
	}

	return &Run{
		Trainer:   trainer,
		History:   history,
		TestError: trainer.ErrorRate(corpus.Test, cfg.BatchSize, cfg.MaxLen),
	}, nil
}
