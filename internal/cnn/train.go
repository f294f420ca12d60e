package cnn

import (
	"fmt"
	"math/rand/v2"

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

// evalBatch bounds the number of images pushed through the network at
// once during evaluation.
const evalBatch = 500

// Config contains the training hyper-parameters.
type Config struct {
	Epochs       int     // Number of epochs (default: 20)
	BatchSize    int     // Training batch size (default: 8)
	LearningRate float32 // Optimizer learning rate (default: 1e-5)
	L2Decay      float32 // Weight decay (default: 0)
	Dropout      float32 // Drop probability after fc1 (default: 0.3)
	Optimizer    string  // "sgd" or "adam" (default: "adam")
	Seed         uint64  // Seed for initialisation, dropout and shuffling (default: 42)
}

// DefaultConfig returns the default hyper-parameters.
func DefaultConfig() Config {
	return Config{
		Epochs:       20,
		BatchSize:    8,
		LearningRate: 1e-5,
		Dropout:      0.3,
		Optimizer:    "adam",
		Seed:         42,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Epochs <= 0:
		return fmt.Errorf("cnn: epochs must be positive, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("cnn: batch size must be positive, got %d", c.BatchSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("cnn: learning rate must be positive, got %v", c.LearningRate)
	case c.L2Decay < 0:
		return fmt.Errorf("cnn: l2 decay must not be negative, got %v", c.L2Decay)
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("cnn: dropout %v not in [0, 1)", c.Dropout)
	}
	return nil
}

// Name returns "{lr}-{dropout}-{l2}-{optimizer}", used in plot names.
func (c Config) Name() string {
	return fmt.Sprintf("%v-%v-%v-%s", c.LearningRate, c.Dropout, c.L2Decay, c.Optimizer)
}

// Trainer couples a model with its optimizer and loss.
type Trainer[B autodiff.BackwardCapable] struct {
	model     *Model[B]
	optimizer optim.Optimizer
	criterion *nn.NLLLoss[B]
	backend   B
}

// NewTrainer creates a trainer with the optimizer named in cfg.
func NewTrainer[B autodiff.BackwardCapable](model *Model[B], cfg Config, backend B) (*Trainer[B], error) {
	opt, err := optim.New(cfg.Optimizer, model.Parameters(),
		optim.Config{LR: cfg.LearningRate, WeightDecay: cfg.L2Decay}, backend)
	if err != nil {
		return nil, err
	}
	return &Trainer[B]{
		model:     model,
		optimizer: opt,
		criterion: nn.NewNLLLoss[B](nn.NoPadding),
		backend:   backend,
	}, nil
}

// Model returns the trained model.
func (t *Trainer[B]) Model() *Model[B] {
	return t.model
}

// TrainBatch runs one optimisation step on a batch of n flattened images
// and returns the batch loss.
func (t *Trainer[B]) TrainBatch(x []float32, y []int32) float32 {
	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	t.model.SetTraining(true)

	input := t.images(x, len(y))
	loss := t.criterion.Forward(t.model.Forward(input), y)
	grads := autodiff.Backward(loss, t.backend)

	tape.StopRecording()
	tape.Clear()

	t.optimizer.ZeroGrad()
	t.optimizer.Step(grads)
	return loss.Item()
}

// Predict returns the most likely class of each of the n images in x.
func (t *Trainer[B]) Predict(x []float32, n int) []int {
	defer t.evalMode()()
	return t.model.Forward(t.images(x, n)).Argmax()
}

// Evaluate returns the accuracy on split.
func (t *Trainer[B]) Evaluate(split *dataset.Split) float64 {
	predicted := make([]int, 0, split.Len())
	for _, b := range split.Batches(evalBatch, false, nil) {
		predicted = append(predicted, t.Predict(b.X, b.Size)...)
	}
	return nn.Accuracy(predicted, split.Y)
}

// FeatureMaps returns the conv1 activations of a single flattened image,
// one grid per channel.
func (t *Trainer[B]) FeatureMaps(image []float32) []report.Grid {
	defer t.evalMode()()
	maps := t.model.FeatureMaps(t.images(image, 1))
	shape := maps.Shape() // [1, C, H, W]
	c, h, w := shape[1], shape[2], shape[3]
	data := maps.Data()

	grids := make([]report.Grid, c)
	for i := range grids {
		values := make([]float64, h*w)
		for j := range values {
			values[j] = float64(data[i*h*w+j])
		}
		grids[i] = report.Grid{Rows: h, Cols: w, Values: values}
	}
	return grids
}

// evalMode stops recording and disables dropout; the returned function
// restores the previous state.
func (t *Trainer[B]) evalMode() func() {
	tape := t.backend.GetTape()
	wasRecording, wasTraining := tape.IsRecording(), t.model.Training()
	tape.StopRecording()
	t.model.SetTraining(false)
	return func() {
		t.model.SetTraining(wasTraining)
		if wasRecording {
			tape.StartRecording()
		}
	}
}

func (t *Trainer[B]) images(x []float32, n int) *tensor.Tensor[B] {
	input, err := tensor.FromSlice(x, tensor.Shape{n, Channels * ImageSize * ImageSize}, t.backend)
	if err != nil {
		panic(fmt.Sprintf("cnn: %v", err))
	}
	return input
}

// Run is the outcome of Train.
type Run struct {
	Trainer *Trainer[Backend]
	History *report.History
	TestAcc float64
}

// Train builds a model for data and trains it for cfg.Epochs epochs on
// shuffled mini-batches. After each epoch it reports the mean training
// loss over all batches so far and the dev accuracy; the final test
// accuracy is returned in the Run.
func Train(cfg Config, data *dataset.Classification, onEpoch report.EpochReport) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if data.Train.Len() == 0 {
		return nil, dataset.ErrEmptyDataset
	}
	if f := data.Train.NumFeatures(); f != Channels*ImageSize*ImageSize {
		return nil, fmt.Errorf("cnn: expected %d features per image, got %d", Channels*ImageSize*ImageSize, f)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	backend := autodiff.New(cpu.New())
	model := NewModel(data.Train.NumClasses, cfg.Dropout, rng, backend)
	trainer, err := NewTrainer(model, cfg, backend)
	if err != nil {
		return nil, err
	}

	history := &report.History{}
	var lossSum float64
	var steps int
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		for _, b := range data.Train.Batches(cfg.BatchSize, true, rng) {
			lossSum += float64(trainer.TrainBatch(b.X, b.Y))
			steps++
		}
		e := report.Epoch{Epoch: epoch, Metrics: map[string]float64{
			report.TrainLoss: lossSum / float64(steps),
			report.ValidAcc:  trainer.Evaluate(data.Dev),
		}}
		history.Add(e)
		if onEpoch != nil {
			onEpoch(e)
		}
	}

	return &Run{
		Trainer: trainer,
		History: history,
		TestAcc: trainer.Evaluate(data.Test),
	}, nil
}
