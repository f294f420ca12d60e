// Package cnn implements the convolutional image classifier of the second
// assignment and its training loop.
package cnn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/tensor"
)

// Input geometry.
const (
	ImageSize = 28
	Channels  = 1
)

// Conv1Channels is the number of feature maps produced by the first
// convolution.
const Conv1Channels = 8

// Model is a two-block convolutional network.
//
// Architecture:
//
//	Input: [batch, 784] viewed as [batch, 1, 28, 28]
//	Conv1: 1 → 8 channels, 5x5 kernel, padding 2 -> [batch, 8, 28, 28]
//	MaxPool: 2x2 -> [batch, 8, 14, 14]
//	ReLU
//	Conv2: 8 → 16 channels, 3x3 kernel -> [batch, 16, 12, 12]
//	MaxPool: 2x2 -> [batch, 16, 6, 6]
//	ReLU
//	Flatten -> [batch, 576]
//	FC1: 576 → 600, ReLU, Dropout
//	FC2: 600 → 120, ReLU
//	FC3: 120 → classes
//	LogSoftmax
type Model[B tensor.Backend] struct {
	conv1   *nn.Conv2D[B]
	pool1   *nn.MaxPool2D[B]
	conv2   *nn.Conv2D[B]
	pool2   *nn.MaxPool2D[B]
	relu    *nn.ReLU[B]
	flatten *nn.Flatten[B]
	fc1     *nn.Linear[B]
	dropout *nn.Dropout[B]
	fc2     *nn.Linear[B]
	fc3     *nn.Linear[B]
	logp    *nn.LogSoftmax[B]
	classes int
}

// NewModel creates the network. dropout is the drop probability applied
// after the first fully connected layer in training mode.
func NewModel[B tensor.Backend](classes int, dropout float32, rng *rand.Rand, backend B) *Model[B] {
	conv1 := nn.NewConv2D(Channels, Conv1Channels, 5, 1, 2, rng, backend)
	conv2 := nn.NewConv2D(Conv1Channels, 16, 3, 1, 0, rng, backend)

	h, w := conv1.OutputSize(ImageSize, ImageSize)
	h, w = conv2.OutputSize(h/2, w/2)
	flat := 16 * (h / 2) * (w / 2) // 576

	return &Model[B]{
		conv1:   conv1,
		pool1:   nn.NewMaxPool2D(2, 2, backend),
		conv2:   conv2,
		pool2:   nn.NewMaxPool2D(2, 2, backend),
		relu:    nn.NewReLU[B](),
		flatten: nn.NewFlatten[B](),
		fc1:     nn.NewLinear(flat, 600, rng, backend),
		dropout: nn.NewDropout[B](dropout, rng),
		fc2:     nn.NewLinear(600, 120, rng, backend),
		fc3:     nn.NewLinear(120, classes, rng, backend),
		logp:    nn.NewLogSoftmax[B](),
		classes: classes,
	}
}

// Forward returns log-probabilities [batch, classes] for images given as
// [batch, 784] or [batch, 1, 28, 28].
func (m *Model[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	x := m.conv1.Forward(toImages(input))
	return m.head(x)
}

// FeatureMaps returns the conv1 activations [batch, 8, 28, 28].
func (m *Model[B]) FeatureMaps(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return m.conv1.Forward(toImages(input))
}

func (m *Model[B]) head(conv1 *tensor.Tensor[B]) *tensor.Tensor[B] {
	x := m.relu.Forward(m.pool1.Forward(conv1))
	x = m.relu.Forward(m.pool2.Forward(m.conv2.Forward(x)))
	x = m.flatten.Forward(x)

	x = m.dropout.Forward(m.relu.Forward(m.fc1.Forward(x)))
	x = m.relu.Forward(m.fc2.Forward(x))
	return m.logp.Forward(m.fc3.Forward(x))
}

// SetTraining switches dropout between training and evaluation mode.
func (m *Model[B]) SetTraining(training bool) {
	m.dropout.SetTraining(training)
}

// Training reports whether dropout is active.
func (m *Model[B]) Training() bool {
	return m.dropout.Training()
}

// NumClasses returns the output width.
func (m *Model[B]) NumClasses() int {
	return m.classes
}

// Parameters returns all trainable parameters.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, 10)
	params = append(params, m.conv1.Parameters()...)
	params = append(params, m.conv2.Parameters()...)
	params = append(params, m.fc1.Parameters()...)
	params = append(params, m.fc2.Parameters()...)
	params = append(params, m.fc3.Parameters()...)
	return params
}

// String returns a string representation of the model architecture.
func (m *Model[B]) String() string {
	return fmt.Sprintf(`CNN(
  %s
  %s
  ReLU()
  %s
  %s
  ReLU()
  Linear(in=%d, out=600)
  ReLU()
  Dropout(p=%v)
  Linear(in=600, out=120)
  ReLU()
  Linear(in=120, out=%d)
  LogSoftmax(dim=-1)
)`,
		m.conv1, m.pool1, m.conv2, m.pool2,
		m.fc1.InFeatures(), m.dropout.P(), m.classes,
	)
}

func toImages[B tensor.Backend](input *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := input.Shape()
	switch {
	case len(shape) == 2 && shape[1] == Channels*ImageSize*ImageSize:
		return input.Reshape(-1, Channels, ImageSize, ImageSize)
	case len(shape) == 4:
		return input
	default:
		panic(fmt.Sprintf("cnn: expected [batch, %d] or [batch, 1, %d, %d] input, got %v",
			Channels*ImageSize*ImageSize, ImageSize, ImageSize, shape))
	}
}
