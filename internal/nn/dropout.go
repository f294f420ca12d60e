package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/tensor"
)

// Dropout zeroes each element with probability p during training and
// scales the survivors by 1/(1-p) (inverted dropout). In evaluation mode
// it is the identity.
//
// Modules start in training mode; switch with SetTraining.
type Dropout[B tensor.Backend] struct {
	p        float32
	rng      *rand.Rand
	training bool
}

// NewDropout creates a Dropout module. p must be in [0, 1).
func NewDropout[B tensor.Backend](p float32, rng *rand.Rand) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability %v not in [0, 1)", p))
	}
	return &Dropout[B]{p: p, rng: rng, training: true}
}

// SetTraining switches between training and evaluation mode.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Training reports whether the module is in training mode.
func (d *Dropout[B]) Training() bool {
	return d.training
}

// P returns the drop probability.
func (d *Dropout[B]) P() float32 {
	return d.p
}

// Forward multiplies the input by a freshly sampled, rescaled keep mask.
func (d *Dropout[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	if !d.training || d.p == 0 {
		return input
	}
	mask := tensor.Zeros(input.Shape(), input.Backend())
	scale := 1 / (1 - d.p)
	data := mask.Data()
	for i := range data {
		if d.rng.Float32() >= d.p {
			data[i] = scale
		}
	}
	return input.Mul(mask)
}

// Parameters returns an empty slice.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
