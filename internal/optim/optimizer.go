// Package optim implements gradient-based optimizers that update
// nn.Parameter values from the gradient map returned by autodiff.Backward.
package optim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/tensor"
)

// ErrUnknownOptimizer is returned by New for an unsupported name.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Optimizer is the interface for all optimizers.
//
// Usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001}, backend)
//	for epoch := range epochs {
//	    optimizer.ZeroGrad()
//	    loss := criterion.Forward(model.Forward(x), y)
//	    grads := autodiff.Backward(loss, backend)
//	    optimizer.Step(grads)
//	}
type Optimizer interface {
	// Step updates every parameter that has an entry in grads.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradients stored on the parameters.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config holds the settings shared by every optimizer.
type Config struct {
	LR          float32 // Learning rate
	WeightDecay float32 // L2 penalty added to the gradient as WeightDecay * param
}

// New creates an optimizer by name ("sgd" or "adam") with the
// constructor defaults for everything Config does not set.
func New[B tensor.Backend](name string, params []*nn.Parameter[B], cfg Config, backend B) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "sgd":
		return NewSGD(params, SGDConfig{LR: cfg.LR, WeightDecay: cfg.WeightDecay}, backend), nil
	case "adam":
		return NewAdam(params, AdamConfig{LR: cfg.LR, WeightDecay: cfg.WeightDecay}, backend), nil
	default:
		return nil, fmt.Errorf("%w: %q (want sgd or adam)", ErrUnknownOptimizer, name)
	}
}

// getGradient looks up the gradient of a parameter.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}

// decayedGradient returns grad + weightDecay * param, or grad unchanged
// when weightDecay is zero.
func decayedGradient(grad, param []float32, weightDecay float32) []float32 {
	if weightDecay == 0 {
		return grad
	}
	out := make([]float32, len(grad))
	for i, g := range grad {
		out[i] = g + weightDecay*param[i]
	}
	return out
}
