package optim

import (
	"github.com/born-ml/coursework/internal/nn"
	"github.com/born-ml/coursework/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	g = grad + weight_decay * param
//	param = param - lr * g
//
// With momentum (PyTorch convention):
//
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
type SGD[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  map[*nn.Parameter[B]][]float32
	backend     B
}

// SGDConfig contains configuration for the SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate (default: 0.01)
	Momentum    float32 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float32 // L2 penalty (default: 0)
}

// NewSGD creates a new SGD optimizer.
//
// Parameters:
//   - params: Parameters to optimize
//   - config: SGD configuration
//   - backend: Backend the parameters live on
//
// Returns a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter[B]][]float32),
		backend:     backend,
	}
}

// Step performs a single optimization step.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		data := param.Tensor().Data()
		g := decayedGradient(grad.AsFloat32(), data, s.weightDecay)

		if s.momentum != 0 {
			v, ok := s.velocities[param]
			if !ok {
				v = make([]float32, len(data))
				s.velocities[param] = v
			}
			for i := range v {
				v[i] = s.momentum*v[i] + g[i]
			}
			g = v
		}
		for i := range data {
			data[i] -= s.lr * g[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}
