package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/tensor"
)

// LSTMState is the (hidden, cell) pair of one LSTM direction, each
// [batch, hidden].
type LSTMState[B tensor.Backend] struct {
	H *tensor.Tensor[B]
	C *tensor.Tensor[B]
}

// LSTMCell computes a single LSTM step.
//
// Gates (PyTorch order i, f, g, o):
//
//	[i f g o] = x @ W_ih.T + h @ W_hh.T + b
//	c' = σ(f) * c + σ(i) * tanh(g)
//	h' = σ(o) * tanh(c')
type LSTMCell[B tensor.Backend] struct {
	inputSize  int
	hiddenSize int
	wIH        *Parameter[B] // [4H, in]
	wHH        *Parameter[B] // [4H, H]
	bias       *Parameter[B] // [4H]
}

// NewLSTMCell creates a cell with U(-1/sqrt(H), 1/sqrt(H)) weights.
func NewLSTMCell[B tensor.Backend](inputSize, hiddenSize int, rng *rand.Rand, backend B) *LSTMCell[B] {
	if inputSize <= 0 || hiddenSize <= 0 {
		panic(fmt.Sprintf("lstm: invalid sizes input=%d, hidden=%d", inputSize, hiddenSize))
	}
	g := 4 * hiddenSize
	return &LSTMCell[B]{
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
		wIH:        NewParameter("lstm.weight_ih", FanInUniform(hiddenSize, tensor.Shape{g, inputSize}, rng, backend)),
		wHH:        NewParameter("lstm.weight_hh", FanInUniform(hiddenSize, tensor.Shape{g, hiddenSize}, rng, backend)),
		bias:       NewParameter("lstm.bias", FanInUniform(hiddenSize, tensor.Shape{g}, rng, backend)),
	}
}

// Forward advances the state by one step of input x [batch, in].
func (c *LSTMCell[B]) Forward(x *tensor.Tensor[B], state LSTMState[B]) LSTMState[B] {
	if s := x.Shape(); len(s) != 2 || s[1] != c.inputSize {
		panic(fmt.Sprintf("lstm: expected input [batch, %d], got %v", c.inputSize, s))
	}
	h := c.hiddenSize
	gates := x.MatMul(c.wIH.Tensor().T()).
		Add(state.H.MatMul(c.wHH.Tensor().T())).
		Add(c.bias.Tensor().Reshape(1, 4*h))

	i := gates.Narrow(1, 0, h).Sigmoid()
	f := gates.Narrow(1, h, h).Sigmoid()
	g := gates.Narrow(1, 2*h, h).Tanh()
	o := gates.Narrow(1, 3*h, h).Sigmoid()

	cNext := f.Mul(state.C).Add(i.Mul(g))
	return LSTMState[B]{H: o.Mul(cNext.Tanh()), C: cNext}
}

// ZeroState returns an all-zero state for the given batch size.
func (c *LSTMCell[B]) ZeroState(batch int, backend B) LSTMState[B] {
	shape := tensor.Shape{batch, c.hiddenSize}
	return LSTMState[B]{H: tensor.Zeros(shape, backend), C: tensor.Zeros(shape, backend)}
}

// HiddenSize returns H.
func (c *LSTMCell[B]) HiddenSize() int {
	return c.hiddenSize
}

// Parameters returns [W_ih, W_hh, b].
func (c *LSTMCell[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.wIH, c.wHH, c.bias}
}

// LSTM runs one or two LSTM cells over a batch-first sequence.
//
// Sequences shorter than the padded length are masked: at a padded step
// the state is carried over unchanged and the output is zero. The final
// state of each sequence is therefore its state after its last real
// token, and the backward direction starts at that token.
type LSTM[B tensor.Backend] struct {
	forward  *LSTMCell[B]
	backward *LSTMCell[B]
	backend  B
}

// NewLSTM creates an LSTM layer. With bidirectional set, outputs of the
// two directions are concatenated to 2*hiddenSize features.
func NewLSTM[B tensor.Backend](inputSize, hiddenSize int, bidirectional bool, rng *rand.Rand, backend B) *LSTM[B] {
	l := &LSTM[B]{
		forward: NewLSTMCell(inputSize, hiddenSize, rng, backend),
		backend: backend,
	}
	if bidirectional {
		l.backward = NewLSTMCell(inputSize, hiddenSize, rng, backend)
	}
	return l
}

// Bidirectional reports whether the layer has a backward direction.
func (l *LSTM[B]) Bidirectional() bool {
	return l.backward != nil
}

// Forward runs the layer over x [batch, T, in].
//
// lengths holds the real length of every sequence (nil means all T).
// initial holds one state per direction (nil means zeros).
//
// Returns the outputs [batch, T, dirs*H] and the final state of every
// direction (forward first).
func (l *LSTM[B]) Forward(x *tensor.Tensor[B], lengths []int, initial []LSTMState[B]) (*tensor.Tensor[B], []LSTMState[B]) {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("lstm: expected input [batch, seq, features], got %v", shape))
	}
	batch, steps := shape[0], shape[1]
	if lengths != nil && len(lengths) != batch {
		panic(fmt.Sprintf("lstm: %d lengths for batch of %d", len(lengths), batch))
	}

	cells := []*LSTMCell[B]{l.forward}
	if l.backward != nil {
		cells = append(cells, l.backward)
	}
	if initial != nil && len(initial) != len(cells) {
		panic(fmt.Sprintf("lstm: %d initial states for %d directions", len(initial), len(cells)))
	}

	keep, drop := stepMasks(lengths, batch, steps, l.backend)
	inputs := make([]*tensor.Tensor[B], steps)
	for t := range inputs {
		inputs[t] = x.Narrow(1, t, 1).Reshape(batch, shape[2])
	}

	outputs := make([]*tensor.Tensor[B], len(cells))
	finals := make([]LSTMState[B], len(cells))
	for d, cell := range cells {
		state := cell.ZeroState(batch, l.backend)
		if initial != nil {
			state = initial[d]
		}
		perStep := make([]*tensor.Tensor[B], steps)
		for k := 0; k < steps; k++ {
			t := k
			if d == 1 {
				t = steps - 1 - k
			}
			next := cell.Forward(inputs[t], state)
			out := next.H
			if keep[t] != nil {
				next = LSTMState[B]{
					H: next.H.Mul(keep[t]).Add(state.H.Mul(drop[t])),
					C: next.C.Mul(keep[t]).Add(state.C.Mul(drop[t])),
				}
				out = out.Mul(keep[t])
			}
			state = next
			perStep[t] = out.Reshape(batch, 1, cell.hiddenSize)
		}
		outputs[d] = tensor.Cat(perStep, 1)
		finals[d] = state
	}

	if len(outputs) == 1 {
		return outputs[0], finals
	}
	return tensor.Cat(outputs, 2), finals
}

// Parameters returns the parameters of every direction.
func (l *LSTM[B]) Parameters() []*Parameter[B] {
	params := l.forward.Parameters()
	if l.backward != nil {
		params = append(params, l.backward.Parameters()...)
	}
	return params
}

// stepMasks returns, per time step, a [batch, 1] keep mask (1 where the
// step is inside the sequence) and its complement. Steps where every
// sequence is active get nil masks.
func stepMasks[B tensor.Backend](lengths []int, batch, steps int, backend B) (keep, drop []*tensor.Tensor[B]) {
	keep = make([]*tensor.Tensor[B], steps)
	drop = make([]*tensor.Tensor[B], steps)
	if lengths == nil {
		return keep, drop
	}
	for t := 0; t < steps; t++ {
		full := true
		for _, n := range lengths {
			if t >= n {
				full = false
				break
			}
		}
		if full {
			continue
		}
		k := tensor.Zeros(tensor.Shape{batch, 1}, backend)
		dr := tensor.Zeros(tensor.Shape{batch, 1}, backend)
		for b, n := range lengths {
			if t < n {
				k.Data()[b] = 1
			} else {
				dr.Data()[b] = 1
			}
		}
		keep[t], drop[t] = k, dr
	}
	return keep, drop
}
