// Package report records per-epoch training metrics and renders them as
// plots with gonum/plot.
package report

import (
	"encoding/json"
	"sort"
)

// Metric names used by the training loops.
const (
	TrainLoss  = "train_loss"
	ValidAcc   = "valid_acc"
	TestAcc    = "test_acc"
	ValidError = "valid_error"
	TestError  = "test_error"
)

// Epoch holds the metrics measured at the end of one epoch.
type Epoch struct {
	Epoch   int                `json:"epoch"`
	Metrics map[string]float64 `json:"metrics"`
}

// EpochReport receives each epoch's metrics as soon as they are known.
type EpochReport func(Epoch)

// Tee returns an EpochReport that forwards to every non-nil report.
func Tee(reports ...EpochReport) EpochReport {
	return func(e Epoch) {
		for _, r := range reports {
			if r != nil {
				r(e)
			}
		}
	}
}

// History is the ordered list of epoch reports of a run. The zero value
// is ready to use; it is not safe for concurrent use.
type History struct {
	Epochs []Epoch `json:"epochs"`
}

// Add appends e. It has the EpochReport signature, so h.Add can be
// passed to a training loop.
func (h *History) Add(e Epoch) {
	h.Epochs = append(h.Epochs, e)
}

// Len returns the number of recorded epochs.
func (h *History) Len() int {
	return len(h.Epochs)
}

// Last returns the most recent epoch and false when the history is empty.
func (h *History) Last() (Epoch, bool) {
	if len(h.Epochs) == 0 {
		return Epoch{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Names returns the sorted set of metric names seen so far.
func (h *History) Names() []string {
	seen := make(map[string]struct{})
	for _, e := range h.Epochs {
		for name := range e.Metrics {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Series returns the curve of one metric labelled label. Epochs that did
// not report the metric are skipped.
func (h *History) Series(metric, label string) Series {
	s := Series{Name: label}
	for _, e := range h.Epochs {
		if v, ok := e.Metrics[metric]; ok {
			s.X = append(s.X, float64(e.Epoch))
			s.Y = append(s.Y, v)
		}
	}
	return s
}

// Clone returns a deep copy of h.
func (h *History) Clone() *History {
	c := &History{Epochs: make([]Epoch, len(h.Epochs))}
	for i, e := range h.Epochs {
		m := make(map[string]float64, len(e.Metrics))
		for k, v := range e.Metrics {
			m[k] = v
		}
		c.Epochs[i] = Epoch{Epoch: e.Epoch, Metrics: m}
	}
	return c
}

// MarshalJSON encodes the history as {"epochs": [...]}.
func (h *History) MarshalJSON() ([]byte, error) {
	type plain History
	if h.Epochs == nil {
		return json.Marshal(plain{Epochs: []Epoch{}})
	}
	return json.Marshal((*plain)(h))
}
