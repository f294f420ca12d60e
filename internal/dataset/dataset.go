// Package dataset loads the classification and transliteration corpora
// used by the commands and turns them into training batches.
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// ErrEmptyDataset is returned when a file or split holds no examples.
var ErrEmptyDataset = errors.New("empty dataset")

// Split is one partition (train, dev or test) of a classification dataset.
type Split struct {
	X          [][]float64 // [num_samples][num_features]
	Y          []int       // [num_samples]
	NumClasses int
}

// Classification holds the three partitions of a classification dataset.
type Classification struct {
	Train, Dev, Test *Split
}

// Len returns the number of examples.
func (s *Split) Len() int {
	return len(s.Y)
}

// NumFeatures returns the width of each example, or 0 for an empty split.
func (s *Split) NumFeatures() int {
	if len(s.X) == 0 {
		return 0
	}
	return len(s.X[0])
}

// Dense copies the features into an n × features gonum matrix.
func (s *Split) Dense() *mat.Dense {
	n, f := s.Len(), s.NumFeatures()
	data := make([]float64, 0, n*f)
	for _, row := range s.X {
		data = append(data, row...)
	}
	return mat.NewDense(n, f, data)
}

// Shuffle permutes the examples in place.
func (s *Split) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(s.Y), func(i, j int) {
		s.X[i], s.X[j] = s.X[j], s.X[i]
		s.Y[i], s.Y[j] = s.Y[j], s.Y[i]
	})
}

// Batch is a float32 mini-batch ready to be turned into tensors.
type Batch struct {
	X        []float32 // [Size * Features], row-major
	Y        []int32   // [Size]
	Size     int
	Features int
}

// Batches splits the examples into batches of at most size rows. When
// shuffle is set the visiting order is a fresh permutation from rng; the
// split itself is not modified.
func (s *Split) Batches(size int, shuffle bool, rng *rand.Rand) []Batch {
	if size <= 0 {
		panic(fmt.Sprintf("dataset: batch size must be positive, got %d", size))
	}
	order := make([]int, s.Len())
	for i := range order {
		order[i] = i
	}
	if shuffle {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	features := s.NumFeatures()
	batches := make([]Batch, 0, (len(order)+size-1)/size)
	for start := 0; start < len(order); start += size {
		end := min(start+size, len(order))
		b := Batch{
			X:        make([]float32, 0, (end-start)*features),
			Y:        make([]int32, 0, end-start),
			Size:     end - start,
			Features: features,
		}
		for _, idx := range order[start:end] {
			for _, v := range s.X[idx] {
				b.X = append(b.X, float32(v))
			}
			b.Y = append(b.Y, int32(s.Y[idx])) //nolint:gosec // labels are small class ids
		}
		batches = append(batches, b)
	}
	return batches
}

// Float32 returns the features of all examples as one row-major slice.
func (s *Split) Float32() []float32 {
	out := make([]float32, 0, s.Len()*s.NumFeatures())
	for _, row := range s.X {
		for _, v := range row {
			out = append(out, float32(v))
		}
	}
	return out
}

// Labels returns Y as int32 class ids.
func (s *Split) Labels() []int32 {
	out := make([]int32, len(s.Y))
	for i, y := range s.Y {
		out[i] = int32(y) //nolint:gosec // labels are small class ids
	}
	return out
}

// newSplit builds a split from flat pixel data, scaling by scale and
// optionally appending a constant bias feature.
func newSplit(pixels []float64, labels []int, scale float64, bias bool) (*Split, error) {
	n := len(labels)
	if n == 0 || len(pixels) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(pixels)%n != 0 {
		return nil, fmt.Errorf("%d values cannot be split into %d examples", len(pixels), n)
	}
	features := len(pixels) / n
	width := features
	if bias {
		width++
	}

	s := &Split{X: make([][]float64, n), Y: labels}
	for i := range n {
		row := make([]float64, width)
		for j, v := range pixels[i*features : (i+1)*features] {
			row[j] = v / scale
		}
		if bias {
			row[features] = 1
		}
		s.X[i] = row
	}
	return s, nil
}

// setNumClasses records max label + 1 over all splits on each split.
func (c *Classification) setNumClasses() {
	classes := 0
	for _, s := range []*Split{c.Train, c.Dev, c.Test} {
		for _, y := range s.Y {
			classes = max(classes, y+1)
		}
	}
	c.Train.NumClasses, c.Dev.NumClasses, c.Test.NumClasses = classes, classes, classes
}
