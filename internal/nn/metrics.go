package nn

import (
	"fmt"

	"github.com/born-ml/coursework/internal/tensor"
)

// Accuracy returns the fraction of predictions equal to the gold labels.
func Accuracy(predicted, gold []int) float64 {
	if len(predicted) != len(gold) {
		panic(fmt.Sprintf("accuracy: %d predictions for %d labels", len(predicted), len(gold)))
	}
	if len(gold) == 0 {
		return 0
	}
	correct := 0
	for i, p := range predicted {
		if p == gold[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(gold))
}

// SequenceMask returns a [batch, maxLen] tensor holding 1 at positions
// t < lengths[b] and 0 elsewhere.
func SequenceMask[B tensor.Backend](lengths []int, maxLen int, backend B) *tensor.Tensor[B] {
	return lengthMask(lengths, maxLen, backend, true)
}

// PaddingMask is the complement of SequenceMask: 1 at padding positions.
func PaddingMask[B tensor.Backend](lengths []int, maxLen int, backend B) *tensor.Tensor[B] {
	return lengthMask(lengths, maxLen, backend, false)
}

func lengthMask[B tensor.Backend](lengths []int, maxLen int, backend B, valid bool) *tensor.Tensor[B] {
	m := tensor.Zeros(tensor.Shape{len(lengths), maxLen}, backend)
	data := m.Data()
	for b, n := range lengths {
		for t := 0; t < maxLen; t++ {
			if (t < n) == valid {
				data[b*maxLen+t] = 1
			}
		}
	}
	return m
}
