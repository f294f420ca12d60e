package cpu

import (
	"fmt"

	"github.com/born-ml/coursework/internal/tensor"
)

// Embedding gathers rows of weight [V, D] for each id.
// Returns [len(ids), D]. Panics on an out-of-range id.
func (cpu *CPUBackend) Embedding(weight *tensor.RawTensor, ids []int32) *tensor.RawTensor {
	ws := weight.Shape()
	if len(ws) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [V,D], got %v", ws))
	}
	if len(ids) == 0 {
		panic("embedding: no ids")
	}
	vocab, dim := ws[0], ws[1]
	result := tensor.MustRaw(tensor.Shape{len(ids), dim}, cpu.device)
	w, out := weight.AsFloat32(), result.AsFloat32()
	for i, id := range ids {
		if id < 0 || int(id) >= vocab {
			panic(fmt.Sprintf("embedding: id %d out of range [0, %d)", id, vocab))
		}
		copy(out[i*dim:(i+1)*dim], w[int(id)*dim:(int(id)+1)*dim])
	}
	return result
}

// MaskedFill returns a copy of x with value written wherever the
// broadcast mask is non-zero.
func (cpu *CPUBackend) MaskedFill(x, mask *tensor.RawTensor, value float32) *tensor.RawTensor {
	return cpu.binary("masked_fill", x, mask, func(v, m float32) float32 {
		if m != 0 {
			return value
		}
		return v
	})
}
