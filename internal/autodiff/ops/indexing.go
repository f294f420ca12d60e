package ops

import "github.com/born-ml/coursework/internal/tensor"

// EmbeddingOp represents a row lookup: output[i] = weight[ids[i]].
//
// Backward scatter-adds each output row gradient into the weight row it
// came from, so repeated ids accumulate.
type EmbeddingOp struct {
	node
	ids []int32
}

// NewEmbeddingOp creates a new EmbeddingOp.
func NewEmbeddingOp(weight, output *tensor.RawTensor, ids []int32) *EmbeddingOp {
	return &EmbeddingOp{node: newNode(output, weight), ids: append([]int32(nil), ids...)}
}

// Backward computes the weight gradient.
func (op *EmbeddingOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	weight := op.inputs[0]
	dim := weight.Shape()[1]
	result := tensor.MustRaw(weight.Shape(), weight.Device())
	dst := result.AsFloat32()
	g := grad.AsFloat32()
	for i, id := range op.ids {
		row := dst[int(id)*dim : int(id+1)*dim]
		src := g[i*dim : (i+1)*dim]
		for j := range row {
			row[j] += src[j]
		}
	}
	return []*tensor.RawTensor{result}
}

// MaskedFillOp represents output = where(mask, value, x).
//
// Filled positions are constants, so their gradient is zero. The mask
// itself receives no gradient.
type MaskedFillOp struct{ node }

// NewMaskedFillOp creates a new MaskedFillOp.
func NewMaskedFillOp(x, mask, output *tensor.RawTensor) *MaskedFillOp {
	return &MaskedFillOp{newNode(output, x, mask)}
}

// Backward zeroes the gradient at masked positions.
func (op *MaskedFillOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := op.inputs[1]
	gx := reduceBroadcast(backend.MaskedFill(grad, mask, 0), op.inputs[0].Shape(), backend)
	return []*tensor.RawTensor{gx, nil}
}
