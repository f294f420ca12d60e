package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/tensor"
)

// NoPadding disables the padding row of an Embedding and the ignored
// class of an NLLLoss.
const NoPadding = -1

// Embedding is a lookup table that maps discrete indices to dense vectors.
//
// Architecture:
//   - Weight: [NumEmbed, EmbedDim] learnable parameter, drawn from N(0, 1)
//   - Forward: ids [n] -> embeddings [n, EmbedDim]
//   - Backward: gradients scatter-add to weight rows
//
// When PaddingIdx is set, that row starts at zero, always embeds to zero
// and never receives a gradient from the lookup.
//
// Example:
//
//	embed := nn.NewEmbedding(vocab.Size(), 256, padID, rng, backend)
//	emb := embed.Forward(ids).Reshape(batch, seqLen, 256)
type Embedding[B tensor.Backend] struct {
	Weight     *Parameter[B]
	NumEmbed   int
	EmbedDim   int
	PaddingIdx int
}

// NewEmbedding creates a new Embedding layer.
//
// Parameters:
//   - numEmbeddings: Size of the dictionary (vocabulary size)
//   - embeddingDim: Dimension of each embedding vector
//   - paddingIdx: Row kept at zero, or NoPadding
//   - rng: Random source for initialisation
//   - backend: Computation backend
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim, paddingIdx int, rng *rand.Rand, backend B) *Embedding[B] {
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		panic(fmt.Sprintf("embedding: invalid size %dx%d", numEmbeddings, embeddingDim))
	}
	if paddingIdx < NoPadding || paddingIdx >= numEmbeddings {
		panic(fmt.Sprintf("embedding: padding index %d out of range [0, %d)", paddingIdx, numEmbeddings))
	}

	weight := Normal(0, 1, tensor.Shape{numEmbeddings, embeddingDim}, rng, backend)
	if paddingIdx != NoPadding {
		row := weight.Data()[paddingIdx*embeddingDim : (paddingIdx+1)*embeddingDim]
		clear(row)
	}

	return &Embedding[B]{
		Weight:     NewParameter("embedding.weight", weight),
		NumEmbed:   numEmbeddings,
		EmbedDim:   embeddingDim,
		PaddingIdx: paddingIdx,
	}
}

// Forward performs the embedding lookup and returns [len(ids), EmbedDim].
//
// Panics if any id is out of bounds [0, NumEmbed).
func (e *Embedding[B]) Forward(ids []int32) *tensor.Tensor[B] {
	out := tensor.Embedding(e.Weight.Tensor(), ids)
	if e.PaddingIdx == NoPadding {
		return out
	}

	var keep *tensor.Tensor[B]
	for i, id := range ids {
		if int(id) != e.PaddingIdx {
			continue
		}
		if keep == nil {
			keep = tensor.Ones(tensor.Shape{len(ids), 1}, out.Backend())
		}
		keep.Data()[i] = 0
	}
	if keep == nil {
		return out
	}
	// Multiplying by the constant mask also stops the padding row's gradient.
	return out.Mul(keep)
}

// Parameters returns the list of trainable parameters.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}
