package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/coursework/internal/tensor"
)

// TestMaxPool2D_BasicForward tests basic max pooling correctness.
func TestMaxPool2D_BasicForward(t *testing.T) {
	backend := New()
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i + 1)
	}
	input := raw(t, data, 1, 1, 4, 4)

	output := backend.MaxPool2D(input, 2, 2)
	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	// [[1,2,3,4],      -> [[6,8],
	//  [5,6,7,8],         [14,16]]
	//  [9,10,11,12],
	//  [13,14,15,16]]
	assert.Equal(t, []float32{6, 8, 14, 16}, output.AsFloat32())
}

// TestMaxPool2D_OddSizeFloors checks that trailing rows/cols are dropped.
func TestMaxPool2D_OddSizeFloors(t *testing.T) {
	backend := New()
	input := tensor.MustRaw(tensor.Shape{2, 3, 5, 5}, tensor.CPU)
	output := backend.MaxPool2D(input, 2, 2)
	assert.True(t, output.Shape().Equal(tensor.Shape{2, 3, 2, 2}), "got %v", output.Shape())
}

// TestMaxPool2D_Backward routes gradients to the max positions only.
func TestMaxPool2D_Backward(t *testing.T) {
	backend := New()
	input := raw(t, []float32{
		1, 5, 2, 0,
		3, 4, 9, 1,
		0, 0, 1, 1,
		8, 0, 1, 2,
	}, 1, 1, 4, 4)
	grad := raw(t, []float32{10, 20, 30, 40}, 1, 1, 2, 2)

	dx := backend.MaxPool2DBackward(input, grad, 2, 2)
	assert.Equal(t, []float32{
		0, 10, 0, 0,
		0, 0, 20, 0,
		0, 0, 0, 0,
		30, 0, 0, 40,
	}, dx.AsFloat32())
}
