package dataset

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sbinet/npyio/npz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNPZ(t *testing.T, path string, arrays map[string]any) {
	t.Helper()
	w, err := npz.Create(path)
	require.NoError(t, err)
	keys := make([]string, 0, len(arrays))
	for k := range arrays {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		require.NoError(t, w.Write(k, arrays[k]))
	}
	require.NoError(t, w.Close())
}

func TestLoadClassification_NPZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.npz")
	writeNPZ(t, path, map[string]any{
		trainImages: []uint8{0, 255, 51, 102, 255, 0, 0, 0, 0, 0, 255, 255},
		trainLabels: []int64{0, 2, 1},
		valImages:   []uint8{255, 255, 255, 255},
		valLabels:   []int64{1},
		testImages:  []float64{0.5, 0.25, 0, 1},
		testLabels:  []int32{3},
	})

	data, err := LoadClassification(path, true)
	require.NoError(t, err)

	require.Equal(t, 3, data.Train.Len())
	assert.Equal(t, 5, data.Train.NumFeatures())
	assert.InDeltaSlice(t, []float64{0, 1, 0.2, 0.4, 1}, data.Train.X[0], 1e-12)
	assert.Equal(t, []int{0, 2, 1}, data.Train.Y)
	assert.Equal(t, []int{1}, data.Dev.Y)

	// Float images are kept as they are.
	assert.InDeltaSlice(t, []float64{0.5, 0.25, 0, 1, 1}, data.Test.X[0], 1e-12)
	assert.Equal(t, 4, data.Train.NumClasses)
	assert.Equal(t, 4, data.Test.NumClasses)
}

func TestLoadClassification_NPZMissingArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.npz")
	writeNPZ(t, path, map[string]any{
		trainImages: []uint8{1, 2},
		trainLabels: []int64{0},
	})
	_, err := LoadClassification(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), valImages)
}

func TestLoadClassification_IDXDir(t *testing.T) {
	dir := t.TempDir()
	train := make([][]byte, 6)
	trainLabels := make([]byte, 6)
	for i := range train {
		train[i] = []byte{byte(i), 0, 255, 0}
		trainLabels[i] = byte(i % 3)
	}
	require.NoError(t, WriteIDXImages(filepath.Join(dir, idxTrainImages), train, 2, 2))
	require.NoError(t, WriteIDXLabels(filepath.Join(dir, idxTrainLabels), trainLabels))
	require.NoError(t, WriteIDXImages(filepath.Join(dir, idxTestImages), [][]byte{{0, 0, 0, 255}}, 2, 2))
	require.NoError(t, WriteIDXLabels(filepath.Join(dir, idxTestLabels), []byte{1}))

	data, err := LoadClassification(dir, false)
	require.NoError(t, err)

	assert.Equal(t, 5, data.Train.Len())
	assert.Equal(t, 1, data.Dev.Len())
	assert.Equal(t, []int{2}, data.Dev.Y)
	assert.InDeltaSlice(t, []float64{5.0 / 255, 0, 1, 0}, data.Dev.X[0], 1e-12)
	assert.Equal(t, 1, data.Test.Len())
	assert.Equal(t, 3, data.Train.NumClasses)
}

func TestReadIDX_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels")
	require.NoError(t, WriteIDXLabels(path, []byte{1, 2}))

	_, err := ReadIDXImages(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid magic number")

	labels, err := ReadIDXLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, labels)

	// A file shorter than a full image header still reports the magic.
	short := filepath.Join(t.TempDir(), "short")
	require.NoError(t, os.WriteFile(short, []byte{0, 0, 8, 1, 0, 0}, 0o600))
	_, err = ReadIDXImages(short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid magic number")
	_, err = ReadIDXLabels(short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read header")
}

func TestReadIDX_HeaderLargerThanFile(t *testing.T) {
	dir := t.TempDir()

	images := filepath.Join(dir, "images")
	header := []byte{
		0, 0, 8, 3, // magic 2051
		0xff, 0xff, 0xff, 0xff, // images
		0xff, 0xff, 0xff, 0xff, // rows
		0xff, 0xff, 0xff, 0xff, // cols
		1, 2, 3, 4,
	}
	require.NoError(t, os.WriteFile(images, header, 0o600))
	_, err := ReadIDXImages(images)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header claims")

	labels := filepath.Join(dir, "labels")
	require.NoError(t, os.WriteFile(labels, []byte{0, 0, 8, 1, 0, 0, 1, 0, 7}, 0o600))
	_, err = ReadIDXLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header claims 256 labels")
}

func TestLoadClassification_MissingPath(t *testing.T) {
	_, err := LoadClassification(filepath.Join(t.TempDir(), "nope.npz"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func testSplit() *Split {
	return &Split{
		X:          [][]float64{{0, 1}, {1, 1}, {2, 1}, {3, 1}, {4, 1}},
		Y:          []int{0, 1, 2, 3, 4},
		NumClasses: 5,
	}
}

func TestSplit_Dense(t *testing.T) {
	d := testSplit().Dense()
	r, c := d.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 3.0, d.At(3, 0))
}

func TestSplit_Batches(t *testing.T) {
	s := testSplit()
	batches := s.Batches(2, false, nil)
	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[0].Size)
	assert.Equal(t, 1, batches[2].Size)
	assert.Equal(t, []float32{2, 1, 3, 1}, batches[1].X)
	assert.Equal(t, []int32{2, 3}, batches[1].Y)
	assert.Equal(t, 2, batches[1].Features)
}

func TestSplit_BatchesShuffleKeepsExamples(t *testing.T) {
	s := testSplit()
	rng := rand.New(rand.NewPCG(42, 0))
	var seen []int
	for _, b := range s.Batches(2, true, rng) {
		for i, y := range b.Y {
			// Features stay attached to their label.
			assert.Equal(t, float32(y), b.X[i*b.Features])
			seen = append(seen, int(y))
		}
	}
	sort.Ints(seen)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
	// The split itself is untouched.
	assert.Equal(t, []int{0, 1, 2, 3, 4}, s.Y)
}

func TestSplit_Shuffle(t *testing.T) {
	s := testSplit()
	s.Shuffle(rand.New(rand.NewPCG(1, 2)))
	for i, y := range s.Y {
		assert.Equal(t, float64(y), s.X[i][0])
	}
	assert.Equal(t, []int32{int32(s.Y[0]), int32(s.Y[1]), int32(s.Y[2]), int32(s.Y[3]), int32(s.Y[4])}, s.Labels())
	assert.Len(t, s.Float32(), 10)
}

func TestSplit_BatchesInvalidSize(t *testing.T) {
	assert.Panics(t, func() { testSplit().Batches(0, false, nil) })
}
