package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio/npz"
)

// Array names expected inside a classification .npz archive.
const (
	trainImages = "train_images"
	trainLabels = "train_labels"
	valImages   = "val_images"
	valLabels   = "val_labels"
	testImages  = "test_images"
	testLabels  = "test_labels"
)

// IDX file names expected inside a classification directory.
const (
	idxTrainImages = "train-images-idx3-ubyte"
	idxTrainLabels = "train-labels-idx1-ubyte"
	idxTestImages  = "t10k-images-idx3-ubyte"
	idxTestLabels  = "t10k-labels-idx1-ubyte"
)

// DevFraction is the share of the IDX training set held out as the dev split.
const DevFraction = 1.0 / 6

// LoadClassification loads an image classification dataset.
//
// Parameters:
//   - path: an .npz archive with train/val/test image and label arrays,
//     or a directory with the four MNIST-style IDX files
//   - bias: append a constant 1 feature to every example
//
// Images are flattened; integer pixels are scaled to [0, 1].
func LoadClassification(path string, bias bool) (*Classification, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	var data *Classification
	if info.IsDir() {
		data, err = loadIDXDir(path, bias)
	} else {
		data, err = loadNPZ(path, bias)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}
	data.setNumClasses()
	return data, nil
}

func loadNPZ(path string, bias bool) (*Classification, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	load := func(images, labels string) (*Split, error) {
		pixels, integral, err := readNumeric(r, images)
		if err != nil {
			return nil, err
		}
		ys, _, err := readNumeric(r, labels)
		if err != nil {
			return nil, err
		}
		y := make([]int, len(ys))
		for i, v := range ys {
			y[i] = int(v)
		}
		scale := 1.0
		if integral {
			scale = 255
		}
		s, err := newSplit(pixels, y, scale, bias)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", images, err)
		}
		return s, nil
	}

	var c Classification
	if c.Train, err = load(trainImages, trainLabels); err != nil {
		return nil, err
	}
	if c.Dev, err = load(valImages, valLabels); err != nil {
		return nil, err
	}
	if c.Test, err = load(testImages, testLabels); err != nil {
		return nil, err
	}
	return &c, nil
}

// readNumeric reads any supported numeric array as float64 and reports
// whether its dtype was an integer type.
func readNumeric(r *npz.Reader, name string) ([]float64, bool, error) {
	hdr := r.Header(name)
	if hdr == nil {
		return nil, false, fmt.Errorf("array %q not found", name)
	}

	switch dt := hdr.Descr.Type; dt {
	case "|u1", "<u1", "u1":
		var v []uint8
		if err := r.Read(name, &v); err != nil {
			return nil, false, fmt.Errorf("read %s: %w", name, err)
		}
		return convert(v), true, nil
	case "<i8":
		var v []int64
		if err := r.Read(name, &v); err != nil {
			return nil, false, fmt.Errorf("read %s: %w", name, err)
		}
		return convert(v), true, nil
	case "<i4":
		var v []int32
		if err := r.Read(name, &v); err != nil {
			return nil, false, fmt.Errorf("read %s: %w", name, err)
		}
		return convert(v), true, nil
	case "<f4":
		var v []float32
		if err := r.Read(name, &v); err != nil {
			return nil, false, fmt.Errorf("read %s: %w", name, err)
		}
		return convert(v), false, nil
	case "<f8":
		var v []float64
		if err := r.Read(name, &v); err != nil {
			return nil, false, fmt.Errorf("read %s: %w", name, err)
		}
		return v, false, nil
	default:
		return nil, false, fmt.Errorf("array %q: unsupported dtype %q", name, dt)
	}
}

func convert[T uint8 | int32 | int64 | float32](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func loadIDXDir(dir string, bias bool) (*Classification, error) {
	load := func(imageFile, labelFile string) ([]float64, []int, error) {
		images, err := ReadIDXImages(filepath.Join(dir, imageFile))
		if err != nil {
			return nil, nil, err
		}
		labels, err := ReadIDXLabels(filepath.Join(dir, labelFile))
		if err != nil {
			return nil, nil, err
		}
		if len(images) != len(labels) {
			return nil, nil, fmt.Errorf("%s has %d images but %s has %d labels",
				imageFile, len(images), labelFile, len(labels))
		}
		var pixels []float64
		for _, img := range images {
			pixels = append(pixels, convert(img)...)
		}
		y := make([]int, len(labels))
		for i, l := range labels {
			y[i] = int(l)
		}
		return pixels, y, nil
	}

	trainPixels, trainY, err := load(idxTrainImages, idxTrainLabels)
	if err != nil {
		return nil, err
	}
	testPixels, testY, err := load(idxTestImages, idxTestLabels)
	if err != nil {
		return nil, err
	}
	if len(trainY) < 2 {
		return nil, fmt.Errorf("%s: %w", idxTrainImages, ErrEmptyDataset)
	}

	numDev := max(1, int(float64(len(trainY))*DevFraction))
	numTrain := len(trainY) - numDev
	features := len(trainPixels) / len(trainY)

	var c Classification
	if c.Train, err = newSplit(trainPixels[:numTrain*features], trainY[:numTrain], 255, bias); err != nil {
		return nil, err
	}
	if c.Dev, err = newSplit(trainPixels[numTrain*features:], trainY[numTrain:], 255, bias); err != nil {
		return nil, err
	}
	if c.Test, err = newSplit(testPixels, testY, 255, bias); err != nil {
		return nil, err
	}
	return &c, nil
}
