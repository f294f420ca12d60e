package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// IDX magic numbers.
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// ReadIDXImages reads an image file in IDX format.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255)
func ReadIDXImages(filename string) ([][]byte, error) {
	r, payload, err := openIDX(filename, idxImagesMagic, 3)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	count, rows, cols := int64(r.dims[0]), int64(r.dims[1]), int64(r.dims[2])
	if count == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyDataset)
	}
	if rows == 0 || cols == 0 || cols > payload/rows || count > payload/(rows*cols) {
		return nil, fmt.Errorf("%s: header claims %d images of %dx%d, file holds %d pixel bytes", filename, count, rows, cols, payload)
	}

	imageSize := int(rows * cols)
	images := make([][]byte, count)
	for i := range images {
		images[i] = make([]byte, imageSize)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, fmt.Errorf("%s: failed to read image %d: %w", filename, i, err)
		}
	}
	return images, nil
}

// ReadIDXLabels reads a label file in IDX format.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes
func ReadIDXLabels(filename string) ([]byte, error) {
	r, payload, err := openIDX(filename, idxLabelsMagic, 1)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	count := int64(r.dims[0])
	if count > payload {
		return nil, fmt.Errorf("%s: header claims %d labels, file holds %d bytes", filename, count, payload)
	}
	labels := make([]byte, count)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("%s: failed to read labels: %w", filename, err)
	}
	return labels, nil
}

// idxReader is an IDX file positioned after its header.
type idxReader struct {
	*bufio.Reader
	file *os.File
	dims []uint32
}

func (r *idxReader) Close() error {
	return r.file.Close()
}

// openIDX checks the magic number, then reads ndims dimension sizes. It
// returns the number of payload bytes left in the file.
func openIDX(filename string, magic uint32, ndims int) (*idxReader, int64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	r := &idxReader{Reader: bufio.NewReader(file), file: file, dims: make([]uint32, ndims)}

	var got uint32
	if err := binary.Read(r, binary.BigEndian, &got); err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("%s: failed to read magic number: %w", filename, err)
	}
	if got != magic {
		file.Close()
		return nil, 0, fmt.Errorf("%s: invalid magic number: got %d, want %d", filename, got, magic)
	}
	if err := binary.Read(r, binary.BigEndian, r.dims); err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("%s: failed to read header: %w", filename, err)
	}
	headerSize := int64(4 * (1 + ndims))
	return r, info.Size() - headerSize, nil
}

// WriteIDXImages writes images of rows × cols pixels in IDX format.
func WriteIDXImages(filename string, images [][]byte, rows, cols int) error {
	header := []uint32{idxImagesMagic, uint32(len(images)), uint32(rows), uint32(cols)} //nolint:gosec // sizes fit in uint32
	return writeIDX(filename, header, images...)
}

// WriteIDXLabels writes labels in IDX format.
func WriteIDXLabels(filename string, labels []byte) error {
	return writeIDX(filename, []uint32{idxLabelsMagic, uint32(len(labels))}, labels) //nolint:gosec // sizes fit in uint32
}

func writeIDX(filename string, header []uint32, payload ...[]byte) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		file.Close()
		return err
	}
	for _, p := range payload {
		if _, err := w.Write(p); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
