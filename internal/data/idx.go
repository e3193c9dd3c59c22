package data

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/strata-ml/strata/internal/tensor"
)

// IDX magic numbers for the MNIST-style binary format.
const (
	idxImageMagic = 2051
	idxLabelMagic = 2049
)

// ReadIDXImages reads an IDX image file into a (n, 1, rows, cols) tensor
// with pixels normalized to [0, 1].
//
// IDX image layout: uint32 magic (2051), uint32 count, uint32 rows,
// uint32 cols, then count*rows*cols unsigned bytes, all big-endian.
func ReadIDXImages(filename string) (*tensor.RawTensor, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open idx image file")
	}
	defer file.Close()
	return readIDXImages(file)
}

func readIDXImages(r io.Reader) (*tensor.RawTensor, error) {
	var header struct {
		Magic, Count, Rows, Cols uint32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "read idx image header")
	}
	if header.Magic != idxImageMagic {
		return nil, errors.Errorf("bad idx image magic: got %d, want %d", header.Magic, idxImageMagic)
	}

	n, rows, cols := int(header.Count), int(header.Rows), int(header.Cols)
	out, err := tensor.NewRaw(tensor.Shape{n, 1, rows, cols}, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, rows*cols)
	buf := out.AsFloat32()
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, errors.Wrapf(err, "read idx image %d", i)
		}
		plane := buf[i*len(raw) : (i+1)*len(raw)]
		for j, p := range raw {
			plane[j] = float32(p) / 255
		}
	}
	return out, nil
}

// ReadIDXLabels reads an IDX label file.
//
// IDX label layout: uint32 magic (2049), uint32 count, then count
// unsigned bytes, big-endian.
func ReadIDXLabels(filename string) ([]float32, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open idx label file")
	}
	defer file.Close()
	return readIDXLabels(file)
}

func readIDXLabels(r io.Reader) ([]float32, error) {
	var header struct {
		Magic, Count uint32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "read idx label header")
	}
	if header.Magic != idxLabelMagic {
		return nil, errors.Errorf("bad idx label magic: got %d, want %d", header.Magic, idxLabelMagic)
	}

	raw := make([]byte, header.Count)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrap(err, "read idx labels")
	}
	labels := make([]float32, len(raw))
	for i, b := range raw {
		labels[i] = float32(b)
	}
	return labels, nil
}

// OpenIDX loads an image/label file pair as a shuffle-ready iterator.
func OpenIDX(backend tensor.Backend, imageFile, labelFile string) (*MemoryIterator, error) {
	images, err := ReadIDXImages(imageFile)
	if err != nil {
		return nil, err
	}
	labels, err := ReadIDXLabels(labelFile)
	if err != nil {
		return nil, err
	}
	if len(labels) != images.Shape()[0] {
		return nil, errors.Errorf("idx pair mismatch: %d images, %d labels", images.Shape()[0], len(labels))
	}
	return NewMemoryIterator(backend, images, labels)
}
