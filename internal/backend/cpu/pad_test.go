package cpu

import (
	"testing"

	"github.com/strata-ml/strata/internal/tensor"
)

func TestPad(t *testing.T) {
	backend := New()
	src := newFilled(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})

	out := backend.Pad(src, 1, 1)
	if !out.Shape().Equal(tensor.Shape{1, 1, 4, 4}) {
		t.Fatalf("pad shape: got %v", out.Shape())
	}

	expected := []float32{
		0, 0, 0, 0,
		0, 1, 2, 0,
		0, 3, 4, 0,
		0, 0, 0, 0,
	}
	for i, v := range out.AsFloat32() {
		if v != expected[i] {
			t.Errorf("pad: element %d: expected %f, got %f", i, expected[i], v)
		}
	}
}

func TestPad_Zero(t *testing.T) {
	backend := New()
	src := newFilled(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})

	out := backend.Pad(src, 0, 0)
	if out.SharesBuffer(src) {
		t.Error("zero pad must still copy")
	}
	for i, v := range out.AsFloat32() {
		if v != src.AsFloat32()[i] {
			t.Errorf("zero pad: element %d differs", i)
		}
	}
}

func TestCrop_UndoesPad(t *testing.T) {
	backend := New()
	src := newFilled(t, tensor.Shape{2, 1, 3, 2}, []float32{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	})

	padded := backend.Pad(src, 2, 1)
	dst := tensor.MustNewRaw(src.Shape(), tensor.Float32, tensor.CPU)
	backend.Crop(dst, padded, 2, 1)

	for i, v := range dst.AsFloat32() {
		if v != src.AsFloat32()[i] {
			t.Errorf("crop(pad(x)) != x at element %d", i)
		}
	}
}

func TestCrop_OutOfRange(t *testing.T) {
	backend := New()
	src := tensor.MustNewRaw(tensor.Shape{1, 1, 4, 4}, tensor.Float32, tensor.CPU)
	dst := tensor.MustNewRaw(tensor.Shape{1, 1, 3, 3}, tensor.Float32, tensor.CPU)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for region outside source")
		}
	}()
	backend.Crop(dst, src, 2, 2)
}
