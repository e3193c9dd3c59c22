package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strata-ml/strata/internal/tensor"
)

func TestCast_Float32ToFloat64AndBack(t *testing.T) {
	backend := New()
	src := newFilled(t, tensor.Shape{3}, []float32{1.5, -2.25, 0})

	wide := backend.Cast(src, tensor.Float64)
	back := backend.Cast(wide, tensor.Float32)

	for i, v := range back.AsFloat32() {
		if v != src.AsFloat32()[i] {
			t.Errorf("cast round trip: element %d differs", i)
		}
	}
}

func TestCast_HalfRoundTrip(t *testing.T) {
	backend := New()
	src := newFilled(t, tensor.Shape{4}, []float32{0.1, 1, -3.5, 100})

	half := backend.Cast(src, tensor.Float16)
	if half.DType() != tensor.Float16 {
		t.Fatalf("expected float16 dtype, got %v", half.DType())
	}

	back := backend.Cast(half, tensor.Float32)
	for i, v := range src.AsFloat32() {
		assert.InDelta(t, v, back.AsFloat32()[i], 0.001*float64(absf(v))+1e-6, "element %d", i)
	}
}

func TestCast_SameDTypeCopies(t *testing.T) {
	backend := New()
	src := newFilled(t, tensor.Shape{2}, []float32{1, 2})

	out := backend.Cast(src, tensor.Float32)
	if out.SharesBuffer(src) {
		t.Error("same-dtype cast must not alias the source")
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
