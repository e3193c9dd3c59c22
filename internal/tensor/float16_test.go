package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHalfBits_RoundTrip(t *testing.T) {
	src := []float32{0, 1, -1, 0.5, 65504, -0.099976}
	bits := make([]uint16, len(src))
	back := make([]float32, len(src))

	Float32ToHalfBits(bits, src)
	HalfBitsToFloat32(back, bits)

	for i, v := range src {
		// Half precision keeps ~3 decimal digits.
		assert.InDelta(t, v, back[i], math.Abs(float64(v))*1e-3+1e-6, "index %d", i)
	}
}

func TestHalfBits_ExactValues(t *testing.T) {
	// Powers of two and small integers survive the round trip exactly.
	src := []float32{0, 1, 2, 4, 0.25, -8, 1024}
	bits := make([]uint16, len(src))
	back := make([]float32, len(src))

	Float32ToHalfBits(bits, src)
	HalfBitsToFloat32(back, bits)

	for i, v := range src {
		if back[i] != v {
			t.Errorf("round trip of %f: got %f", v, back[i])
		}
	}
}

func TestHalfBits_LengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on length mismatch")
		}
	}()
	Float32ToHalfBits(make([]uint16, 2), make([]float32, 3))
}

func TestFloat16Tensor(t *testing.T) {
	r := MustNewRaw(Shape{4}, Float16, CPU)
	if r.ByteSize() != 8 {
		t.Errorf("ByteSize: expected 8, got %d", r.ByteSize())
	}

	Float32ToHalfBits(r.AsFloat16Bits(), []float32{1, 2, 3, 4})
	out := make([]float32, 4)
	HalfBitsToFloat32(out, r.AsFloat16Bits())

	for i, v := range []float32{1, 2, 3, 4} {
		if out[i] != v {
			t.Errorf("element %d: expected %f, got %f", i, v, out[i])
		}
	}
}
