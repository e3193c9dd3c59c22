package tensor

import "github.com/x448/float16"

// Float16 support is conversion-only: half precision tensors are storage,
// all arithmetic happens in float32. The bit-level conversion comes from
// github.com/x448/float16 (IEEE 754 binary16, round-to-nearest-even).

// Float32ToHalfBits converts a float32 slice into half precision bit
// patterns, writing into dst. Panics if the lengths differ.
func Float32ToHalfBits(dst []uint16, src []float32) {
	if len(dst) != len(src) {
		panic("tensor: half conversion length mismatch")
	}
	for i, v := range src {
		dst[i] = float16.Fromfloat32(v).Bits()
	}
}

// HalfBitsToFloat32 expands half precision bit patterns into float32,
// writing into dst. Panics if the lengths differ.
func HalfBitsToFloat32(dst []float32, src []uint16) {
	if len(dst) != len(src) {
		panic("tensor: half conversion length mismatch")
	}
	for i, bits := range src {
		dst[i] = float16.Frombits(bits).Float32()
	}
}
