// Package cpu implements the tensor.Backend contract with pure Go kernels.
// Spatial and dense kernels fan out over batch*channel planes or row ranges
// via internal/parallel.
package cpu

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// CPUBackend implements tensor operations on the host CPU.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// numeric covers the element types the CPU kernels are instantiated for.
type numeric interface {
	~float32 | ~float64
}

// elems returns the typed element slice of t, panicking on dtype mismatch.
func elems[T numeric](t *tensor.RawTensor) []T {
	switch any(T(0)).(type) {
	case float32:
		return any(t.AsFloat32()).([]T)
	case float64:
		return any(t.AsFloat64()).([]T)
	default:
		panic("cpu: unsupported element type")
	}
}

// dispatch runs the float32 or float64 instantiation of a kernel based on
// the dtype of its lead tensor.
func dispatch(op string, t *tensor.RawTensor, f32 func(), f64 func()) {
	switch t.DType() {
	case tensor.Float32:
		f32()
	case tensor.Float64:
		f64()
	default:
		panic(fmt.Sprintf("cpu: %s: unsupported dtype %v", op, t.DType()))
	}
}

// Fill sets every element of x to v.
func (cpu *CPUBackend) Fill(x *tensor.RawTensor, v float64) {
	dispatch("fill", x,
		func() { fillKernel(elems[float32](x), float32(v)) },
		func() { fillKernel(elems[float64](x), v) })
}

func fillKernel[T numeric](data []T, v T) {
	for i := range data {
		data[i] = v
	}
}

// Copy copies src into dst. Shapes and dtypes must match exactly.
func (cpu *CPUBackend) Copy(dst, src *tensor.RawTensor) {
	if !dst.Shape().Equal(src.Shape()) {
		panic(fmt.Sprintf("cpu: copy: shape mismatch %v vs %v", dst.Shape(), src.Shape()))
	}
	if dst.DType() != src.DType() {
		panic(fmt.Sprintf("cpu: copy: dtype mismatch %v vs %v", dst.DType(), src.DType()))
	}
	copy(dst.Data(), src.Data())
}

// Scale multiplies every element of x by a.
func (cpu *CPUBackend) Scale(x *tensor.RawTensor, a float64) {
	dispatch("scale", x,
		func() { scaleKernel(elems[float32](x), float32(a)) },
		func() { scaleKernel(elems[float64](x), a) })
}

func scaleKernel[T numeric](data []T, a T) {
	for i := range data {
		data[i] *= a
	}
}

// Axpy computes y += a*x element-wise. Shapes must match; views with equal
// element counts (e.g. a FlatTo2D of y) are accepted.
func (cpu *CPUBackend) Axpy(y *tensor.RawTensor, a float64, x *tensor.RawTensor) {
	if y.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("cpu: axpy: size mismatch %v vs %v", y.Shape(), x.Shape()))
	}
	dispatch("axpy", y,
		func() { axpyKernel(elems[float32](y), float32(a), elems[float32](x)) },
		func() { axpyKernel(elems[float64](y), a, elems[float64](x)) })
}

func axpyKernel[T numeric](y []T, a T, x []T) {
	for i := range y {
		y[i] += a * x[i]
	}
}

// ReLU computes dst = max(src, 0).
func (cpu *CPUBackend) ReLU(dst, src *tensor.RawTensor) {
	if dst.NumElements() != src.NumElements() {
		panic("cpu: relu: size mismatch")
	}
	dispatch("relu", src,
		func() { reluKernel(elems[float32](dst), elems[float32](src)) },
		func() { reluKernel(elems[float64](dst), elems[float64](src)) })
}

func reluKernel[T numeric](dst, src []T) {
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = 0
		}
	}
}

// ReLUGrad computes dst = outGrad where out > 0, else 0. Since the forward
// output is zero exactly where the input was clipped, the saved output is
// enough to gate the gradient.
func (cpu *CPUBackend) ReLUGrad(dst, out, outGrad *tensor.RawTensor) {
	if dst.NumElements() != out.NumElements() || dst.NumElements() != outGrad.NumElements() {
		panic("cpu: relugrad: size mismatch")
	}
	dispatch("relugrad", out,
		func() { reluGradKernel(elems[float32](dst), elems[float32](out), elems[float32](outGrad)) },
		func() { reluGradKernel(elems[float64](dst), elems[float64](out), elems[float64](outGrad)) })
}

func reluGradKernel[T numeric](dst, out, outGrad []T) {
	for i := range dst {
		if out[i] > 0 {
			dst[i] = outGrad[i]
		} else {
			dst[i] = 0
		}
	}
}
