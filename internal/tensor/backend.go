package tensor

// Backend defines the device capability consumed by layers and updaters.
// All layer and updater logic is written once against this interface;
// device-specific kernels live behind it.
//
// Allocation convention: operations that produce a shape the caller already
// owns (Pool, Crop, Dot, ...) write into a caller-provided destination so
// scratch buffers can be reused across batches; operations whose result
// shape is derived (Pad, Unpool, Cast) allocate and return.
//
// Implementations:
//   - cpu: pure Go kernels, goroutine-parallel over batch*channels
type Backend interface {
	// Element-wise operations
	Fill(x *RawTensor, v float64)       // x[i] = v
	Copy(dst, src *RawTensor)           // dst = src (same shape and dtype)
	Scale(x *RawTensor, a float64)      // x *= a
	Axpy(y *RawTensor, a float64, x *RawTensor) // y += a*x

	// Spatial operations on [N, C, H, W] tensors
	Pad(src *RawTensor, padY, padX int) *RawTensor            // zero-pad H and W
	Crop(dst, src *RawTensor, offY, offX int)                 // extract dst-shaped region at (offY, offX)
	Pool(reduce ReduceKind, dst, src *RawTensor, kh, kw, stride int)                 // windowed reduction into dst
	Unpool(reduce ReduceKind, src, pooled, outGrad *RawTensor, kh, kw, stride int) *RawTensor // gradient of Pool w.r.t. src

	// Dense operations on 2-D tensors
	Dot(dst, a, b *RawTensor, transA, transB bool, accumulate bool) // dst (+)= op(a) @ op(b)
	AddRowVector(dst, vec *RawTensor)                               // dst[i][j] += vec[j]
	SumRows(dst, src *RawTensor, accumulate bool)                   // dst[j] (+)= sum_i src[i][j]

	// Activation kernels
	ReLU(dst, src *RawTensor)              // dst = max(src, 0)
	ReLUGrad(dst, out, outGrad *RawTensor) // dst = outGrad where out > 0, else 0

	// Type conversion
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
