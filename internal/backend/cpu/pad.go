package cpu

import (
	"fmt"

	"github.com/strata-ml/strata/internal/parallel"
	"github.com/strata-ml/strata/internal/tensor"
)

// Pad zero-pads the two trailing (spatial) dimensions of a [N, C, H, W]
// tensor by padY rows on top/bottom and padX columns on each side. The
// result is a fresh allocation even for zero padding, so callers can treat
// it as private scratch.
func (cpu *CPUBackend) Pad(src *tensor.RawTensor, padY, padX int) *tensor.RawTensor {
	shape := src.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("cpu: pad: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if padY < 0 || padX < 0 {
		panic(fmt.Sprintf("cpu: pad: negative padding (%d, %d)", padY, padX))
	}

	N, C, H, W := shape[0], shape[1], shape[2], shape[3]
	out := tensor.MustNewRaw(tensor.Shape{N, C, H + 2*padY, W + 2*padX}, src.DType(), cpu.device)

	dispatch("pad", src,
		func() { padKernel(elems[float32](out), elems[float32](src), N, C, H, W, padY, padX) },
		func() { padKernel(elems[float64](out), elems[float64](src), N, C, H, W, padY, padX) })
	return out
}

func padKernel[T numeric](dst, src []T, N, C, H, W, padY, padX int) {
	outH := H + 2*padY
	outW := W + 2*padX

	parallel.Planes(N, C, func(n, c int) {
		srcPlane := src[(n*C+c)*H*W : (n*C+c+1)*H*W]
		dstPlane := dst[(n*C+c)*outH*outW : (n*C+c+1)*outH*outW]
		for y := 0; y < H; y++ {
			dstRow := dstPlane[(y+padY)*outW+padX:]
			copy(dstRow[:W], srcPlane[y*W:(y+1)*W])
		}
	})
}

// Crop extracts the dst-shaped spatial region of src starting at row offY
// and column offX. dst and src must share N and C; the region must lie
// fully inside src. This is the inverse of Pad when offY/offX equal the
// original padding.
func (cpu *CPUBackend) Crop(dst, src *tensor.RawTensor, offY, offX int) {
	dshape, sshape := dst.Shape(), src.Shape()
	if len(dshape) != 4 || len(sshape) != 4 {
		panic("cpu: crop: expected 4D tensors")
	}
	if dshape[0] != sshape[0] || dshape[1] != sshape[1] {
		panic(fmt.Sprintf("cpu: crop: batch/channel mismatch %v vs %v", dshape, sshape))
	}
	if offY < 0 || offX < 0 || offY+dshape[2] > sshape[2] || offX+dshape[3] > sshape[3] {
		panic(fmt.Sprintf("cpu: crop: region %dx%d at (%d, %d) outside source %v",
			dshape[2], dshape[3], offY, offX, sshape))
	}

	N, C := dshape[0], dshape[1]
	h, w := dshape[2], dshape[3]
	H, W := sshape[2], sshape[3]

	dispatch("crop", src,
		func() { cropKernel(elems[float32](dst), elems[float32](src), N, C, h, w, H, W, offY, offX) },
		func() { cropKernel(elems[float64](dst), elems[float64](src), N, C, h, w, H, W, offY, offX) })
}

func cropKernel[T numeric](dst, src []T, N, C, h, w, H, W, offY, offX int) {
	parallel.Planes(N, C, func(n, c int) {
		srcPlane := src[(n*C+c)*H*W : (n*C+c+1)*H*W]
		dstPlane := dst[(n*C+c)*h*w : (n*C+c+1)*h*w]
		for y := 0; y < h; y++ {
			srcRow := srcPlane[(y+offY)*W+offX:]
			copy(dstPlane[y*w:(y+1)*w], srcRow[:w])
		}
	})
}
