package cpu

import (
	"fmt"

	"github.com/strata-ml/strata/internal/parallel"
	"github.com/strata-ml/strata/internal/tensor"
)

// Pool applies a windowed reduction over the spatial dimensions of src,
// writing into dst. src is typically an already padded input; dst's spatial
// shape selects the number of windows. Windows whose extent runs past the
// source are clipped at the border, which is what makes the ceiling-style
// output-shape formula sound: a window may end beyond the source but never
// start there.
func (cpu *CPUBackend) Pool(reduce tensor.ReduceKind, dst, src *tensor.RawTensor, kh, kw, stride int) {
	dshape, sshape := dst.Shape(), src.Shape()
	if len(dshape) != 4 || len(sshape) != 4 {
		panic("cpu: pool: expected 4D tensors")
	}
	if dshape[0] != sshape[0] || dshape[1] != sshape[1] {
		panic(fmt.Sprintf("cpu: pool: batch/channel mismatch %v vs %v", dshape, sshape))
	}
	if kh <= 0 || kw <= 0 || stride <= 0 {
		panic(fmt.Sprintf("cpu: pool: invalid kernel %dx%d stride %d", kh, kw, stride))
	}

	N, C := sshape[0], sshape[1]
	H, W := sshape[2], sshape[3]
	outH, outW := dshape[2], dshape[3]
	if (outH-1)*stride >= H || (outW-1)*stride >= W {
		panic(fmt.Sprintf("cpu: pool: window start outside source: out %dx%d stride %d source %dx%d",
			outH, outW, stride, H, W))
	}

	dispatch("pool", src, func() {
		poolKernel(reduce, elems[float32](dst), elems[float32](src), N, C, H, W, outH, outW, kh, kw, stride)
	}, func() {
		poolKernel(reduce, elems[float64](dst), elems[float64](src), N, C, H, W, outH, outW, kh, kw, stride)
	})
}

func poolKernel[T numeric](reduce tensor.ReduceKind, dst, src []T, N, C, H, W, outH, outW, kh, kw, stride int) {
	parallel.Planes(N, C, func(n, c int) {
		srcPlane := src[(n*C+c)*H*W : (n*C+c+1)*H*W]
		dstPlane := dst[(n*C+c)*outH*outW : (n*C+c+1)*outH*outW]

		for oy := 0; oy < outH; oy++ {
			yStart := oy * stride
			yEnd := min(yStart+kh, H)

			for ox := 0; ox < outW; ox++ {
				xStart := ox * stride
				xEnd := min(xStart+kw, W)

				var acc T
				switch reduce {
				case tensor.ReduceMax:
					acc = srcPlane[yStart*W+xStart]
					for y := yStart; y < yEnd; y++ {
						row := srcPlane[y*W : (y+1)*W]
						for x := xStart; x < xEnd; x++ {
							if row[x] > acc {
								acc = row[x]
							}
						}
					}
				case tensor.ReduceSum:
					for y := yStart; y < yEnd; y++ {
						row := srcPlane[y*W : (y+1)*W]
						for x := xStart; x < xEnd; x++ {
							acc += row[x]
						}
					}
				default:
					panic(fmt.Sprintf("cpu: pool: unknown reduction %v", reduce))
				}
				dstPlane[oy*outW+ox] = acc
			}
		}
	})
}
