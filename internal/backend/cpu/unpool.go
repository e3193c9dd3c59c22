package cpu

import (
	"fmt"

	"github.com/strata-ml/strata/internal/parallel"
	"github.com/strata-ml/strata/internal/tensor"
)

// Unpool computes the gradient of Pool with respect to src. src is the
// forward (padded) input, pooled the forward result, outGrad the gradient
// arriving at the pooled output; the returned tensor has src's shape.
//
// Gradient routing per reduction:
//   - max: the whole window gradient goes to the window's arg-max position,
//     exactly one position per window even under ties (first in scan order)
//   - sum: the window gradient is added to every position in the window
//
// Overlapping windows accumulate.
func (cpu *CPUBackend) Unpool(reduce tensor.ReduceKind, src, pooled, outGrad *tensor.RawTensor, kh, kw, stride int) *tensor.RawTensor {
	sshape, pshape := src.Shape(), pooled.Shape()
	if len(sshape) != 4 || len(pshape) != 4 {
		panic("cpu: unpool: expected 4D tensors")
	}
	if !pshape.Equal(outGrad.Shape()) {
		panic(fmt.Sprintf("cpu: unpool: pooled/gradient shape mismatch %v vs %v", pshape, outGrad.Shape()))
	}
	if sshape[0] != pshape[0] || sshape[1] != pshape[1] {
		panic(fmt.Sprintf("cpu: unpool: batch/channel mismatch %v vs %v", sshape, pshape))
	}

	N, C := sshape[0], sshape[1]
	H, W := sshape[2], sshape[3]
	outH, outW := pshape[2], pshape[3]

	grad := tensor.MustNewRaw(sshape, src.DType(), cpu.device)

	dispatch("unpool", src, func() {
		unpoolKernel(reduce, elems[float32](grad), elems[float32](src), elems[float32](outGrad),
			N, C, H, W, outH, outW, kh, kw, stride)
	}, func() {
		unpoolKernel(reduce, elems[float64](grad), elems[float64](src), elems[float64](outGrad),
			N, C, H, W, outH, outW, kh, kw, stride)
	})
	return grad
}

func unpoolKernel[T numeric](reduce tensor.ReduceKind, grad, src, outGrad []T, N, C, H, W, outH, outW, kh, kw, stride int) {
	parallel.Planes(N, C, func(n, c int) {
		srcPlane := src[(n*C+c)*H*W : (n*C+c+1)*H*W]
		gradPlane := grad[(n*C+c)*H*W : (n*C+c+1)*H*W]
		outGradPlane := outGrad[(n*C+c)*outH*outW : (n*C+c+1)*outH*outW]

		for oy := 0; oy < outH; oy++ {
			yStart := oy * stride
			yEnd := min(yStart+kh, H)

			for ox := 0; ox < outW; ox++ {
				xStart := ox * stride
				xEnd := min(xStart+kw, W)
				g := outGradPlane[oy*outW+ox]

				switch reduce {
				case tensor.ReduceMax:
					// First arg-max in scan order gets the whole gradient.
					argY, argX := yStart, xStart
					best := srcPlane[yStart*W+xStart]
					for y := yStart; y < yEnd; y++ {
						row := srcPlane[y*W : (y+1)*W]
						for x := xStart; x < xEnd; x++ {
							if row[x] > best {
								best = row[x]
								argY, argX = y, x
							}
						}
					}
					gradPlane[argY*W+argX] += g
				case tensor.ReduceSum:
					for y := yStart; y < yEnd; y++ {
						gradRow := gradPlane[y*W : (y+1)*W]
						for x := xStart; x < xEnd; x++ {
							gradRow[x] += g
						}
					}
				default:
					panic(fmt.Sprintf("cpu: unpool: unknown reduction %v", reduce))
				}
			}
		}
	})
}
