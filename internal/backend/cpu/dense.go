package cpu

import (
	"fmt"

	"github.com/strata-ml/strata/internal/parallel"
	"github.com/strata-ml/strata/internal/tensor"
)

// mat is a minimal row-major matrix view used by the dense kernels.
type mat[T numeric] struct {
	data  []T
	rows  int
	cols  int
	trans bool
}

func (m mat[T]) effRows() int {
	if m.trans {
		return m.cols
	}
	return m.rows
}

func (m mat[T]) effCols() int {
	if m.trans {
		return m.rows
	}
	return m.cols
}

func (m mat[T]) at(i, j int) T {
	if m.trans {
		i, j = j, i
	}
	return m.data[i*m.cols+j]
}

func matOf[T numeric](t *tensor.RawTensor, trans bool) mat[T] {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cpu: dot: expected 2D tensor, got %v", shape))
	}
	return mat[T]{data: elems[T](t), rows: shape[0], cols: shape[1], trans: trans}
}

// Dot computes dst = op(a) @ op(b), or dst += op(a) @ op(b) when accumulate
// is set, where op is an optional transpose. All tensors are 2-D.
func (cpu *CPUBackend) Dot(dst, a, b *tensor.RawTensor, transA, transB bool, accumulate bool) {
	dispatch("dot", dst, func() {
		dotKernel(matOf[float32](dst, false), matOf[float32](a, transA), matOf[float32](b, transB), accumulate)
	}, func() {
		dotKernel(matOf[float64](dst, false), matOf[float64](a, transA), matOf[float64](b, transB), accumulate)
	})
}

func dotKernel[T numeric](dst, a, b mat[T], accumulate bool) {
	M, K, N := a.effRows(), a.effCols(), b.effCols()
	if b.effRows() != K || dst.rows != M || dst.cols != N {
		panic(fmt.Sprintf("cpu: dot: dimension mismatch (%dx%d) @ (%dx%d) -> (%dx%d)",
			a.effRows(), a.effCols(), b.effRows(), b.effCols(), dst.rows, dst.cols))
	}

	parallel.Ranges(M, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := dst.data[i*N : (i+1)*N]
			if !accumulate {
				for j := range row {
					row[j] = 0
				}
			}
			for k := 0; k < K; k++ {
				av := a.at(i, k)
				if av == 0 {
					continue
				}
				for j := 0; j < N; j++ {
					row[j] += av * b.at(k, j)
				}
			}
		}
	})
}

// AddRowVector adds vec (length N, any rank) to every row of the 2-D
// tensor dst.
func (cpu *CPUBackend) AddRowVector(dst, vec *tensor.RawTensor) {
	shape := dst.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cpu: addrowvector: expected 2D tensor, got %v", shape))
	}
	if vec.NumElements() != shape[1] {
		panic(fmt.Sprintf("cpu: addrowvector: vector length %d != columns %d", vec.NumElements(), shape[1]))
	}

	M, N := shape[0], shape[1]
	dispatch("addrowvector", dst,
		func() { addRowVectorKernel(elems[float32](dst), elems[float32](vec), M, N) },
		func() { addRowVectorKernel(elems[float64](dst), elems[float64](vec), M, N) })
}

func addRowVectorKernel[T numeric](dst, vec []T, M, N int) {
	for i := 0; i < M; i++ {
		row := dst[i*N : (i+1)*N]
		for j := range row {
			row[j] += vec[j]
		}
	}
}

// SumRows reduces the 2-D tensor src over its rows into dst (length N),
// overwriting or accumulating.
func (cpu *CPUBackend) SumRows(dst, src *tensor.RawTensor, accumulate bool) {
	shape := src.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cpu: sumrows: expected 2D tensor, got %v", shape))
	}
	if dst.NumElements() != shape[1] {
		panic(fmt.Sprintf("cpu: sumrows: destination length %d != columns %d", dst.NumElements(), shape[1]))
	}

	M, N := shape[0], shape[1]
	dispatch("sumrows", src,
		func() { sumRowsKernel(elems[float32](dst), elems[float32](src), M, N, accumulate) },
		func() { sumRowsKernel(elems[float64](dst), elems[float64](src), M, N, accumulate) })
}

func sumRowsKernel[T numeric](dst, src []T, M, N int, accumulate bool) {
	if !accumulate {
		for j := range dst {
			dst[j] = 0
		}
	}
	for i := 0; i < M; i++ {
		row := src[i*N : (i+1)*N]
		for j := range row {
			dst[j] += row[j]
		}
	}
}
