package cpu

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// Cast converts x to a different element type, returning a new tensor.
// Float16 is storage-only: casting to it narrows through IEEE binary16,
// casting from it widens back to a computable type.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		out := tensor.MustNewRaw(x.Shape(), dtype, cpu.device)
		copy(out.Data(), x.Data())
		return out
	}

	out := tensor.MustNewRaw(x.Shape(), dtype, cpu.device)
	switch {
	case x.DType() == tensor.Float32 && dtype == tensor.Float64:
		dst, src := out.AsFloat64(), x.AsFloat32()
		for i, v := range src {
			dst[i] = float64(v)
		}
	case x.DType() == tensor.Float64 && dtype == tensor.Float32:
		dst, src := out.AsFloat32(), x.AsFloat64()
		for i, v := range src {
			dst[i] = float32(v)
		}
	case x.DType() == tensor.Float32 && dtype == tensor.Float16:
		tensor.Float32ToHalfBits(out.AsFloat16Bits(), x.AsFloat32())
	case x.DType() == tensor.Float16 && dtype == tensor.Float32:
		tensor.HalfBitsToFloat32(out.AsFloat32(), x.AsFloat16Bits())
	default:
		panic(fmt.Sprintf("cpu: cast: unsupported conversion %v -> %v", x.DType(), dtype))
	}
	return out
}
