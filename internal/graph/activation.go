package graph

import (
	"github.com/strata-ml/strata/internal/tensor"
)

// ReLULayer applies the rectifier element-wise. It needs no scratch state:
// the gradient gate is recovered from the input node, which still holds the
// forward activation when Backprop runs.
type ReLULayer struct {
	backend   tensor.Backend
	connected bool
}

// NewReLULayer creates a ReLU activation layer.
func NewReLULayer(backend tensor.Backend) *ReLULayer {
	return &ReLULayer{backend: backend}
}

// SetParam ignores all configuration; ReLU has none.
func (l *ReLULayer) SetParam(name, value string) {}

// InitConnection allocates the output node with the input's shape.
func (l *ReLULayer) InitConnection(in, out []*Node, state *ConnectState) error {
	if err := checkArity("relu", in, out, 1, 1); err != nil {
		return err
	}
	data := in[0].MustData()
	out[0].Data = tensor.MustNewRaw(data.Shape(), data.DType(), data.Device())
	state.SetSlots(0)
	l.connected = true
	return nil
}

// OnBatchSizeChanged has nothing to resize.
func (l *ReLULayer) OnBatchSizeChanged(in, out []*Node, state *ConnectState) {
	if !l.connected {
		panic("relu: layer used before InitConnection")
	}
}

// Forward computes out = max(in, 0).
func (l *ReLULayer) Forward(isTrain bool, in, out []*Node, state *ConnectState) {
	if !l.connected {
		panic("relu: layer used before InitConnection")
	}
	l.backend.ReLU(out[0].MustData(), in[0].MustData())
}

// Backprop overwrites the input node with the gated gradient. The input
// node still holds the forward activation here, so it doubles as the gate;
// the element-wise kernel reads each gate value before overwriting it.
func (l *ReLULayer) Backprop(propagate bool, in, out []*Node, state *ConnectState) {
	if !l.connected {
		panic("relu: layer used before InitConnection")
	}
	if !propagate {
		return
	}
	data := in[0].MustData()
	l.backend.ReLUGrad(data, data, out[0].MustData())
}

// ApplyVisitor is a no-op: ReLU has no learnable parameters.
func (l *ReLULayer) ApplyVisitor(v Visitor) {}
