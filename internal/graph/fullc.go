package graph

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/strata-ml/strata/internal/tensor"
)

// Weight-role tags reported through ApplyVisitor. They are the roles the
// parameter-server key codec understands.
const (
	TagWeight = "wmat"
	TagBias   = "bias"
)

// ParamLayer is implemented by layers carrying learnable parameters.
type ParamLayer interface {
	Layer
	// InitParams fills the parameters from the given source. The source is
	// passed explicitly so runs are reproducible under a chosen seed.
	InitParams(rng *rand.Rand)
}

// FullcLayer is a fully connected layer: out = in @ W^T + bias, with the
// input flattened to (batch, features). Weight shape is
// (num_hidden, features).
//
// Gradients accumulate across Backprop calls; the updater owns zeroing them.
type FullcLayer struct {
	param   LayerParam
	backend tensor.Backend

	weight *tensor.RawTensor // (num_hidden, features)
	bias   *tensor.RawTensor // (num_hidden)
	wgrad  *tensor.RawTensor
	bgrad  *tensor.RawTensor

	connected bool
}

// NewFullcLayer creates a fully connected layer. The hidden width comes
// from SetParam("num_hidden", ...) before InitConnection.
func NewFullcLayer(backend tensor.Backend) *FullcLayer {
	return &FullcLayer{
		param:   DefaultLayerParam(),
		backend: backend,
	}
}

// SetParam applies one configuration pair; unknown names are ignored.
func (l *FullcLayer) SetParam(name, value string) {
	l.param.SetParam(name, value)
}

// InitConnection allocates the output node (batch, num_hidden) and, on the
// first connection, the weight/gradient pairs.
func (l *FullcLayer) InitConnection(in, out []*Node, state *ConnectState) error {
	if err := checkArity("fullc", in, out, 1, 1); err != nil {
		return err
	}
	if l.param.NumHidden <= 0 {
		return errors.Errorf("fullc: num_hidden must be configured, got %d", l.param.NumHidden)
	}

	data := in[0].MustData()
	ishape := data.Shape()
	if len(ishape) < 2 {
		return errors.Errorf("fullc: expected input with a batch dimension, got %v", ishape)
	}

	features := 1
	for _, d := range ishape[1:] {
		features *= d
	}

	if l.weight != nil && l.weight.Shape()[1] != features {
		return errors.Errorf("fullc: reconnection changed feature count: %d -> %d",
			l.weight.Shape()[1], features)
	}

	nh := l.param.NumHidden
	if l.weight == nil {
		l.weight = tensor.MustNewRaw(tensor.Shape{nh, features}, data.DType(), data.Device())
		l.bias = tensor.MustNewRaw(tensor.Shape{nh}, data.DType(), data.Device())
		l.wgrad = tensor.MustNewRaw(tensor.Shape{nh, features}, data.DType(), data.Device())
		l.bgrad = tensor.MustNewRaw(tensor.Shape{nh}, data.DType(), data.Device())
	}

	out[0].Data = tensor.MustNewRaw(tensor.Shape{ishape[0], nh}, data.DType(), data.Device())
	state.SetSlots(0)
	l.connected = true
	return nil
}

// InitParams draws the weight from N(0, init_sigma^2) and zeroes the bias.
func (l *FullcLayer) InitParams(rng *rand.Rand) {
	if l.weight == nil {
		panic("fullc: InitParams before InitConnection")
	}
	sigma := l.param.InitSigma
	for i, data := 0, l.weight.AsFloat32(); i < len(data); i++ {
		data[i] = float32(rng.NormFloat64() * sigma)
	}
	l.backend.Fill(l.bias, 0)
}

// OnBatchSizeChanged has nothing to resize: the layer keeps no
// batch-dependent scratch.
func (l *FullcLayer) OnBatchSizeChanged(in, out []*Node, state *ConnectState) {
	l.mustBeConnected()
}

// Forward computes out = flatten(in) @ W^T + bias.
func (l *FullcLayer) Forward(isTrain bool, in, out []*Node, state *ConnectState) {
	l.mustBeConnected()
	b := l.backend
	in2d := in[0].MustData().FlatTo2D()

	b.Dot(out[0].MustData(), in2d, l.weight, false, true, false)
	b.AddRowVector(out[0].MustData(), l.bias)
}

// Backprop accumulates the weight and bias gradients and, when propagate is
// set, overwrites the input node with the input gradient. The parameter
// gradients are computed first, while the input node still holds the
// forward activation.
func (l *FullcLayer) Backprop(propagate bool, in, out []*Node, state *ConnectState) {
	l.mustBeConnected()
	b := l.backend
	outGrad := out[0].MustData()
	in2d := in[0].MustData().FlatTo2D()

	b.Dot(l.wgrad, outGrad, in2d, true, false, true)
	b.SumRows(l.bgrad, outGrad, true)

	if propagate {
		b.Dot(in2d, outGrad, l.weight, false, false, false)
	}
}

// ApplyVisitor visits the weight matrix and the bias vector, flattened to
// 2-D as updaters expect.
func (l *FullcLayer) ApplyVisitor(v Visitor) {
	l.mustBeConnected()
	v.Visit(TagWeight, l.weight, l.wgrad)
	v.Visit(TagBias, l.bias.FlatTo2D(), l.bgrad.FlatTo2D())
}

func (l *FullcLayer) mustBeConnected() {
	if !l.connected {
		panic("fullc: layer used before InitConnection")
	}
}
