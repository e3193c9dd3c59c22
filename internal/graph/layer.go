package graph

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/strata-ml/strata/internal/tensor"
)

// Visitor walks a layer's (or updater's) weight/gradient pairs without
// exposing their internal storage. Tags are the weight roles understood by
// the parameter-server key codec ("wmat", "bias"). Tensors arrive flattened
// to 2-D.
type Visitor interface {
	Visit(tag string, weight, grad *tensor.RawTensor)
}

// Layer is the polymorphic unit of the computation graph.
//
// Lifecycle: a layer is configured with SetParam, then InitConnection
// negotiates shapes once per architecture, OnBatchSizeChanged tracks batch
// size changes, and Forward/Backprop run once per batch. Connected state is
// re-entered only via an explicit new InitConnection, never implicitly.
//
// All configuration validation happens in SetParam/InitConnection so the
// per-batch calls stay check-free.
type Layer interface {
	// SetParam applies one string-keyed configuration pair. Unrecognized
	// names are ignored, allowing layered configuration sets; unparsable
	// values for recognized names are fatal.
	SetParam(name, value string)

	// InitConnection negotiates tensor shapes with the neighbors: it reads
	// the input nodes, computes and allocates the output node tensors, and
	// sizes the layer's scratch state. Fails on arity or configuration
	// errors.
	InitConnection(in, out []*Node, state *ConnectState) error

	// OnBatchSizeChanged re-sizes scratch entries whose leading (batch)
	// dimension must track a changed batch size. The driver has already
	// re-allocated the node tensors.
	OnBatchSizeChanged(in, out []*Node, state *ConnectState)

	// Forward reads the input nodes and writes the output nodes. Pure for a
	// fixed parameter block, up to writes into scratch state.
	Forward(isTrain bool, in, out []*Node, state *ConnectState)

	// Backprop consumes the output nodes' gradients and, when propagate is
	// set, overwrites the input nodes with their gradients in place. With
	// propagate false the input gradient may be skipped entirely.
	Backprop(propagate bool, in, out []*Node, state *ConnectState)

	// ApplyVisitor walks the layer's weight/gradient pairs. Layers without
	// parameters call nothing.
	ApplyVisitor(v Visitor)
}

// LayerParam is the plain configuration block shared by the built-in
// layers. It is set through SetParam before InitConnection and immutable
// during training.
type LayerParam struct {
	KernelHeight int
	KernelWidth  int
	Stride       int
	PadY         int
	PadX         int
	NumHidden    int
	InitSigma    float64
}

// DefaultLayerParam returns the parameter block defaults.
func DefaultLayerParam() LayerParam {
	return LayerParam{
		Stride:    1,
		InitSigma: 0.01,
	}
}

// SetParam applies one name/value pair. Unknown names are ignored.
func (p *LayerParam) SetParam(name, value string) {
	switch name {
	case "kernel_height":
		p.KernelHeight = atoi(name, value)
	case "kernel_width":
		p.KernelWidth = atoi(name, value)
	case "kernel_size":
		p.KernelHeight = atoi(name, value)
		p.KernelWidth = p.KernelHeight
	case "stride":
		p.Stride = atoi(name, value)
	case "pad_y":
		p.PadY = atoi(name, value)
	case "pad_x":
		p.PadX = atoi(name, value)
	case "num_hidden":
		p.NumHidden = atoi(name, value)
	case "init_sigma":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			panic(fmt.Sprintf("graph: parameter %s: invalid value %q", name, value))
		}
		p.InitSigma = v
	}
}

func atoi(name, value string) int {
	v, err := strconv.Atoi(value)
	if err != nil {
		panic(fmt.Sprintf("graph: parameter %s: invalid value %q", name, value))
	}
	return v
}

// checkArity verifies a layer's fixed input/output arity.
func checkArity(layer string, in, out []*Node, wantIn, wantOut int) error {
	if len(in) != wantIn || len(out) != wantOut {
		return errors.Errorf("%s: expects %d input and %d output node(s), got %d/%d",
			layer, wantIn, wantOut, len(in), len(out))
	}
	return nil
}
