package graph

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/strata-ml/strata/internal/tensor"
)

// PoolKind selects the reduction applied by a PoolingLayer. It is fixed at
// construction; only the window geometry is runtime configuration.
type PoolKind int

// Supported pooling reductions.
const (
	MaxPooling PoolKind = iota
	SumPooling
	AvgPooling
)

// String returns a human-readable pooling-mode name.
func (k PoolKind) String() string {
	switch k {
	case MaxPooling:
		return "max"
	case SumPooling:
		return "sum"
	case AvgPooling:
		return "avg"
	default:
		return "unknown"
	}
}

// Scratch slots of the pooling layer, keyed by purpose. The two buffers
// serve unrelated consumers and must never alias.
const (
	// poolScratchPooled caches the forward pooled result (output shape);
	// Backprop reads it as the saved forward output.
	poolScratchPooled = 0
	// poolScratchInput stages the input-shaped gradient between crop and
	// the write into the input node; accelerated backends may reuse it as
	// their device-state cache.
	poolScratchInput = 1

	poolScratchSlots = 2
)

// PoolingLayer applies a strided, padded, windowed reduction over the
// spatial dimensions of a [N, C, H, W] input.
//
// Output spatial extent per dimension:
//
//	out = min(in + 2*pad - k + stride - 1, in + 2*pad - 1) / stride + 1
//
// i.e. ceiling-style coverage capped so that no window starts entirely
// beyond the padded input.
//
// Average pooling is sum pooling scaled by 1/(kh*kw). The scale uses the
// nominal window area even for border windows that overlap padding; this
// border bias is documented behavior, kept bit-for-bit.
type PoolingLayer struct {
	kind    PoolKind
	param   LayerParam
	backend tensor.Backend

	inH, inW  int // unpadded input spatial extent, recorded at connection
	connected bool
}

// NewPoolingLayer creates a pooling layer of the given kind. Window
// geometry is configured through SetParam: kernel_height, kernel_width (or
// kernel_size), stride, pad_y, pad_x.
func NewPoolingLayer(kind PoolKind, backend tensor.Backend) *PoolingLayer {
	return &PoolingLayer{
		kind:    kind,
		param:   DefaultLayerParam(),
		backend: backend,
	}
}

// Kind returns the layer's pooling reduction.
func (l *PoolingLayer) Kind() PoolKind {
	return l.kind
}

// SetParam applies one configuration pair; unknown names are ignored.
func (l *PoolingLayer) SetParam(name, value string) {
	l.param.SetParam(name, value)
}

// reduce maps the pooling mode onto the backend reduction. Average pooling
// reuses the sum reducer; the 1/(kh*kw) scale is applied by the layer.
func (l *PoolingLayer) reduce() tensor.ReduceKind {
	switch l.kind {
	case MaxPooling:
		return tensor.ReduceMax
	case SumPooling, AvgPooling:
		return tensor.ReduceSum
	default:
		panic(fmt.Sprintf("pooling: unknown pooling mode %d", int(l.kind)))
	}
}

// InitConnection negotiates shapes: validates configuration, computes the
// output shape, allocates the output node tensor and sizes the scratch
// state. Pooling is a strict 1-1 connection.
func (l *PoolingLayer) InitConnection(in, out []*Node, state *ConnectState) error {
	if err := checkArity("pooling", in, out, 1, 1); err != nil {
		return err
	}
	if l.kind != MaxPooling && l.kind != SumPooling && l.kind != AvgPooling {
		return errors.Errorf("pooling: unknown pooling mode %d", int(l.kind))
	}

	ishape := in[0].MustData().Shape()
	if len(ishape) != 4 {
		return errors.Errorf("pooling: expected 4D input [N,C,H,W], got %v", ishape)
	}

	kh, kw := l.param.KernelHeight, l.param.KernelWidth
	stride := l.param.Stride
	if kh <= 0 || kw <= 0 {
		return errors.Errorf("pooling: kernel size must be configured, got %dx%d", kh, kw)
	}
	if stride <= 0 {
		return errors.Errorf("pooling: stride must be positive, got %d", stride)
	}

	N, C, H, W := ishape[0], ishape[1], ishape[2], ishape[3]
	if kh > H {
		return errors.Errorf("pooling: kernel size exceeds input spatial extent: kh=%d > H=%d", kh, H)
	}
	if kw > W {
		return errors.Errorf("pooling: kernel size exceeds input spatial extent: kw=%d > W=%d", kw, W)
	}

	oshape := tensor.Shape{
		N, C,
		outputExtent(H, kh, stride, l.param.PadY),
		outputExtent(W, kw, stride, l.param.PadX),
	}

	data := in[0].MustData()
	out[0].Data = tensor.MustNewRaw(oshape, data.DType(), data.Device())

	state.SetSlots(poolScratchSlots)
	state.Resize(poolScratchPooled, oshape, data.DType(), data.Device())
	state.Resize(poolScratchInput, ishape, data.DType(), data.Device())

	l.inH, l.inW = H, W
	l.connected = true
	return nil
}

// outputExtent is the two-branch min formula for one spatial dimension.
// The first branch is ceiling division coverage, the second caps it so no
// window starts at or past the end of the padded input. Both branches must
// stay exactly as written.
func outputExtent(in, kernel, stride, pad int) int {
	a := in + 2*pad - kernel + stride - 1
	b := in + 2*pad - 1
	return min(a, b)/stride + 1
}

// OnBatchSizeChanged re-sizes the scratch tensors to track the node
// tensors' new leading dimension. Spatial shape logic is not recomputed.
func (l *PoolingLayer) OnBatchSizeChanged(in, out []*Node, state *ConnectState) {
	l.mustBeConnected()
	data := in[0].MustData()
	state.Resize(poolScratchPooled, out[0].MustData().Shape(), data.DType(), data.Device())
	state.Resize(poolScratchInput, data.Shape(), data.DType(), data.Device())
}

// Forward pads the input, pools into the cached scratch tensor and copies
// the result into the output node.
func (l *PoolingLayer) Forward(isTrain bool, in, out []*Node, state *ConnectState) {
	l.mustBeConnected()
	b := l.backend
	tmp := state.States[poolScratchPooled]
	kh, kw := l.param.KernelHeight, l.param.KernelWidth

	padded := b.Pad(in[0].MustData(), l.param.PadY, l.param.PadX)
	b.Pool(l.reduce(), tmp, padded, kh, kw, l.param.Stride)
	if l.kind == AvgPooling {
		b.Scale(tmp, 1/float64(kh*kw))
	}
	b.Copy(out[0].MustData(), tmp)
}

// Backprop unpools the output gradient over the padded coordinate space,
// crops back to the unpadded input shape and overwrites the input node with
// the input gradient.
func (l *PoolingLayer) Backprop(propagate bool, in, out []*Node, state *ConnectState) {
	l.mustBeConnected()
	if !propagate {
		return
	}

	b := l.backend
	kh, kw := l.param.KernelHeight, l.param.KernelWidth
	pooled := state.States[poolScratchPooled]
	staged := state.States[poolScratchInput]

	padded := b.Pad(in[0].MustData(), l.param.PadY, l.param.PadX)
	gradPadded := b.Unpool(l.reduce(), padded, pooled, out[0].MustData(), kh, kw, l.param.Stride)
	b.Crop(staged, gradPadded, l.param.PadY, l.param.PadX)
	if l.kind == AvgPooling {
		b.Scale(staged, 1/float64(kh*kw))
	}
	b.Copy(in[0].MustData(), staged)
}

// ApplyVisitor is a no-op: pooling has no learnable parameters.
func (l *PoolingLayer) ApplyVisitor(v Visitor) {}

func (l *PoolingLayer) mustBeConnected() {
	if !l.connected {
		panic("pooling: layer used before InitConnection")
	}
}
