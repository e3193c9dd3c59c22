// Package updater owns the weight-update side of training: each trainable
// tensor of a layer gets its own updater, keyed by the tag the layer
// announces through graph.Visitor. Synchronous updaters apply the gradient
// in the caller's goroutine; asynchronous updaters overlap the round trip
// to a parameter service with the rest of the training step.
package updater

import (
	"github.com/pkg/errors"

	"github.com/strata-ml/strata/internal/graph"
	"github.com/strata-ml/strata/internal/tensor"
)

// Weight tags, as announced by layers through graph.Visitor.
const (
	TagWeight = graph.TagWeight
	TagBias   = graph.TagBias
)

// Common is the surface shared by every updater regardless of its
// execution model.
type Common interface {
	// Init prepares internal state. Called once, before training.
	Init()
	// SetParam configures a named hyperparameter. Unknown names are
	// ignored so one configuration stream can feed heterogeneous
	// updaters.
	SetParam(name, value string)
	// StartRound announces the start of training round n.
	StartRound(round int)
	// ApplyVisitor exposes the managed weight and gradient.
	ApplyVisitor(v graph.Visitor)
}

// Updater applies gradients synchronously: when Update returns, the
// weight reflects the gradient.
type Updater interface {
	Common
	// Update applies the accumulated layer gradient and consumes it.
	Update(epoch int64)
	// UpdateWithGradient applies an externally supplied gradient. The
	// caller keeps ownership of grad.
	UpdateWithGradient(epoch int64, grad *tensor.RawTensor)
}

// AsyncUpdater runs the update as a background exchange with a parameter
// service. Callers drive it through the training-step hooks below and
// must not read or write the weight between AfterBackprop and the next
// UpdateWait (or BeforeAllForward, which implies one).
type AsyncUpdater interface {
	Common
	// BeforeAllForward runs before the forward passes of a training
	// step. It completes any outstanding exchange so the forward pass
	// sees the updated weight.
	BeforeAllForward()
	// BeforeBackprop runs after the forward passes, before backprop.
	BeforeBackprop(in, out []*graph.Node)
	// AfterBackprop runs after backprop. With didUpdate true it starts
	// the gradient exchange; otherwise the step is a no-op and the
	// weight stays untouched.
	AfterBackprop(didUpdate bool, epoch int64)
	// UpdateWait blocks until the exchange started by the last
	// AfterBackprop has finished. Returns immediately when none is in
	// flight.
	UpdateWait()
}

// New creates a synchronous updater of the named type for one weight
// tensor and its gradient accumulator.
func New(typ string, tag string, weight, grad *tensor.RawTensor, backend tensor.Backend) (Updater, error) {
	switch typ {
	case "sgd":
		return NewSGD(tag, weight, grad, backend)
	default:
		return nil, errors.Errorf("unknown updater type %q", typ)
	}
}

// CreateUpdaters builds one synchronous updater per trainable tensor of
// layer, in visiting order.
func CreateUpdaters(typ string, layer graph.Layer, backend tensor.Backend) ([]Updater, error) {
	var (
		updaters []Updater
		firstErr error
	)
	layer.ApplyVisitor(visitorFunc(func(tag string, weight, grad *tensor.RawTensor) {
		if firstErr != nil {
			return
		}
		u, err := New(typ, tag, weight, grad, backend)
		if err != nil {
			firstErr = errors.Wrapf(err, "weight %q", tag)
			return
		}
		updaters = append(updaters, u)
	}))
	if firstErr != nil {
		return nil, firstErr
	}
	return updaters, nil
}

// visitorFunc adapts a function to graph.Visitor.
type visitorFunc func(tag string, weight, grad *tensor.RawTensor)

func (f visitorFunc) Visit(tag string, weight, grad *tensor.RawTensor) {
	f(tag, weight, grad)
}
