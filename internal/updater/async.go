package updater

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/strata-ml/strata/internal/graph"
	"github.com/strata-ml/strata/internal/ps"
	"github.com/strata-ml/strata/internal/tensor"
)

// PSUpdater exchanges gradients with a parameter service in the
// background. AfterBackprop snapshots the layer gradient and starts a
// goroutine that pushes it and pulls the updated weight; the weight is
// unsafe to touch until UpdateWait (or BeforeAllForward) returns. The
// update rule itself lives server-side, so SetParam recognizes nothing.
type PSUpdater struct {
	tag     string
	key     int
	weight  *tensor.RawTensor
	grad    *tensor.RawTensor
	backend tensor.Backend
	client  ps.Client

	// gradCopy decouples the in-flight push from the layer accumulator,
	// which backprop refills while the exchange runs.
	gradCopy *tensor.RawTensor
	pending  chan struct{}
}

// NewPS creates an async updater for one weight tensor, addressed on the
// service by key.
func NewPS(tag string, key int, weight, grad *tensor.RawTensor, backend tensor.Backend, client ps.Client) (*PSUpdater, error) {
	if weight == nil || grad == nil {
		return nil, errors.New("ps updater: weight and gradient are required")
	}
	if !weight.Shape().Equal(grad.Shape()) {
		return nil, errors.Errorf("ps updater: weight shape %v does not match gradient shape %v",
			weight.Shape(), grad.Shape())
	}
	if client == nil {
		return nil, errors.New("ps updater: client is required")
	}
	return &PSUpdater{
		tag:      tag,
		key:      key,
		weight:   weight,
		grad:     grad,
		backend:  backend,
		client:   client,
		gradCopy: tensor.MustNewRaw(grad.Shape(), grad.DType(), grad.Device()),
	}, nil
}

// Init registers the weight with the service under the updater's key.
func (u *PSUpdater) Init() {
	u.client.InitKey(u.key, u.weight)
	klog.V(1).Infof("ps updater[%s]: key %d shape %v", u.tag, u.key, u.weight.Shape())
}

// SetParam ignores all names: hyperparameters belong to the server-side
// update rule.
func (u *PSUpdater) SetParam(name, value string) {}

// StartRound is a no-op; the service tracks its own epoch per key.
func (u *PSUpdater) StartRound(round int) {}

// ApplyVisitor exposes the managed weight and gradient.
func (u *PSUpdater) ApplyVisitor(v graph.Visitor) {
	v.Visit(u.tag, u.weight, u.grad)
}

// BeforeAllForward completes any outstanding exchange so the forward pass
// reads the updated weight.
func (u *PSUpdater) BeforeAllForward() {
	u.UpdateWait()
}

// BeforeBackprop runs between forward and backprop. The layer accumulates
// the gradient itself, so there is nothing to stage here.
func (u *PSUpdater) BeforeBackprop(in, out []*graph.Node) {}

// AfterBackprop starts the gradient exchange when didUpdate is true. The
// layer gradient is snapshotted and zeroed before this returns; the push
// and the pull of the new weight run in the background. With didUpdate
// false nothing happens and the weight is left untouched.
func (u *PSUpdater) AfterBackprop(didUpdate bool, epoch int64) {
	if !didUpdate {
		return
	}
	if u.pending != nil {
		panic("ps updater: AfterBackprop while an exchange is still in flight")
	}

	u.backend.Copy(u.gradCopy, u.grad)
	u.backend.Fill(u.grad, 0)

	done := make(chan struct{})
	u.pending = done
	go func() {
		u.client.Push(u.key, u.gradCopy)
		u.client.PullWait(u.key, u.weight)
		close(done)
	}()
}

// UpdateWait blocks until the exchange started by the last AfterBackprop
// has finished. Without one in flight it returns immediately.
func (u *PSUpdater) UpdateWait() {
	if u.pending == nil {
		return
	}
	<-u.pending
	u.pending = nil
}

// CreateAsyncUpdaters builds one PSUpdater per trainable tensor of layer,
// with keys derived from layerIndex by codec.
func CreateAsyncUpdaters(layerIndex int, codec KeyCodec, layer graph.Layer, backend tensor.Backend, client ps.Client) ([]AsyncUpdater, error) {
	var (
		updaters []AsyncUpdater
		firstErr error
	)
	layer.ApplyVisitor(visitorFunc(func(tag string, weight, grad *tensor.RawTensor) {
		if firstErr != nil {
			return
		}
		key, err := codec.EncodeDataKey(layerIndex, tag)
		if err != nil {
			firstErr = errors.Wrapf(err, "layer %d weight %q", layerIndex, tag)
			return
		}
		u, err := NewPS(tag, key, weight, grad, backend, client)
		if err != nil {
			firstErr = errors.Wrapf(err, "layer %d weight %q", layerIndex, tag)
			return
		}
		updaters = append(updaters, u)
	}))
	if firstErr != nil {
		return nil, firstErr
	}
	return updaters, nil
}
