// Package net drives a linear stack of layers through training and
// inference: it owns the nodes between layers, negotiates shapes, tracks
// batch-size changes and sequences the updater protocol around each step.
package net

import (
	"math/rand"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/strata-ml/strata/internal/graph"
	"github.com/strata-ml/strata/internal/ps"
	"github.com/strata-ml/strata/internal/tensor"
	"github.com/strata-ml/strata/internal/updater"
)

// Net is a feed-forward stack: layer i reads node i and writes node i+1.
// During backprop the node tensors are overwritten with gradients in
// place, so activations do not survive a training step.
type Net struct {
	backend tensor.Backend
	layers  []graph.Layer
	nodes   []*graph.Node
	states  []*graph.ConnectState

	sync  [][]updater.Updater
	async [][]updater.AsyncUpdater

	batch  int
	epoch  int64
	inited bool
}

// New creates a driver over the given layer stack. The stack is connected
// by InitModel before use.
func New(backend tensor.Backend, layers ...graph.Layer) *Net {
	if len(layers) == 0 {
		panic("net: empty layer stack")
	}
	nodes := make([]*graph.Node, len(layers)+1)
	for i := range nodes {
		nodes[i] = graph.NewNode(nodeName(i, len(layers)))
	}
	states := make([]*graph.ConnectState, len(layers))
	for i := range states {
		states[i] = &graph.ConnectState{}
	}
	return &Net{
		backend: backend,
		layers:  layers,
		nodes:   nodes,
		states:  states,
	}
}

func nodeName(i, layers int) string {
	switch i {
	case 0:
		return "in"
	case layers:
		return "out"
	default:
		return "hidden"
	}
}

// SetParam fans one configuration pair out to every layer and every
// configured updater.
func (n *Net) SetParam(name, value string) {
	for _, l := range n.layers {
		l.SetParam(name, value)
	}
	for _, us := range n.sync {
		for _, u := range us {
			u.SetParam(name, value)
		}
	}
	for _, us := range n.async {
		for _, u := range us {
			u.SetParam(name, value)
		}
	}
}

// InitModel allocates the input node at inputShape and connects the stack
// front to back.
func (n *Net) InitModel(inputShape tensor.Shape, dtype tensor.DataType) error {
	in, err := tensor.NewRaw(inputShape, dtype, n.backend.Device())
	if err != nil {
		return errors.Wrap(err, "input node")
	}
	n.nodes[0].Data = in

	for i, l := range n.layers {
		if err := l.InitConnection(n.nodes[i:i+1], n.nodes[i+1:i+2], n.states[i]); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}
	n.batch = inputShape[0]
	n.inited = true
	klog.V(1).Infof("net: connected %d layers, input %v output %v",
		len(n.layers), inputShape, n.OutputShape())
	return nil
}

// InitParams initializes every parameterized layer from rng.
func (n *Net) InitParams(rng *rand.Rand) {
	for _, l := range n.layers {
		if pl, ok := l.(graph.ParamLayer); ok {
			pl.InitParams(rng)
		}
	}
}

// ConfigureSync attaches one synchronous updater of the named type per
// trainable tensor.
func (n *Net) ConfigureSync(typ string) error {
	n.mustBeInited()
	n.sync = make([][]updater.Updater, len(n.layers))
	for i, l := range n.layers {
		us, err := updater.CreateUpdaters(typ, l, n.backend)
		if err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
		for _, u := range us {
			u.Init()
		}
		n.sync[i] = us
	}
	return nil
}

// ConfigureAsync attaches parameter-service updaters, keyed per layer
// index by codec. Weights are registered with the service immediately.
func (n *Net) ConfigureAsync(codec updater.KeyCodec, client ps.Client) error {
	n.mustBeInited()
	n.async = make([][]updater.AsyncUpdater, len(n.layers))
	for i, l := range n.layers {
		us, err := updater.CreateAsyncUpdaters(i, codec, l, n.backend, client)
		if err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
		for _, u := range us {
			u.Init()
		}
		n.async[i] = us
	}
	return nil
}

// StartRound announces round to every updater.
func (n *Net) StartRound(round int) {
	for _, us := range n.sync {
		for _, u := range us {
			u.StartRound(round)
		}
	}
	for _, us := range n.async {
		for _, u := range us {
			u.StartRound(round)
		}
	}
}

// Predict runs inference on input and returns the output node's tensor.
// The returned tensor is owned by the net and valid until the next step.
func (n *Net) Predict(input *tensor.RawTensor) *tensor.RawTensor {
	n.mustBeInited()
	n.adaptBatchSize(input.Shape()[0])
	n.waitAll()
	n.backend.Copy(n.nodes[0].MustData(), input)
	n.forward(false)
	return n.Output().MustData()
}

// TrainStep runs one training step: forward on input, then setLossGrad
// overwrites the output node's activation with the loss gradient, then
// backprop and the updater protocol. Synchronous updaters have applied
// their gradients when this returns; asynchronous exchanges may still be
// in flight until the next step or WaitAllUpdates.
func (n *Net) TrainStep(input *tensor.RawTensor, setLossGrad func(out *tensor.RawTensor)) {
	n.mustBeInited()
	n.adaptBatchSize(input.Shape()[0])

	for _, us := range n.async {
		for _, u := range us {
			u.BeforeAllForward()
		}
	}

	n.backend.Copy(n.nodes[0].MustData(), input)
	n.forward(true)

	setLossGrad(n.Output().MustData())

	for i := len(n.layers) - 1; i >= 0; i-- {
		in, out := n.nodes[i:i+1], n.nodes[i+1:i+2]
		for _, u := range n.asyncFor(i) {
			u.BeforeBackprop(in, out)
		}
		n.layers[i].Backprop(i > 0, in, out, n.states[i])
		for _, u := range n.asyncFor(i) {
			u.AfterBackprop(true, n.epoch)
		}
	}

	for _, us := range n.sync {
		for _, u := range us {
			u.Update(n.epoch)
		}
	}
	n.epoch++
}

// WaitAllUpdates blocks until every in-flight asynchronous exchange has
// finished. A no-op without async updaters.
func (n *Net) WaitAllUpdates() {
	n.waitAll()
}

// Output returns the output node.
func (n *Net) Output() *graph.Node {
	return n.nodes[len(n.nodes)-1]
}

// OutputShape returns the connected stack's output shape.
func (n *Net) OutputShape() tensor.Shape {
	n.mustBeInited()
	return n.Output().MustData().Shape()
}

// Epoch returns the number of training steps taken.
func (n *Net) Epoch() int64 {
	return n.epoch
}

func (n *Net) forward(isTrain bool) {
	for i, l := range n.layers {
		l.Forward(isTrain, n.nodes[i:i+1], n.nodes[i+1:i+2], n.states[i])
	}
}

// adaptBatchSize re-allocates every node at the new batch size and lets
// each layer track the change. Weights are untouched.
func (n *Net) adaptBatchSize(batch int) {
	if batch == n.batch {
		return
	}
	klog.V(1).Infof("net: batch size %d -> %d", n.batch, batch)
	for _, node := range n.nodes {
		old := node.MustData()
		node.Data = tensor.MustNewRaw(old.Shape().WithBatch(batch), old.DType(), old.Device())
	}
	for i, l := range n.layers {
		l.OnBatchSizeChanged(n.nodes[i:i+1], n.nodes[i+1:i+2], n.states[i])
	}
	n.batch = batch
}

func (n *Net) waitAll() {
	for _, us := range n.async {
		for _, u := range us {
			u.UpdateWait()
		}
	}
}

func (n *Net) mustBeInited() {
	if !n.inited {
		panic("net: used before InitModel")
	}
}

// asyncFor returns layer i's async updaters; the table is nil until
// ConfigureAsync.
func (n *Net) asyncFor(i int) []updater.AsyncUpdater {
	if n.async == nil {
		return nil
	}
	return n.async[i]
}
