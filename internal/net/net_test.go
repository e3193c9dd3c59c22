package net

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ml/strata/internal/backend/cpu"
	"github.com/strata-ml/strata/internal/graph"
	"github.com/strata-ml/strata/internal/ps"
	"github.com/strata-ml/strata/internal/tensor"
	"github.com/strata-ml/strata/internal/updater"
)

func newRaw(t *testing.T, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	if values != nil {
		copy(raw.AsFloat32(), values)
	}
	return raw
}

// newRegressionNet builds fullc(4) -> relu -> fullc(1) over 2 features.
func newRegressionNet(t *testing.T, backend tensor.Backend) *Net {
	t.Helper()
	hidden := graph.NewFullcLayer(backend)
	hidden.SetParam("num_hidden", "4")
	hidden.SetParam("init_sigma", "0.5")
	head := graph.NewFullcLayer(backend)
	head.SetParam("num_hidden", "1")
	head.SetParam("init_sigma", "0.5")

	n := New(backend, hidden, graph.NewReLULayer(backend), head)
	require.NoError(t, n.InitModel(tensor.Shape{4, 2}, tensor.Float32))
	n.InitParams(rand.New(rand.NewSource(127)))
	return n
}

// targets is y = x0 + 2*x1 for the fixed 4-example batch below.
var (
	trainInput   = []float32{1, 0, 0, 1, 1, 1, 0.5, 0.5}
	trainTargets = []float32{1, 2, 3, 1.5}
)

// mseLossGrad overwrites out with d(mse)/d(out) and returns the loss.
func mseLossGrad(out *tensor.RawTensor, targets []float32) float64 {
	buf := out.AsFloat32()
	var loss float64
	for i := range buf {
		diff := buf[i] - targets[i]
		loss += float64(diff) * float64(diff)
		buf[i] = 2 * diff / float32(len(buf))
	}
	return loss / float64(len(buf))
}

func trainLoss(t *testing.T, n *Net, steps int) (first, last float64) {
	t.Helper()
	input := newRaw(t, tensor.Shape{4, 2}, trainInput)
	for s := 0; s < steps; s++ {
		var loss float64
		n.TrainStep(input, func(out *tensor.RawTensor) {
			loss = mseLossGrad(out, trainTargets)
		})
		if s == 0 {
			first = loss
		}
		last = loss
	}
	n.WaitAllUpdates()
	return first, last
}

func TestNet_InitModelShapes(t *testing.T) {
	n := newRegressionNet(t, cpu.New())
	assert.True(t, n.OutputShape().Equal(tensor.Shape{4, 1}))
}

func TestNet_SyncTrainingReducesLoss(t *testing.T) {
	n := newRegressionNet(t, cpu.New())
	require.NoError(t, n.ConfigureSync("sgd"))
	n.SetParam("learning_rate", "0.05")

	first, last := trainLoss(t, n, 200)
	require.Greater(t, first, 0.0)
	assert.Less(t, last, first*0.1, "loss %g -> %g", first, last)
	assert.Equal(t, int64(200), n.Epoch())
}

func TestNet_AsyncTrainingReducesLoss(t *testing.T) {
	backend := cpu.New()
	n := newRegressionNet(t, backend)
	srv := ps.NewLocalServer(backend, ps.Config{Apply: ps.SGDApply(backend, 0.05)})
	codec, err := updater.NewKeyCodec(0)
	require.NoError(t, err)
	require.NoError(t, n.ConfigureAsync(codec, srv))

	first, last := trainLoss(t, n, 200)
	require.Greater(t, first, 0.0)
	assert.Less(t, last, first*0.1, "loss %g -> %g", first, last)
}

func TestNet_SyncAndAsyncAgree(t *testing.T) {
	backend := cpu.New()

	syncNet := newRegressionNet(t, backend)
	require.NoError(t, syncNet.ConfigureSync("sgd"))
	syncNet.SetParam("learning_rate", "0.05")
	trainLoss(t, syncNet, 50)

	asyncNet := newRegressionNet(t, backend)
	srv := ps.NewLocalServer(backend, ps.Config{Apply: ps.SGDApply(backend, 0.05)})
	codec, err := updater.NewKeyCodec(0)
	require.NoError(t, err)
	require.NoError(t, asyncNet.ConfigureAsync(codec, srv))
	trainLoss(t, asyncNet, 50)

	// Same seed, same rule, one worker: the two schedules match.
	input := newRaw(t, tensor.Shape{4, 2}, trainInput)
	a := append([]float32(nil), syncNet.Predict(input).AsFloat32()...)
	b := asyncNet.Predict(input).AsFloat32()
	for i := range a {
		assert.InDelta(t, a[i], b[i], 1e-4, "prediction %d", i)
	}
}

func TestNet_PredictDoesNotTrain(t *testing.T) {
	n := newRegressionNet(t, cpu.New())
	require.NoError(t, n.ConfigureSync("sgd"))

	input := newRaw(t, tensor.Shape{4, 2}, trainInput)
	first := append([]float32(nil), n.Predict(input).AsFloat32()...)
	second := n.Predict(input).AsFloat32()
	assert.Equal(t, first, second)
	assert.Equal(t, int64(0), n.Epoch())
}

func TestNet_BatchSizeChange(t *testing.T) {
	n := newRegressionNet(t, cpu.New())

	big := newRaw(t, tensor.Shape{4, 2}, trainInput)
	small := newRaw(t, tensor.Shape{2, 2}, trainInput[:4])

	bigOut := append([]float32(nil), n.Predict(big).AsFloat32()...)
	smallOut := n.Predict(small).AsFloat32()

	require.Len(t, smallOut, 2)
	// Per-example outputs are independent of the batch they ride in.
	for i := range smallOut {
		assert.InDelta(t, bigOut[i], smallOut[i], 1e-5, "example %d", i)
	}

	// And back up again.
	bigAgain := n.Predict(big).AsFloat32()
	for i := range bigAgain {
		assert.InDelta(t, bigOut[i], bigAgain[i], 1e-5, "example %d", i)
	}
}

func TestNet_PoolingStack(t *testing.T) {
	backend := cpu.New()
	pool := graph.NewPoolingLayer(graph.MaxPooling, backend)
	pool.SetParam("kernel_size", "2")
	pool.SetParam("stride", "2")
	head := graph.NewFullcLayer(backend)
	head.SetParam("num_hidden", "1")

	n := New(backend, pool, head)
	require.NoError(t, n.InitModel(tensor.Shape{1, 1, 4, 4}, tensor.Float32))
	n.InitParams(rand.New(rand.NewSource(127)))

	input := newRaw(t, tensor.Shape{1, 1, 4, 4}, []float32{
		0, 1, 2, 3,
		4, 5, 6, 7,
		8, 9, 10, 11,
		12, 13, 14, 15,
	})
	out := n.Predict(input)
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 1}))
	assert.False(t, math.IsNaN(float64(out.AsFloat32()[0])))

	// Training through the pooled path must move the loss.
	require.NoError(t, n.ConfigureSync("sgd"))
	n.SetParam("learning_rate", "0.001")
	var first, last float64
	for s := 0; s < 50; s++ {
		var loss float64
		n.TrainStep(input, func(out *tensor.RawTensor) {
			loss = mseLossGrad(out, []float32{5})
		})
		if s == 0 {
			first = loss
		}
		last = loss
	}
	assert.Less(t, last, first)
}

func TestNet_UseBeforeInitPanics(t *testing.T) {
	n := New(cpu.New(), graph.NewReLULayer(cpu.New()))
	assert.Panics(t, func() {
		n.Predict(newRaw(t, tensor.Shape{1, 2}, nil))
	})
}
