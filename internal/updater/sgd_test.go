package updater

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ml/strata/internal/backend/cpu"
	"github.com/strata-ml/strata/internal/tensor"
)

func newPair(t *testing.T, weight, grad []float32) (*tensor.RawTensor, *tensor.RawTensor) {
	t.Helper()
	w, err := tensor.NewRaw(tensor.Shape{1, len(weight)}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(w.AsFloat32(), weight)
	g, err := tensor.NewRaw(tensor.Shape{1, len(grad)}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(g.AsFloat32(), grad)
	return w, g
}

func TestSGD_Update(t *testing.T) {
	weight, grad := newPair(t, []float32{1, 2, 3}, []float32{10, 20, 30})
	u, err := NewSGD(TagWeight, weight, grad, cpu.New())
	require.NoError(t, err)
	u.SetParam("learning_rate", "0.1")
	u.Init()

	u.Update(0)

	assert.InDeltaSlice(t, []float32{0, 0, 0}, weight.AsFloat32(), 1e-6)
	// The layer accumulator is consumed.
	assert.Equal(t, []float32{0, 0, 0}, grad.AsFloat32())
}

func TestSGD_UpdateWithGradientKeepsAccumulator(t *testing.T) {
	weight, grad := newPair(t, []float32{1}, []float32{5})
	u, err := NewSGD(TagWeight, weight, grad, cpu.New())
	require.NoError(t, err)
	u.SetParam("eta", "0.5")

	external, _ := newPair(t, []float32{2}, []float32{0})
	u.UpdateWithGradient(0, external)

	assert.InDelta(t, 0, weight.AsFloat32()[0], 1e-6)
	// Neither the external gradient nor the layer accumulator changed.
	assert.Equal(t, float32(2), external.AsFloat32()[0])
	assert.Equal(t, float32(5), grad.AsFloat32()[0])
}

func TestSGD_Momentum(t *testing.T) {
	weight, grad := newPair(t, []float32{0}, []float32{1})
	u, err := NewSGD(TagWeight, weight, grad, cpu.New())
	require.NoError(t, err)
	u.SetParam("learning_rate", "1")
	u.SetParam("momentum", "0.5")

	// v1 = -1, w = -1
	u.Update(0)
	assert.InDelta(t, -1, weight.AsFloat32()[0], 1e-6)

	// v2 = 0.5*(-1) - 1 = -1.5, w = -2.5
	grad.AsFloat32()[0] = 1
	u.Update(1)
	assert.InDelta(t, -2.5, weight.AsFloat32()[0], 1e-6)
}

func TestSGD_WeightDecay(t *testing.T) {
	weight, grad := newPair(t, []float32{10}, []float32{0})
	u, err := NewSGD(TagWeight, weight, grad, cpu.New())
	require.NoError(t, err)
	u.SetParam("learning_rate", "0.1")
	u.SetParam("wd", "0.5")

	// Zero gradient still shrinks the weight: w *= 1 - lr*wd.
	u.Update(0)
	assert.InDelta(t, 9.5, weight.AsFloat32()[0], 1e-6)
}

func TestSGD_LearningRateDecay(t *testing.T) {
	weight, grad := newPair(t, []float32{0}, []float32{1})
	u, err := NewSGD(TagWeight, weight, grad, cpu.New())
	require.NoError(t, err)
	u.SetParam("learning_rate", "1")
	u.SetParam("lr_decay", "0.1")

	// Round 0 keeps the configured rate.
	u.StartRound(0)
	u.Update(0)
	assert.InDelta(t, -1, weight.AsFloat32()[0], 1e-6)

	u.StartRound(1)
	grad.AsFloat32()[0] = 1
	u.Update(1)
	assert.InDelta(t, -1.1, weight.AsFloat32()[0], 1e-6)
}

func TestSGD_ScopedParams(t *testing.T) {
	weight, grad := newPair(t, []float32{0}, []float32{1})
	u, err := NewSGD(TagBias, weight, grad, cpu.New())
	require.NoError(t, err)

	// A wmat-scoped setting must not reach a bias updater.
	u.SetParam("learning_rate:wmat", "100")
	u.SetParam("learning_rate:bias", "2")
	u.Update(0)

	assert.InDelta(t, -2, weight.AsFloat32()[0], 1e-6)
}

func TestSGD_UnknownParamIgnored(t *testing.T) {
	weight, grad := newPair(t, []float32{0}, []float32{1})
	u, err := NewSGD(TagWeight, weight, grad, cpu.New())
	require.NoError(t, err)

	assert.NotPanics(t, func() { u.SetParam("beta1", "0.9") })
	assert.Panics(t, func() { u.SetParam("momentum", "high") })
}

func TestSGD_ShapeMismatch(t *testing.T) {
	weight, _ := newPair(t, []float32{0, 0}, []float32{0, 0})
	_, grad := newPair(t, []float32{0, 0, 0}, []float32{0, 0, 0})
	_, err := NewSGD(TagWeight, weight, grad, cpu.New())
	assert.Error(t, err)
}

func TestCreateUpdaters_UnknownType(t *testing.T) {
	_, err := New("adagrad", TagWeight, nil, nil, cpu.New())
	assert.Error(t, err)
}
