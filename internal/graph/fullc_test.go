package graph

import (
	"math/rand"
	"testing"

	"github.com/strata-ml/strata/internal/backend/cpu"
	"github.com/strata-ml/strata/internal/tensor"
)

func connectFullc(t *testing.T, in *Node, numHidden string) (*FullcLayer, *Node, *ConnectState) {
	t.Helper()
	layer := NewFullcLayer(cpu.New())
	layer.SetParam("num_hidden", numHidden)
	out := NewNode("out")
	state := &ConnectState{}
	if err := layer.InitConnection([]*Node{in}, []*Node{out}, state); err != nil {
		t.Fatalf("InitConnection failed: %v", err)
	}
	return layer, out, state
}

func TestFullc_InitConnection(t *testing.T) {
	in := newInputNode(t, tensor.Shape{4, 2, 3, 3}, nil)
	_, out, _ := connectFullc(t, in, "5")

	// Input flattens to (4, 18).
	if !out.MustData().Shape().Equal(tensor.Shape{4, 5}) {
		t.Errorf("output shape: got %v", out.MustData().Shape())
	}
}

func TestFullc_MissingNumHidden(t *testing.T) {
	in := newInputNode(t, tensor.Shape{2, 3}, nil)
	layer := NewFullcLayer(cpu.New())
	if err := layer.InitConnection([]*Node{in}, []*Node{NewNode("out")}, &ConnectState{}); err == nil {
		t.Error("expected error for unset num_hidden")
	}
}

func TestFullc_ForwardBackward(t *testing.T) {
	in := newInputNode(t, tensor.Shape{2, 3}, []float32{1, 0, 2, 0, 1, 1})
	layer, out, state := connectFullc(t, in, "2")

	// Deterministic parameters.
	copy(layer.weight.AsFloat32(), []float32{1, 2, 3, 4, 5, 6}) // (2, 3)
	copy(layer.bias.AsFloat32(), []float32{0.5, -0.5})

	ins, outs := []*Node{in}, []*Node{out}
	layer.Forward(true, ins, outs, state)

	// out = in @ W^T + bias
	expectedOut := []float32{
		1*1 + 0*2 + 2*3 + 0.5, 1*4 + 0*5 + 2*6 - 0.5,
		0*1 + 1*2 + 1*3 + 0.5, 0*4 + 1*5 + 1*6 - 0.5,
	}
	for i, v := range out.MustData().AsFloat32() {
		if v != expectedOut[i] {
			t.Errorf("forward %d: expected %f, got %f", i, expectedOut[i], v)
		}
	}

	// Backward with a known upstream gradient.
	copy(out.MustData().AsFloat32(), []float32{1, 2, 3, 4})
	layer.Backprop(true, ins, outs, state)

	// wgrad = outGrad^T @ in
	expectedWGrad := []float32{
		1*1 + 3*0, 1*0 + 3*1, 1*2 + 3*1,
		2*1 + 4*0, 2*0 + 4*1, 2*2 + 4*1,
	}
	for i, v := range layer.wgrad.AsFloat32() {
		if v != expectedWGrad[i] {
			t.Errorf("wgrad %d: expected %f, got %f", i, expectedWGrad[i], v)
		}
	}

	// bgrad = column sums of outGrad
	expectedBGrad := []float32{4, 6}
	for i, v := range layer.bgrad.AsFloat32() {
		if v != expectedBGrad[i] {
			t.Errorf("bgrad %d: expected %f, got %f", i, expectedBGrad[i], v)
		}
	}

	// input gradient = outGrad @ W
	expectedInGrad := []float32{
		1*1 + 2*4, 1*2 + 2*5, 1*3 + 2*6,
		3*1 + 4*4, 3*2 + 4*5, 3*3 + 4*6,
	}
	for i, v := range in.MustData().AsFloat32() {
		if v != expectedInGrad[i] {
			t.Errorf("input gradient %d: expected %f, got %f", i, expectedInGrad[i], v)
		}
	}
}

func TestFullc_GradientsAccumulate(t *testing.T) {
	in := newInputNode(t, tensor.Shape{1, 2}, []float32{1, 1})
	layer, out, state := connectFullc(t, in, "1")
	copy(layer.weight.AsFloat32(), []float32{1, 1})

	ins, outs := []*Node{in}, []*Node{out}
	for i := 0; i < 3; i++ {
		copy(in.MustData().AsFloat32(), []float32{1, 1})
		layer.Forward(true, ins, outs, state)
		copy(out.MustData().AsFloat32(), []float32{1})
		layer.Backprop(true, ins, outs, state)
	}

	// Three identical passes triple the gradient; the updater owns zeroing.
	for i, v := range layer.wgrad.AsFloat32() {
		if v != 3 {
			t.Errorf("wgrad %d after 3 passes: expected 3, got %f", i, v)
		}
	}
	if layer.bgrad.AsFloat32()[0] != 3 {
		t.Errorf("bgrad after 3 passes: expected 3, got %f", layer.bgrad.AsFloat32()[0])
	}
}

func TestFullc_ApplyVisitor(t *testing.T) {
	in := newInputNode(t, tensor.Shape{2, 3}, nil)
	layer, _, _ := connectFullc(t, in, "4")

	visited := map[string]tensor.Shape{}
	layer.ApplyVisitor(visitorFunc(func(tag string, weight, grad *tensor.RawTensor) {
		if !weight.Shape().Equal(grad.Shape()) {
			t.Errorf("tag %s: weight/grad shape mismatch %v vs %v", tag, weight.Shape(), grad.Shape())
		}
		visited[tag] = weight.Shape()
	}))

	if !visited[TagWeight].Equal(tensor.Shape{4, 3}) {
		t.Errorf("wmat shape: got %v", visited[TagWeight])
	}
	// Bias arrives flattened to 2-D.
	if !visited[TagBias].Equal(tensor.Shape{1, 4}) {
		t.Errorf("bias shape: got %v", visited[TagBias])
	}
}

func TestFullc_InitParamsDeterministic(t *testing.T) {
	in := newInputNode(t, tensor.Shape{2, 3}, nil)
	layerA, _, _ := connectFullc(t, in, "4")
	layerB, _, _ := connectFullc(t, in, "4")

	layerA.InitParams(rand.New(rand.NewSource(127)))
	layerB.InitParams(rand.New(rand.NewSource(127)))

	a, b := layerA.weight.AsFloat32(), layerB.weight.AsFloat32()
	var nonZero bool
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("weights differ at %d under the same seed", i)
		}
		if a[i] != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("weights all zero after init")
	}
}

// visitorFunc adapts a function to the Visitor interface.
type visitorFunc func(tag string, weight, grad *tensor.RawTensor)

func (f visitorFunc) Visit(tag string, weight, grad *tensor.RawTensor) {
	f(tag, weight, grad)
}
