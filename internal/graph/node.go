// Package graph defines the computation-graph building blocks: nodes,
// per-layer scratch state, the layer execution contract and the concrete
// layers built on it.
package graph

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// Node is a named slot at a graph edge holding one tensor. The same slot
// carries the activation during Forward and is overwritten with its gradient
// during Backprop; it is shared by the two layers adjacent to the edge and
// lives as long as the graph.
type Node struct {
	Name string
	Data *tensor.RawTensor
}

// NewNode creates an empty node. The tensor is allocated later, by the
// producing layer's InitConnection or by the driver for graph inputs.
func NewNode(name string) *Node {
	return &Node{Name: name}
}

// MustData returns the node's tensor, panicking if it was never allocated.
func (n *Node) MustData() *tensor.RawTensor {
	if n.Data == nil {
		panic(fmt.Sprintf("graph: node %q has no tensor allocated", n.Name))
	}
	return n.Data
}

// ConnectState is the scratch storage owned by exactly one layer instance:
// an ordered sequence of auxiliary tensors whose shapes depend on the
// negotiated input/output shapes. It is resized on connection and on batch
// size changes and never shared between layers.
type ConnectState struct {
	States []*tensor.RawTensor
}

// SetSlots fixes the number of scratch slots, dropping any extras.
func (s *ConnectState) SetSlots(n int) {
	if cap(s.States) < n {
		states := make([]*tensor.RawTensor, n)
		copy(states, s.States)
		s.States = states
		return
	}
	s.States = s.States[:n]
}

// Resize (re)allocates slot i to the given shape, keeping the existing
// tensor when the shape already matches.
func (s *ConnectState) Resize(i int, shape tensor.Shape, dtype tensor.DataType, device tensor.Device) {
	if i < 0 || i >= len(s.States) {
		panic(fmt.Sprintf("graph: scratch slot %d out of range (have %d)", i, len(s.States)))
	}
	cur := s.States[i]
	if cur != nil && cur.Shape().Equal(shape) && cur.DType() == dtype {
		return
	}
	s.States[i] = tensor.MustNewRaw(shape, dtype, device)
}
