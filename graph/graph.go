// Copyright 2026 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph exposes the layer abstraction and the built-in layers.
//
// A layer is configured with SetParam, connected once with
// InitConnection, and then driven with Forward/Backprop per batch:
//
//	pool := graph.NewPoolingLayer(graph.MaxPooling, backend)
//	pool.SetParam("kernel_size", "2")
//	pool.SetParam("stride", "2")
//	err := pool.InitConnection(in, out, state)
package graph

import (
	"github.com/strata-ml/strata/internal/graph"
	"github.com/strata-ml/strata/tensor"
)

// Node is a named tensor slot between layers. During backprop its
// activation is overwritten with the gradient in place.
type Node = graph.Node

// NewNode creates a node without a tensor; InitConnection allocates it.
func NewNode(name string) *Node {
	return graph.NewNode(name)
}

// ConnectState holds a layer's per-connection scratch tensors.
type ConnectState = graph.ConnectState

// Layer is the polymorphic unit of the computation graph.
type Layer = graph.Layer

// ParamLayer is implemented by layers carrying learnable parameters.
type ParamLayer = graph.ParamLayer

// Visitor walks weight/gradient pairs without exposing their storage.
type Visitor = graph.Visitor

// LayerParam is the configuration block shared by the built-in layers.
type LayerParam = graph.LayerParam

// PoolKind selects the reduction of a pooling layer.
type PoolKind = graph.PoolKind

// Pooling modes.
const (
	MaxPooling = graph.MaxPooling
	SumPooling = graph.SumPooling
	AvgPooling = graph.AvgPooling
)

// Weight-role tags reported through ApplyVisitor.
const (
	TagWeight = graph.TagWeight
	TagBias   = graph.TagBias
)

// PoolingLayer reduces spatial windows of a (batch, channel, height,
// width) input.
type PoolingLayer = graph.PoolingLayer

// NewPoolingLayer creates a pooling layer of the given kind.
func NewPoolingLayer(kind PoolKind, backend tensor.Backend) *PoolingLayer {
	return graph.NewPoolingLayer(kind, backend)
}

// FullcLayer is a fully connected layer: out = flatten(in) @ W^T + bias.
type FullcLayer = graph.FullcLayer

// NewFullcLayer creates a fully connected layer; the hidden width comes
// from SetParam("num_hidden", ...).
func NewFullcLayer(backend tensor.Backend) *FullcLayer {
	return graph.NewFullcLayer(backend)
}

// ReLULayer is the rectified linear activation.
type ReLULayer = graph.ReLULayer

// NewReLULayer creates a ReLU activation layer.
func NewReLULayer(backend tensor.Backend) *ReLULayer {
	return graph.NewReLULayer(backend)
}
