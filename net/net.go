// Copyright 2026 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package net exposes the training driver for feed-forward layer stacks.
//
// Example:
//
//	backend := cpu.New()
//	hidden := graph.NewFullcLayer(backend)
//	hidden.SetParam("num_hidden", "128")
//	head := graph.NewFullcLayer(backend)
//	head.SetParam("num_hidden", "10")
//
//	n := net.New(backend, hidden, graph.NewReLULayer(backend), head)
//	if err := n.InitModel(tensor.Shape{32, 1, 28, 28}, tensor.Float32); err != nil {
//	    log.Fatal(err)
//	}
package net

import (
	"github.com/strata-ml/strata/internal/graph"
	"github.com/strata-ml/strata/internal/net"
	"github.com/strata-ml/strata/internal/tensor"
)

// Net drives a feed-forward stack through training and inference.
type Net = net.Net

// New creates a driver over the given layer stack.
func New(backend tensor.Backend, layers ...graph.Layer) *Net {
	return net.New(backend, layers...)
}
