// Copyright 2026 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ps exposes the parameter aggregation service boundary and the
// in-process implementation used for tests and single-node training.
package ps

import (
	"github.com/strata-ml/strata/internal/ps"
	"github.com/strata-ml/strata/internal/tensor"
)

// Client is the transport surface async updaters talk to.
type Client = ps.Client

// ApplyFunc is the server-side update rule.
type ApplyFunc = ps.ApplyFunc

// Config configures a LocalServer.
type Config = ps.Config

// LocalServer is an in-process aggregation service: gradients pushed to a
// key are averaged over the configured worker count and applied to the
// server's copy of the weight.
type LocalServer = ps.LocalServer

// NewLocalServer creates an in-process aggregation service.
//
// Example:
//
//	srv := ps.NewLocalServer(backend, ps.Config{
//	    Workers: 2,
//	    Apply:   ps.SGDApply(backend, 0.05),
//	})
func NewLocalServer(backend tensor.Backend, cfg Config) *LocalServer {
	return ps.NewLocalServer(backend, cfg)
}

// SGDApply returns the plain gradient-descent server rule.
func SGDApply(backend tensor.Backend, lr float64) ApplyFunc {
	return ps.SGDApply(backend, lr)
}
