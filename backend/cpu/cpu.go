// Copyright 2026 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go compute backend.
package cpu

import (
	internalcpu "github.com/strata-ml/strata/internal/backend/cpu"
	"github.com/strata-ml/strata/tensor"
)

// Backend is the CPU backend: pure Go kernels parallelized across tensor
// planes.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.MustNewRaw(tensor.Shape{2, 3}, tensor.Float32, backend.Device())
func New() *Backend {
	return internalcpu.New()
}
