// Copyright 2026 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/strata-ml/strata/internal/tensor"

// Backend is the compute interface layers and updaters run on.
//
// Implementations:
//   - backend/cpu: pure Go, parallelized across tensor planes
//   - backend/cuda: NVIDIA GPU (planned)
//
// Example:
//
//	import (
//	    "github.com/strata-ml/strata/backend/cpu"
//	    "github.com/strata-ml/strata/tensor"
//	)
//
//	backend := cpu.New()
//	x := tensor.MustNewRaw(tensor.Shape{2, 3}, tensor.Float32, backend.Device())
//	backend.Fill(x, 1)
type Backend = tensor.Backend
