// Copyright 2026 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package updater exposes weight updaters: synchronous rules applied in
// the caller's goroutine and asynchronous exchanges with a parameter
// service.
package updater

import (
	"github.com/strata-ml/strata/internal/graph"
	"github.com/strata-ml/strata/internal/ps"
	"github.com/strata-ml/strata/internal/tensor"
	"github.com/strata-ml/strata/internal/updater"
)

// Common is the surface shared by every updater.
type Common = updater.Common

// Updater applies gradients synchronously.
type Updater = updater.Updater

// AsyncUpdater runs updates as background exchanges with a parameter
// service, driven through the training-step hooks.
type AsyncUpdater = updater.AsyncUpdater

// SGDUpdater is stochastic gradient descent with optional momentum,
// weight decay and learning-rate decay.
type SGDUpdater = updater.SGDUpdater

// PSUpdater exchanges gradients with a parameter service in the
// background.
type PSUpdater = updater.PSUpdater

// KeyCodec derives parameter-service keys from layer index and weight
// tag.
type KeyCodec = updater.KeyCodec

// DefaultDataKeyStep is the default per-layer key block size.
const DefaultDataKeyStep = updater.DefaultDataKeyStep

// NewKeyCodec returns a codec with the given block size, or the default
// when step is zero.
func NewKeyCodec(step int) (KeyCodec, error) {
	return updater.NewKeyCodec(step)
}

// New creates a synchronous updater of the named type ("sgd").
func New(typ string, tag string, weight, grad *tensor.RawTensor, backend tensor.Backend) (Updater, error) {
	return updater.New(typ, tag, weight, grad, backend)
}

// CreateUpdaters builds one synchronous updater per trainable tensor of
// layer.
func CreateUpdaters(typ string, layer graph.Layer, backend tensor.Backend) ([]Updater, error) {
	return updater.CreateUpdaters(typ, layer, backend)
}

// CreateAsyncUpdaters builds one parameter-service updater per trainable
// tensor of layer, keyed per layerIndex by codec.
func CreateAsyncUpdaters(layerIndex int, codec KeyCodec, layer graph.Layer, backend tensor.Backend, client ps.Client) ([]AsyncUpdater, error) {
	return updater.CreateAsyncUpdaters(layerIndex, codec, layer, backend, client)
}
