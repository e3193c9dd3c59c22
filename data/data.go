// Copyright 2026 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package data exposes batch iterators over training data.
package data

import (
	"github.com/strata-ml/strata/internal/data"
	"github.com/strata-ml/strata/internal/tensor"
)

// DefaultRandMagic seeds iterator shuffling when no seed is chosen.
const DefaultRandMagic = data.DefaultRandMagic

// Batch is one mini-batch of examples.
type Batch = data.Batch

// Iterator produces batches of a fixed size.
type Iterator = data.Iterator

// MemoryIterator serves batches from an in-memory dataset.
type MemoryIterator = data.MemoryIterator

// NewMemoryIterator wraps a dataset held in memory. examples is shaped
// (n, ...); labels has length n or is nil.
func NewMemoryIterator(backend tensor.Backend, examples *tensor.RawTensor, labels []float32) (*MemoryIterator, error) {
	return data.NewMemoryIterator(backend, examples, labels)
}

// ReadIDXImages reads an IDX image file into a (n, 1, rows, cols) tensor
// with pixels normalized to [0, 1].
func ReadIDXImages(filename string) (*tensor.RawTensor, error) {
	return data.ReadIDXImages(filename)
}

// ReadIDXLabels reads an IDX label file.
func ReadIDXLabels(filename string) ([]float32, error) {
	return data.ReadIDXLabels(filename)
}

// OpenIDX loads an image/label file pair as a shuffle-ready iterator.
func OpenIDX(backend tensor.Backend, imageFile, labelFile string) (*MemoryIterator, error) {
	return data.OpenIDX(backend, imageFile, labelFile)
}
