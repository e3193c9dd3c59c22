// Package data feeds training with fixed-size batches. Iterators follow
// the cursor pattern: BeforeFirst rewinds, Next advances and reports
// whether a batch is available, Value returns the current batch.
package data

import "github.com/strata-ml/strata/internal/tensor"

// DefaultRandMagic seeds iterator shuffling when the caller does not pick
// a seed, so runs are reproducible by default.
const DefaultRandMagic = 127

// Batch is one mini-batch of examples. Data is shaped (batch, ...); Labels
// is shaped (batch) and may be nil for unlabeled iteration.
type Batch struct {
	Data   *tensor.RawTensor
	Labels []float32
}

// Iterator produces batches of a fixed size. A full pass runs
// BeforeFirst once and Next until it returns false.
type Iterator interface {
	// SetParam applies one string-keyed configuration pair before Init.
	// Unknown names are ignored.
	SetParam(name, value string)
	// Init finalizes configuration. Called once.
	Init() error
	// BeforeFirst rewinds to the start of an epoch, reshuffling when
	// shuffling is enabled.
	BeforeFirst()
	// Next advances to the next batch, returning false at end of epoch.
	Next() bool
	// Value returns the current batch. Valid until the next call to Next
	// or BeforeFirst; the tensor is reused across batches.
	Value() Batch
}
