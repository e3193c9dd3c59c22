package data

import (
	"math/rand"
	"strconv"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/strata-ml/strata/internal/tensor"
)

// MemoryIterator serves batches from an in-memory dataset. Examples are
// optionally shuffled each epoch; a trailing partial batch is discarded so
// every batch the consumer sees has the configured size.
type MemoryIterator struct {
	backend tensor.Backend

	examples *tensor.RawTensor // (n, ...) source examples
	labels   []float32

	batchSize int
	shuffle   bool
	seed      int64
	halfStore bool

	rng    *rand.Rand
	order  []int
	cursor int // index of the next batch

	batch  Batch
	inited bool
}

// NewMemoryIterator wraps a dataset held in memory. examples is shaped
// (n, ...); labels has length n or is nil.
func NewMemoryIterator(backend tensor.Backend, examples *tensor.RawTensor, labels []float32) (*MemoryIterator, error) {
	if examples == nil || len(examples.Shape()) < 2 {
		return nil, errors.New("data: examples must be at least 2-D, (n, ...)")
	}
	n := examples.Shape()[0]
	if labels != nil && len(labels) != n {
		return nil, errors.Errorf("data: %d labels for %d examples", len(labels), n)
	}
	return &MemoryIterator{
		backend:   backend,
		examples:  examples,
		labels:    labels,
		batchSize: 1,
		seed:      DefaultRandMagic,
	}, nil
}

// SetParam recognizes batch_size, shuffle, seed and half_store. Unknown
// names are ignored; unparsable values for recognized names panic.
func (it *MemoryIterator) SetParam(name, value string) {
	switch name {
	case "batch_size":
		it.batchSize = parseIntParam(name, value)
	case "shuffle":
		it.shuffle = parseIntParam(name, value) != 0
	case "seed":
		it.seed = int64(parseIntParam(name, value))
	case "half_store":
		it.halfStore = parseIntParam(name, value) != 0
	}
}

// Init validates the configuration and allocates the batch tensor. With
// half_store set the source examples are compacted to half precision and
// widened back per batch.
func (it *MemoryIterator) Init() error {
	n := it.examples.Shape()[0]
	if it.batchSize <= 0 {
		return errors.Errorf("data: batch_size %d must be positive", it.batchSize)
	}
	if it.batchSize > n {
		return errors.Errorf("data: batch_size %d exceeds dataset size %d", it.batchSize, n)
	}

	if it.halfStore && it.examples.DType() == tensor.Float32 {
		it.examples = it.backend.Cast(it.examples, tensor.Float16)
		klog.V(1).Infof("data: compacted %d examples to half precision", n)
	}

	batchShape := it.examples.Shape().WithBatch(it.batchSize)
	data, err := tensor.NewRaw(batchShape, tensor.Float32, it.examples.Device())
	if err != nil {
		return err
	}
	it.batch = Batch{Data: data}
	if it.labels != nil {
		it.batch.Labels = make([]float32, it.batchSize)
	}

	it.rng = rand.New(rand.NewSource(it.seed))
	it.order = make([]int, n)
	for i := range it.order {
		it.order[i] = i
	}
	it.inited = true
	it.BeforeFirst()

	if tail := n % it.batchSize; tail != 0 {
		klog.V(1).Infof("data: dropping %d tail examples per epoch", tail)
	}
	return nil
}

// BeforeFirst rewinds to the start of an epoch.
func (it *MemoryIterator) BeforeFirst() {
	it.mustBeInited()
	it.cursor = 0
	if it.shuffle {
		it.rng.Shuffle(len(it.order), func(i, j int) {
			it.order[i], it.order[j] = it.order[j], it.order[i]
		})
	}
}

// Next loads the next batch, returning false once fewer than batch_size
// examples remain.
func (it *MemoryIterator) Next() bool {
	it.mustBeInited()
	n := it.examples.Shape()[0]
	if it.cursor+it.batchSize > n {
		return false
	}

	for i := 0; i < it.batchSize; i++ {
		src := it.order[it.cursor+i]
		it.loadExample(i, src)
		if it.labels != nil {
			it.batch.Labels[i] = it.labels[src]
		}
	}
	it.cursor += it.batchSize
	return true
}

// Value returns the current batch.
func (it *MemoryIterator) Value() Batch {
	return it.batch
}

// loadExample copies source example src into batch slot i, widening from
// half precision when the store is compacted.
func (it *MemoryIterator) loadExample(i, src int) {
	stride := it.batch.Data.Shape().NumElements() / it.batchSize
	dst := it.batch.Data.AsFloat32()[i*stride : (i+1)*stride]

	switch it.examples.DType() {
	case tensor.Float32:
		copy(dst, it.examples.AsFloat32()[src*stride:(src+1)*stride])
	case tensor.Float16:
		bits := it.examples.AsFloat16Bits()[src*stride : (src+1)*stride]
		tensor.HalfBitsToFloat32(dst, bits)
	case tensor.Float64:
		wide := it.examples.AsFloat64()[src*stride : (src+1)*stride]
		for j, v := range wide {
			dst[j] = float32(v)
		}
	}
}

func (it *MemoryIterator) mustBeInited() {
	if !it.inited {
		panic("data: iterator used before Init")
	}
}

func parseIntParam(name, value string) int {
	v, err := strconv.Atoi(value)
	if err != nil {
		panic(errors.Errorf("invalid value %q for parameter %q", value, name))
	}
	return v
}
