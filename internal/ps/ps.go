// Package ps defines the boundary to the parameter aggregation service:
// an opaque key/value store that accepts gradients and hands back updated
// weights. The service is addressed by the integer keys produced by the
// updater package's key codec.
package ps

import (
	"fmt"
	"sync"

	"k8s.io/klog/v2"

	"github.com/strata-ml/strata/internal/tensor"
)

// Client is the transport surface the async updaters talk to. All methods
// address one weight by key; the key must have been registered with InitKey
// before any Push or PullWait.
//
// Push hands a gradient to the service and may block until the service has
// accepted it; PullWait blocks until the update triggered by the caller's
// last Push is visible and copies the resulting weight into dst. Callers
// that want overlap run Push/PullWait on their own goroutine.
type Client interface {
	InitKey(key int, weight *tensor.RawTensor)
	Push(key int, grad *tensor.RawTensor)
	PullWait(key int, dst *tensor.RawTensor)
}

// ApplyFunc is the server-side update rule: it mutates weight in place
// using the aggregated gradient. epoch counts applied updates for this key.
type ApplyFunc func(key int, weight, grad *tensor.RawTensor, epoch int64)

// SGDApply returns the plain gradient-descent server rule
// weight -= lr * grad.
func SGDApply(backend tensor.Backend, lr float64) ApplyFunc {
	return func(key int, weight, grad *tensor.RawTensor, epoch int64) {
		backend.Axpy(weight, -lr, grad)
	}
}

// Config configures a LocalServer.
type Config struct {
	// Workers is the number of pushes aggregated (averaged) into one
	// update. Zero means one.
	Workers int
	// Apply is the server-side update rule. Required.
	Apply ApplyFunc
}

// LocalServer is an in-process implementation of Client: gradients pushed
// to a key are averaged over Workers pushes and applied to the server's
// copy of the weight. It stands in for a distributed aggregation service
// in tests and single-node training.
type LocalServer struct {
	backend tensor.Backend
	apply   ApplyFunc
	workers int

	mu      sync.Mutex
	entries map[int]*entry
}

type entry struct {
	mu      sync.Mutex
	cond    *sync.Cond
	weight  *tensor.RawTensor
	accum   *tensor.RawTensor
	pending int   // pushes accumulated since the last apply
	epoch   int64 // updates applied
}

// NewLocalServer creates an in-process aggregation service.
func NewLocalServer(backend tensor.Backend, cfg Config) *LocalServer {
	if cfg.Apply == nil {
		panic("ps: Config.Apply is required")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &LocalServer{
		backend: backend,
		apply:   cfg.Apply,
		workers: workers,
		entries: make(map[int]*entry),
	}
}

// InitKey registers a key with its initial weight. The first registration
// wins; later calls for the same key are ignored so that multiple workers
// can race to initialize.
func (s *LocalServer) InitKey(key int, weight *tensor.RawTensor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return
	}

	e := &entry{
		weight: tensor.MustNewRaw(weight.Shape(), weight.DType(), weight.Device()),
		accum:  tensor.MustNewRaw(weight.Shape(), weight.DType(), weight.Device()),
	}
	e.cond = sync.NewCond(&e.mu)
	s.backend.Copy(e.weight, weight)
	s.entries[key] = e
	klog.V(1).Infof("ps: registered key %d shape %v", key, weight.Shape())
}

// Push accumulates one gradient for key. When Workers pushes have arrived
// the average is applied to the server weight and waiting pulls are woken.
func (s *LocalServer) Push(key int, grad *tensor.RawTensor) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	s.backend.Axpy(e.accum, 1, grad)
	e.pending++
	if e.pending < s.workers {
		return
	}

	if s.workers > 1 {
		s.backend.Scale(e.accum, 1/float64(s.workers))
	}
	s.apply(key, e.weight, e.accum, e.epoch)
	s.backend.Fill(e.accum, 0)
	e.pending = 0
	e.epoch++
	e.cond.Broadcast()
}

// PullWait blocks until no partial aggregation is outstanding for key,
// then copies the current server weight into dst.
func (s *LocalServer) PullWait(key int, dst *tensor.RawTensor) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.pending != 0 {
		e.cond.Wait()
	}
	s.backend.Copy(dst, e.weight)
}

// Epoch returns the number of updates applied to key so far.
func (s *LocalServer) Epoch(key int) int64 {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

func (s *LocalServer) entry(key int) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		panic(fmt.Sprintf("ps: key %d used before InitKey", key))
	}
	return e
}
