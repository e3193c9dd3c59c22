// Package parallel provides goroutine fan-out helpers for CPU kernels.
package parallel

import (
	"runtime"
	"sync"
)

// minGrain is the smallest amount of work worth handing to a goroutine.
// Below this the scheduling overhead dominates.
const minGrain = 4

// Ranges executes f over disjoint sub-ranges [lo, hi) covering [0, n),
// using up to GOMAXPROCS goroutines. Falls back to a single sequential
// call when n is too small to split.
func Ranges(n int, f func(lo, hi int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers <= 1 || n < minGrain*2 {
		f(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	if chunk < minGrain {
		chunk = minGrain
	}

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			f(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// Planes executes f(plane) for plane in [0, batch*channels), the common
// iteration space of NCHW kernels. Each plane is one (n, c) image.
func Planes(batch, channels int, f func(n, c int)) {
	Ranges(batch*channels, func(lo, hi int) {
		for k := lo; k < hi; k++ {
			f(k/channels, k%channels)
		}
	})
}
