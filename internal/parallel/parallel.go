// Package parallel splits index ranges across goroutines for the CPU
// kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how work is split.
type Config struct {
	Workers  int // Goroutines to use; 1 or less runs inline.
	MinChunk int // Smallest number of indices handed to one goroutine.
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.NumCPU(),
		MinChunk: 16,
	}
}

// Sequential runs everything on the calling goroutine.
func Sequential() Config {
	return Config{Workers: 1}
}

// Range calls f(lo, hi) on disjoint chunks covering [0, n) and returns
// when all have finished. Every index is visited exactly once, so f may
// write to per-index output without locking.
func Range(n int, cfg Config, f func(lo, hi int)) {
	if n <= 0 {
		return
	}
	chunk := max(cfg.MinChunk, 1)
	if cfg.Workers > 1 {
		chunk = max(chunk, (n+cfg.Workers-1)/cfg.Workers)
	}
	if cfg.Workers <= 1 || chunk >= n {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(lo, hi)
		}()
	}
	wg.Wait()
}
