package tensor

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/cpu"
)

// Device owns the process-wide resources primitives share: the
// fork-join worker pool and the exp lookup cache backing SiLU.
// Grounded in the teacher's numWorkers/sync.WaitGroup/goroutine-chunk
// pattern (quant.go), generalized into one reusable fan-out helper.
type Device struct {
	Workers int

	expCache sync.Map // uint16 -> float32
}

// NewDevice returns a device context sized to the host's CPU count.
func NewDevice() *Device {
	return &Device{Workers: runtime.NumCPU()}
}

// LaneWidth reports the SIMD lane width the kernels are written
// against. The reference shape is 8 lanes (four sub-groups of 8 within
// each 32-element block); this is informational only — the portable
// Go loops below always process in that shape regardless of what the
// host actually supports, so nothing forks on the detection below
// (see spec's "SIMD lane width" design note).
func (d *Device) LaneWidth() int {
	return 8
}

// HasWideSIMD reports whether the host exposes AVX2 (amd64) or NEON
// (arm64) — used only for the informational startup log line in
// cmd/tensorbench, grounded in go-highway's per-arch dispatch tables
// (ops_avx2.go, ops_neon.go) without importing its assembly kernels.
func (d *Device) HasWideSIMD() bool {
	return cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD
}

// minParallelRows is the minimum number of items per worker: below
// minParallelRows*Workers items, a primitive runs single-threaded
// because per-task overhead would dominate the work.
const minParallelRows = 4

// Parallelize forks fn across [0, n) in roughly Workers equal chunks,
// blocking until every chunk completes. Below minParallelRows*Workers
// items it runs fn inline on the whole range. This is the fork-join
// primitive every row-parallel and flat-iteration-parallel kernel in
// this package reuses.
func (d *Device) Parallelize(n int, fn func(start, end int)) {
	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	if n < workers*minParallelRows {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeErr is Parallelize's error-propagating sibling, used by
// validating fan-outs (e.g. internal/loader's per-entry bounds and
// block-alignment check) where a per-chunk failure must surface instead of
// vanishing into a forgotten goroutine.
func (d *Device) ParallelizeErr(n int, fn func(start, end int) error) error {
	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	if n < workers*minParallelRows {
		return fn(0, n)
	}

	var g errgroup.Group
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		s, e := start, end
		g.Go(func() error { return fn(s, e) })
	}
	return g.Wait()
}

// expCacheKey16 truncates a float32 to the bit pattern of its nearest
// float16 representation — the cache's lookup key (spec §9 "Exp
// cache").
func expCacheKey16(x float32) uint16 {
	return float2half(x)
}

// expCached returns exp(x), populating the process-wide cache on a
// miss. Concurrent duplicate fills are harmless and expected — no
// locking beyond sync.Map's own.
func (d *Device) expCached(x float32) float32 {
	key := expCacheKey16(x)
	if v, ok := d.expCache.Load(key); ok {
		return v.(float32)
	}
	v := expf(x)
	d.expCache.Store(key, v)
	return v
}
