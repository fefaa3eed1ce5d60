// Package metrics provides per-batch metrics collection.
//
// The Collector accumulates counters during a single batch invocation.
// It is a leaf package with no internal dependencies. All increment
// methods are nil-receiver safe so callers never have to guard an
// optional collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all batch metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Chunk lifecycle
	ChunksSubmitted int64
	ChunksCompleted int64
	ChunksFailed    int64

	// Items
	ItemsIn  int64
	ItemsOut int64

	// Reports
	ReportsMerged int64

	// Workers
	WorkerLaunchSuccess int64
	WorkerLaunchFailure int64
	IPCDecodeErrors     int64

	// Dimensions (informational, set at construction)
	BatchID string
	Fn      string
}

// Collector accumulates metrics during a single batch invocation.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	chunksSubmitted int64
	chunksCompleted int64
	chunksFailed    int64

	itemsIn  int64
	itemsOut int64

	reportsMerged int64

	workerLaunchSuccess int64
	workerLaunchFailure int64
	ipcDecodeErrors     int64

	batchID string
	fn      string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(batchID, fn string) *Collector {
	return &Collector{
		batchID: batchID,
		fn:      fn,
	}
}

// AddChunkSubmitted records a chunk submission carrying n items.
func (c *Collector) AddChunkSubmitted(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksSubmitted++
	c.itemsIn += int64(n)
	c.mu.Unlock()
}

// AddChunkCompleted records a completed chunk yielding n result items.
func (c *Collector) AddChunkCompleted(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksCompleted++
	c.itemsOut += int64(n)
	c.mu.Unlock()
}

// IncChunkFailed records a chunk whose function failed in a worker.
func (c *Collector) IncChunkFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksFailed++
	c.mu.Unlock()
}

// AddReportsMerged records n report entries merged into the batch reporter.
func (c *Collector) AddReportsMerged(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reportsMerged += int64(n)
	c.mu.Unlock()
}

// IncWorkerLaunchSuccess records a successful worker process launch.
func (c *Collector) IncWorkerLaunchSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.workerLaunchSuccess++
	c.mu.Unlock()
}

// IncWorkerLaunchFailure records a failed worker process launch.
func (c *Collector) IncWorkerLaunchFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.workerLaunchFailure++
	c.mu.Unlock()
}

// IncIPCDecodeErrors records an IPC frame decode error.
func (c *Collector) IncIPCDecodeErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ipcDecodeErrors++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all metrics.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ChunksSubmitted: c.chunksSubmitted,
		ChunksCompleted: c.chunksCompleted,
		ChunksFailed:    c.chunksFailed,

		ItemsIn:  c.itemsIn,
		ItemsOut: c.itemsOut,

		ReportsMerged: c.reportsMerged,

		WorkerLaunchSuccess: c.workerLaunchSuccess,
		WorkerLaunchFailure: c.workerLaunchFailure,
		IPCDecodeErrors:     c.ipcDecodeErrors,

		BatchID: c.batchID,
		Fn:      c.fn,
	}
}
