package types

import "errors"

// BatchMeta identifies one batch invocation. A fresh BatchMeta is
// created per invocation; there is no reuse across runs.
type BatchMeta struct {
	// BatchID is the unique identifier for this invocation.
	BatchID string
	// Fn is the registered name of the batch function.
	Fn string
	// Workers is the worker process count.
	Workers int
	// ChunkSize is the configured chunk size.
	ChunkSize int
}

// Validate checks batch metadata invariants.
func (m *BatchMeta) Validate() error {
	if m == nil {
		return errors.New("batch metadata is nil")
	}
	if m.BatchID == "" {
		return errors.New("batch_id is required")
	}
	if m.Fn == "" {
		return errors.New("fn is required")
	}
	if m.Workers < 1 {
		return errors.New("workers must be >= 1")
	}
	if m.ChunkSize < 1 {
		return errors.New("chunk_size must be >= 1")
	}
	return nil
}
