package storage

import "sync/atomic"

// TransactionManager is the engine's monotonic timestamp source. The WAL and
// backup snapshots share this clock, which is what makes "before snapshot"
// well defined across both.
type TransactionManager struct {
	ts atomic.Uint64
}

// NewTransactionManager creates a transaction manager starting at timestamp 0.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// CurrentTimestamp returns the current timestamp.
func (tm *TransactionManager) CurrentTimestamp() uint64 {
	return tm.ts.Load()
}

// Advance moves the clock forward one tick and returns the new timestamp.
// Called on every commit.
func (tm *TransactionManager) Advance() uint64 {
	return tm.ts.Add(1)
}
