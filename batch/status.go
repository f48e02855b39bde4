package batch

import (
	"context"
	"sync"
	"time"
)

// Status is the lifecycle state of a batch job.
type Status string

// Job statuses.
const (
	StatusQueued    Status = "queued"
	StatusRendering Status = "rendering"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// Record is the last status stored for a job.
type Record struct {
	Status  Status
	Detail  string
	Updated time.Time
}

// StatusStore persists job status transitions.
type StatusStore interface {
	SetStatus(ctx context.Context, jobID string, status Status, detail string) error
}

// MemoryStore is an in-process StatusStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) SetStatus(_ context.Context, jobID string, status Status, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[jobID] = Record{Status: status, Detail: detail, Updated: time.Now()}

	return nil
}

// Get returns the record for jobID.
func (m *MemoryStore) Get(jobID string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[jobID]

	return r, ok
}

// Len returns the number of jobs tracked.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}
