// Package memory keeps the run ledger in memory.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// RunStore is an in-memory ledger. Records are kept in arrival order.
type RunStore struct {
	mu   sync.RWMutex
	runs []ingest.RunRecord
	byID map[string]int
}

// NewRunStore creates an empty ledger.
func NewRunStore() *RunStore {
	return &RunStore{byID: make(map[string]int)}
}

// RecordRun stores run, replacing an earlier record with the same id.
func (s *RunStore) RecordRun(_ context.Context, run ingest.RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byID[run.ID]; ok {
		s.runs[i] = run
		return nil
	}
	s.byID[run.ID] = len(s.runs)
	s.runs = append(s.runs, run)
	return nil
}

// Runs returns a copy of every recorded run.
func (s *RunStore) Runs() []ingest.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ingest.RunRecord(nil), s.runs...)
}

// Last returns the most recently added run.
func (s *RunStore) Last() (ingest.RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return ingest.RunRecord{}, false
	}
	return s.runs[len(s.runs)-1], true
}
