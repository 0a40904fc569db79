package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/matrixor/tsg-officer/state"
)

// MemoryStore is a volatile Store for tests and local runs. Snapshots do not
// survive process restart; Durable reports false so callers can warn.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, caseID string) (*state.CaseState, error) {
	s.mu.RLock()
	data, ok := s.records[caseID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint %s: %w", caseID, err)
	}
	return record.State, nil
}

// Save implements Store. The snapshot is serialized on write so later
// mutation of the caller's state cannot corrupt the stored copy, matching
// durable-store semantics.
func (s *MemoryStore) Save(_ context.Context, cs *state.CaseState) error {
	data, err := json.Marshal(NewRecord(cs))
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	s.mu.Lock()
	s.records[cs.CaseID] = data
	s.mu.Unlock()
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Durable implements Store.
func (s *MemoryStore) Durable() bool { return false }
