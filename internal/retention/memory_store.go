package retention

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps retention records in process memory for single-instance mode.
// Params: in-memory record map with per-key revisions.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	record   Record
	revision uint64
}

// NewMemoryStore creates in-memory retention store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

// Get returns record payload and revision.
// Params: notifier key.
// Returns: stored record, revision, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) (Record, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.records[key]
	if !ok {
		return Record{}, 0, ErrNotFound
	}
	return entry.record.clone(), entry.revision, nil
}

// Put writes record payload unconditionally.
// Params: notifier key and record payload.
// Returns: new revision.
func (s *MemoryStore) Put(_ context.Context, key string, record Record) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev := s.records[key].revision + 1
	s.records[key] = memoryRecord{record: record.clone(), revision: rev}
	return rev, nil
}

// Update replaces record payload using expected revision CAS.
// Params: notifier key, expected revision, and replacement payload.
// Returns: new revision, ErrNotFound, or ErrConflict.
func (s *MemoryStore) Update(_ context.Context, key string, expectedRevision uint64, record Record) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.records[key]
	if !ok {
		return 0, ErrNotFound
	}
	if entry.revision != expectedRevision {
		return 0, ErrConflict
	}
	rev := expectedRevision + 1
	s.records[key] = memoryRecord{record: record.clone(), revision: rev}
	return rev, nil
}

// Delete removes record.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Keys lists stored keys in lexical order.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}
