// Package memstore implements an in-memory RecordStore. It is the
// engine's test double and the CLI's zero-config default backend; it
// also supports fault injection so the splitter's retry/rollback state
// machine can be exercised without a real database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rcliao/checkpoint-splitter/internal/model"
)

type key struct {
	threadID string
	recordID string
}

// Store is a concurrency-safe, in-memory RecordStore.
type Store struct {
	mu      sync.Mutex
	records map[key]*model.StoredRecord

	// failures, if non-zero for a given record ID, causes Create to
	// fail that many more times before succeeding. Used by tests to
	// exercise the splitter's retry and rollback paths.
	failures map[string]int
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		records:  make(map[key]*model.StoredRecord),
		failures: make(map[string]int),
	}
}

// FailCreate arranges for the next n calls to Create targeting
// recordID to return an error before the record is actually stored.
func (s *Store) FailCreate(recordID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[recordID] = n
}

func (s *Store) Get(ctx context.Context, threadID, recordID string) (*model.StoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key{threadID, recordID}]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (s *Store) Create(ctx context.Context, record *model.StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.failures[record.RecordID]; n > 0 {
		s.failures[record.RecordID] = n - 1
		return fmt.Errorf("memstore: injected failure for %s (%d remaining)", record.RecordID, n-1)
	}

	clone := *record
	s.records[key{record.ThreadID, record.RecordID}] = &clone
	return nil
}

func (s *Store) Delete(ctx context.Context, threadID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key{threadID, recordID})
	return nil
}

func (s *Store) QueryByThread(ctx context.Context, threadID, keyPrefix string) ([]*model.StoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.StoredRecord
	for k, rec := range s.records {
		if k.threadID != threadID {
			continue
		}
		if keyPrefix != "" && !hasPrefix(k.recordID, keyPrefix) {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Len reports the total number of records currently stored across all
// threads. Test helper.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
