// Package pebblestore implements recordstore.RecordStore on top of a
// CockroachDB Pebble LSM, grounded in progressdb's
// server/pkg/store/pebble.go: a single *pebble.DB handle opened with
// pebble.Open, db.Set with pebble.Sync for durable writes, and
// db.NewIter prefix scans for range queries.
package pebblestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/rcliao/checkpoint-splitter/internal/model"
)

// Store implements recordstore.RecordStore using an embedded Pebble
// instance.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the Pebble handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// dbRecord is the on-disk encoding of a model.StoredRecord. Pebble has
// no schema, so each value is a single JSON document; the already
// canonical-serialized Checkpoint/Metadata bytes are nested as
// base64-ish raw JSON strings via encoding/json's native []byte
// support.
type dbRecord struct {
	Checkpoint       []byte                   `json:"checkpoint,omitempty"`
	Metadata         []byte                   `json:"metadata,omitempty"`
	IsSplit          bool                     `json:"isSplit"`
	SplitMetadata    *model.SplitMetadata     `json:"splitMetadata,omitempty"`
	MessageSplitData *model.MessageSplitData  `json:"messageSplitData,omitempty"`
	ContentSplitData *model.ContentSplitData  `json:"contentSplitData,omitempty"`
}

func recordKey(threadID, recordID string) []byte {
	return []byte(fmt.Sprintf("thread:%s:record:%s", threadID, recordID))
}

// threadPrefix returns the key-space prefix common to every record
// under threadID, optionally narrowed further by recordPrefix.
func threadPrefix(threadID, recordPrefix string) []byte {
	return []byte(fmt.Sprintf("thread:%s:record:%s", threadID, recordPrefix))
}

func (s *Store) Get(ctx context.Context, threadID, recordID string) (*model.StoredRecord, error) {
	v, closer, err := s.db.Get(recordKey(threadID, recordID))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var dr dbRecord
	if err := json.Unmarshal(v, &dr); err != nil {
		return nil, fmt.Errorf("decode record %s/%s: %w", threadID, recordID, err)
	}
	return toStoredRecord(threadID, recordID, dr), nil
}

func (s *Store) Create(ctx context.Context, record *model.StoredRecord) error {
	dr := dbRecord{
		Checkpoint:       record.Checkpoint,
		Metadata:         record.Metadata,
		IsSplit:          record.IsSplit,
		SplitMetadata:    record.SplitMetadata,
		MessageSplitData: record.MessageSplitData,
		ContentSplitData: record.ContentSplitData,
	}
	b, err := json.Marshal(dr)
	if err != nil {
		return fmt.Errorf("encode record %s/%s: %w", record.ThreadID, record.RecordID, err)
	}
	return s.db.Set(recordKey(record.ThreadID, record.RecordID), b, pebble.Sync)
}

func (s *Store) Delete(ctx context.Context, threadID, recordID string) error {
	return s.db.Delete(recordKey(threadID, recordID), pebble.Sync)
}

func (s *Store) QueryByThread(ctx context.Context, threadID, keyPrefix string) ([]*model.StoredRecord, error) {
	lower := threadPrefix(threadID, keyPrefix)
	upper := append(append([]byte{}, lower...), 0xff)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	recordPrefix := fmt.Sprintf("thread:%s:record:", threadID)
	var out []*model.StoredRecord
	for iter.First(); iter.Valid(); iter.Next() {
		recordID := bytes.TrimPrefix(iter.Key(), []byte(recordPrefix))

		var dr dbRecord
		if err := json.Unmarshal(iter.Value(), &dr); err != nil {
			return nil, fmt.Errorf("decode record %s/%s: %w", threadID, recordID, err)
		}
		out = append(out, toStoredRecord(threadID, string(recordID), dr))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func toStoredRecord(threadID, recordID string, dr dbRecord) *model.StoredRecord {
	return &model.StoredRecord{
		ThreadID:         threadID,
		RecordID:         recordID,
		Checkpoint:       dr.Checkpoint,
		Metadata:         dr.Metadata,
		IsSplit:          dr.IsSplit,
		SplitMetadata:    dr.SplitMetadata,
		MessageSplitData: dr.MessageSplitData,
		ContentSplitData: dr.ContentSplitData,
	}
}
