// Package recordstore defines the RecordStore port (spec §6.1): the
// minimal key-value surface the splitting engine depends on. Concrete
// backends live in subpackages (memstore, sqlitestore, pebblestore).
package recordstore

import (
	"context"

	"github.com/rcliao/checkpoint-splitter/internal/model"
)

// RecordStore is the abstraction the engine depends on. Implementations
// backed by DynamoDB, an RDBMS, an embedded KV engine, or an in-memory
// map are all acceptable; only the semantics below are required.
type RecordStore interface {
	// Get returns the most recently successfully stored record at
	// (threadID, recordID), or (nil, nil) if absent.
	Get(ctx context.Context, threadID, recordID string) (*model.StoredRecord, error)

	// Create unconditionally upserts record at (record.ThreadID,
	// record.RecordID). The engine never issues concurrent creates to
	// the same key within a single operation.
	Create(ctx context.Context, record *model.StoredRecord) error

	// Delete removes (threadID, recordID). Deleting a missing record
	// is not an error.
	Delete(ctx context.Context, threadID, recordID string) error

	// QueryByThread enumerates every record with the given threadID
	// whose RecordID starts with keyPrefix (all records if keyPrefix
	// is empty), in ascending RecordID order.
	QueryByThread(ctx context.Context, threadID, keyPrefix string) ([]*model.StoredRecord, error)
}
