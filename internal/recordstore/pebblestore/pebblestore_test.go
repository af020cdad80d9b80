package pebblestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rcliao/checkpoint-splitter/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pebbledb"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := &model.StoredRecord{
		ThreadID:   "t1",
		RecordID:   "checkpoint#ns#id",
		Checkpoint: []byte(`{"a":1}`),
	}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "t1", "checkpoint#ns#id")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || string(got.Checkpoint) != `{"a":1}` {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get(context.Background(), "t1", "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestQueryByThreadIsolatesThreadsAndSorts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "b"})
	s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "a"})
	s.Create(ctx, &model.StoredRecord{ThreadID: "t2", RecordID: "z"})

	out, err := s.QueryByThread(ctx, "t1", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2, got %d", len(out))
	}
	if out[0].RecordID != "a" || out[1].RecordID != "b" {
		t.Errorf("expected sorted [a, b], got [%s, %s]", out[0].RecordID, out[1].RecordID)
	}
}

func TestQueryByThreadPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "split#orig#part#0001"})
	s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "checkpoint#ns#id"})

	out, err := s.QueryByThread(ctx, "t1", "split#")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1, got %d", len(out))
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "a"})
	if err := s.Delete(ctx, "t1", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.Get(ctx, "t1", "a")
	if got != nil {
		t.Errorf("expected record to be gone, got %+v", got)
	}
}
