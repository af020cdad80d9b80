package memstore

import (
	"context"
	"testing"

	"github.com/rcliao/checkpoint-splitter/internal/model"
)

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec := &model.StoredRecord{ThreadID: "t1", RecordID: "r1", Checkpoint: []byte(`{}`)}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "t1", "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || string(got.Checkpoint) != "{}" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	s := New()
	got, err := s.Get(context.Background(), "t1", "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Delete(ctx, "t1", "missing"); err != nil {
		t.Fatalf("delete of missing record should not error: %v", err)
	}
}

func TestQueryByThreadFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "b"})
	s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "a"})
	s.Create(ctx, &model.StoredRecord{ThreadID: "t2", RecordID: "c"})

	out, err := s.QueryByThread(ctx, "t1", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].RecordID != "a" || out[1].RecordID != "b" {
		t.Errorf("expected sorted [a, b], got [%s, %s]", out[0].RecordID, out[1].RecordID)
	}
}

func TestQueryByThreadPrefix(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "split#orig#part#0001"})
	s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "checkpoint#ns#id"})

	out, err := s.QueryByThread(ctx, "t1", "split#")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
}

func TestFailCreateInjectsThenRecovers(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailCreate("r1", 2)

	if err := s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "r1"}); err == nil {
		t.Fatal("expected injected failure #1")
	}
	if err := s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "r1"}); err == nil {
		t.Fatal("expected injected failure #2")
	}
	if err := s.Create(ctx, &model.StoredRecord{ThreadID: "t1", RecordID: "r1"}); err != nil {
		t.Fatalf("expected success on 3rd attempt, got %v", err)
	}
}
