package split

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rcliao/checkpoint-splitter/internal/config"
	"github.com/rcliao/checkpoint-splitter/internal/jsonval"
	"github.com/rcliao/checkpoint-splitter/internal/model"
	"github.com/rcliao/checkpoint-splitter/internal/recordstore/memstore"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func channelWithMessages(n int) *jsonval.Object {
	ch := jsonval.NewObject()
	var msgs []any
	for i := 0; i < n; i++ {
		m := jsonval.NewObject()
		m.Set("role", "user")
		m.Set("content", "hello world this is message content padding padding padding")
		msgs = append(msgs, m)
	}
	ch.Set("messages", msgs)
	return ch
}

func TestSplitDisabledStoresUnsharded(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := config.Default()
	cfg.Enabled = false

	cp := jsonval.NewObject()
	cp.Set("messages", channelWithMessages(3))
	metadata := jsonval.NewObject()

	res, err := Split(ctx, nil, "t1", "r1", cp, metadata, cfg, store, nil)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if res.WasSplit {
		t.Fatal("expected no split when disabled")
	}

	got, err := store.Get(ctx, "t1", "r1")
	if err != nil || got == nil {
		t.Fatalf("expected stored record, got %v / %v", got, err)
	}
	if got.IsSplit {
		t.Error("unsharded record should not be marked IsSplit")
	}
}

func TestSplitMessageLevelProducesPrimaryAndAuxiliaries(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.Strategy = config.MessageLevel
	cfg.MaxChunkSize = 200     // force many small chunks
	cfg.MaxSizeThreshold = 500 // force the payload to exceed the threshold

	cp := jsonval.NewObject()
	cp.Set("chat", channelWithMessages(20))
	metadata := jsonval.NewObject()

	res, err := Split(ctx, nil, "t1", "r1", cp, metadata, cfg, store, fixedClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !res.WasSplit {
		t.Fatal("expected a split")
	}
	if len(res.RecordIDs) < 2 {
		t.Fatalf("expected primary + at least one auxiliary, got %v", res.RecordIDs)
	}

	primary, err := store.Get(ctx, "t1", "r1")
	if err != nil || primary == nil {
		t.Fatalf("expected primary record, got %v / %v", primary, err)
	}
	if !primary.IsSplit || primary.SplitMetadata == nil {
		t.Fatal("primary should be marked split with metadata")
	}
	if primary.SplitMetadata.PartNumber != 0 {
		t.Errorf("expected primary part number 0, got %d", primary.SplitMetadata.PartNumber)
	}
	if primary.SplitMetadata.TotalParts != len(res.RecordIDs) {
		t.Errorf("expected totalParts %d, got %d", len(res.RecordIDs), primary.SplitMetadata.TotalParts)
	}

	all, err := store.QueryByThread(ctx, "t1", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != len(res.RecordIDs) {
		t.Fatalf("expected %d stored records, found %d", len(res.RecordIDs), len(all))
	}
}

func TestSplitContentLevelFirstChunkIsPrimary(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.Strategy = config.ContentLevel
	cfg.MaxChunkSize = 50
	cfg.MaxSizeThreshold = 500 // force the payload to exceed the threshold

	cp := jsonval.NewObject()
	cp.Set("chat", channelWithMessages(10))
	metadata := jsonval.NewObject()

	res, err := Split(ctx, nil, "t1", "r1", cp, metadata, cfg, store, fixedClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !res.WasSplit {
		t.Fatal("expected a split")
	}
	if res.RecordIDs[0] != "r1" {
		t.Errorf("expected first record id to be the original record id, got %s", res.RecordIDs[0])
	}

	primary, err := store.Get(ctx, "t1", "r1")
	if err != nil || primary == nil {
		t.Fatalf("expected primary record, got %v / %v", primary, err)
	}
	if primary.ContentSplitData == nil {
		t.Fatal("content-level primary should carry ContentSplitData")
	}
	if primary.SplitMetadata.PartNumber != 1 {
		t.Errorf("expected content-level primary part number 1, got %d", primary.SplitMetadata.PartNumber)
	}
}

func TestStoreShardsRollsBackOnExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.MaxRetries = 1 // no retry headroom; first failure is terminal

	cp := jsonval.NewObject()
	cp.Set("chat", channelWithMessages(20))
	metadata := jsonval.NewObject()

	records, err := performSplit("t1", "r1", cp, metadata, config.SplitConfig{
		Strategy: config.MessageLevel, MaxChunkSize: 200,
	}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("performSplit: %v", err)
	}
	if len(records) < 3 {
		t.Fatalf("expected at least 3 shards to exercise partial rollback, got %d", len(records))
	}

	// Fail the third shard's create permanently.
	store.FailCreate(records[2].RecordID, 1000)

	err = storeShards(ctx, nil, store, records, cfg)
	if err == nil {
		t.Fatal("expected storeShards to fail")
	}
	var splitErr *model.SplitError
	if !errors.As(err, &splitErr) {
		t.Fatalf("expected *model.SplitError, got %T: %v", err, err)
	}

	remaining, err := store.QueryByThread(ctx, "t1", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected rollback to remove every written shard, found %d remaining", len(remaining))
	}
}

func TestCreateWithRetryRecoversWithinBudget(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.FailCreate("r1", 2)

	err := createWithRetry(ctx, store, &model.StoredRecord{ThreadID: "t1", RecordID: "r1"}, 3)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
}
