package reassemble

import (
	"context"
	"testing"
	"time"

	"github.com/rcliao/checkpoint-splitter/internal/config"
	"github.com/rcliao/checkpoint-splitter/internal/jsonval"
	"github.com/rcliao/checkpoint-splitter/internal/recordstore/memstore"
	"github.com/rcliao/checkpoint-splitter/internal/split"
)

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

func TestReassembleUnsplitRecordRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := config.Default()
	cfg.Enabled = false

	cp := jsonval.NewObject()
	cp.Set("chat", channelWithMessages(2))
	metadata := jsonval.NewObject()
	metadata.Set("sessionId", "s1")

	if _, err := split.Split(ctx, nil, "t1", "r1", cp, metadata, cfg, store, nil); err != nil {
		t.Fatalf("split: %v", err)
	}

	res, err := Reassemble(ctx, store, "t1", "r1", cfg.SplitRecordPrefix, time.Second)
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, warnings: %v", res.Warnings)
	}
	cpObj, ok := res.Checkpoint.(*jsonval.Object)
	if !ok {
		t.Fatalf("expected checkpoint object, got %T", res.Checkpoint)
	}
	if _, ok := cpObj.Get("chat"); !ok {
		t.Error("expected chat channel to survive round trip")
	}
}

func TestReassembleMessageLevelRestoresMessages(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.Strategy = config.MessageLevel
	cfg.MaxChunkSize = 200
	cfg.MaxSizeThreshold = 500

	cp := jsonval.NewObject()
	cp.Set("chat", channelWithMessages(20))
	metadata := jsonval.NewObject()
	metadata.Set("sessionId", "s1")

	splitRes, err := split.Split(ctx, nil, "t1", "r1", cp, metadata, cfg, store, nil)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !splitRes.WasSplit {
		t.Fatal("expected the fixture to actually split")
	}

	res, err := Reassemble(ctx, store, "t1", "r1", cfg.SplitRecordPrefix, 5*time.Second)
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, warnings: %v", res.Warnings)
	}

	cpObj, ok := res.Checkpoint.(*jsonval.Object)
	if !ok {
		t.Fatalf("expected checkpoint object, got %T", res.Checkpoint)
	}
	chatVal, ok := cpObj.Get("chat")
	if !ok {
		t.Fatal("expected chat channel to be present")
	}
	chatObj := chatVal.(*jsonval.Object)
	msgsVal, _ := chatObj.Get("messages")
	msgs, ok := msgsVal.([]any)
	if !ok || len(msgs) != 20 {
		t.Fatalf("expected 20 reassembled messages, got %v", msgsVal)
	}
}

func TestReassembleContentLevelRestoresPayload(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.Strategy = config.ContentLevel
	cfg.MaxChunkSize = 50
	cfg.MaxSizeThreshold = 500

	cp := jsonval.NewObject()
	cp.Set("chat", channelWithMessages(10))
	metadata := jsonval.NewObject()
	metadata.Set("sessionId", "s1")

	splitRes, err := split.Split(ctx, nil, "t1", "r1", cp, metadata, cfg, store, nil)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !splitRes.WasSplit {
		t.Fatal("expected the fixture to actually split")
	}

	res, err := Reassemble(ctx, store, "t1", "r1", cfg.SplitRecordPrefix, 5*time.Second)
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, warnings: %v", res.Warnings)
	}
	if _, ok := res.Checkpoint.(*jsonval.Object); !ok {
		t.Fatalf("expected checkpoint object, got %T", res.Checkpoint)
	}
}

func TestReassembleMissingPrimaryReturnsNil(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	res, err := Reassemble(ctx, store, "t1", "missing", "split", time.Second)
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result for missing record, got %+v", res)
	}
}

func TestReassembleDetectsChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.Strategy = config.MessageLevel
	cfg.MaxChunkSize = 200
	cfg.MaxSizeThreshold = 500

	cp := jsonval.NewObject()
	cp.Set("chat", channelWithMessages(20))
	metadata := jsonval.NewObject()

	if _, err := split.Split(ctx, nil, "t1", "r1", cp, metadata, cfg, store, nil); err != nil {
		t.Fatalf("split: %v", err)
	}

	all, err := store.QueryByThread(ctx, "t1", cfg.SplitRecordPrefix+"#")
	if err != nil || len(all) == 0 {
		t.Fatalf("expected auxiliary shards, got %v / %v", all, err)
	}
	corrupted := all[0]
	corrupted.SplitMetadata.Checksum = "deadbeefdeadbeef"
	if err := store.Create(ctx, corrupted); err != nil {
		t.Fatalf("corrupt shard: %v", err)
	}

	res, err := Reassemble(ctx, store, "t1", "r1", cfg.SplitRecordPrefix, 5*time.Second)
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if res.Success {
		t.Fatal("expected reassembly to fail on checksum mismatch")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning describing the checksum mismatch")
	}
}
