package sizer

import (
	"strings"
	"testing"

	"github.com/rcliao/checkpoint-splitter/internal/config"
	"github.com/rcliao/checkpoint-splitter/internal/jsonval"
)

func messageChannel(names ...string) *jsonval.Object {
	cp := jsonval.NewObject()
	ch := jsonval.NewObject()
	var msgs []any
	for _, n := range names {
		m := jsonval.NewObject()
		m.Set("role", "user")
		m.Set("text", n)
		msgs = append(msgs, m)
	}
	ch.Set("messages", msgs)
	cp.Set("messages", ch)
	return cp
}

func TestChecksumDeterministic(t *testing.T) {
	a := Checksum([]byte("hello"))
	b := Checksum([]byte("hello"))
	if a != b {
		t.Errorf("checksum not deterministic: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %d (%s)", len(a), a)
	}
}

func TestChecksumDiffersOnByteChange(t *testing.T) {
	a := Checksum([]byte("hello"))
	b := Checksum([]byte("hellp"))
	if a == b {
		t.Error("expected different checksums for different input")
	}
}

func TestAnalyzeBelowThreshold(t *testing.T) {
	cp := messageChannel("hi", "there")
	meta := jsonval.NewObject()
	cfg := config.Default()
	cfg.MaxSizeThreshold = 10_000

	analysis, err := Analyze(cp, meta, cfg)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.ExceedsThreshold {
		t.Error("expected small checkpoint to not exceed threshold")
	}
}

func TestAnalyzeAboveThreshold(t *testing.T) {
	names := make([]string, 100)
	for i := range names {
		names[i] = strings.Repeat("x", 600)
	}
	cp := messageChannel(names...)
	meta := jsonval.NewObject()
	cfg := config.Default()
	cfg.MaxSizeThreshold = 10_000
	cfg.MaxChunkSize = 5_000

	analysis, err := Analyze(cp, meta, cfg)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !analysis.ExceedsThreshold {
		t.Fatal("expected large checkpoint to exceed threshold")
	}
	if analysis.LargestChannel == nil {
		t.Fatal("expected a largest channel")
	}
	if analysis.LargestChannel.Name != "messages" {
		t.Errorf("expected channel 'messages', got %q", analysis.LargestChannel.Name)
	}
	if analysis.LargestChannel.MessageCount != 100 {
		t.Errorf("expected 100 messages, got %d", analysis.LargestChannel.MessageCount)
	}
	if analysis.EstimatedParts < 12 {
		t.Errorf("expected at least 12 estimated parts, got %d", analysis.EstimatedParts)
	}
}

func TestAnalyzeThresholdBoundaryIsStrict(t *testing.T) {
	cp := jsonval.NewObject()
	meta := jsonval.NewObject()
	cfg := config.Default()

	analysis, err := Analyze(cp, meta, cfg)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	cfg.MaxSizeThreshold = analysis.TotalSize
	analysis, err = Analyze(cp, meta, cfg)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.ExceedsThreshold {
		t.Error("totalSize == threshold must not exceed (strict >)")
	}

	cfg.MaxSizeThreshold = analysis.TotalSize - 1
	analysis, err = Analyze(cp, meta, cfg)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !analysis.ExceedsThreshold {
		t.Error("totalSize == threshold+1 must exceed")
	}
}

func TestAnalyzeSerializationError(t *testing.T) {
	cp := jsonval.NewObject()
	cp.Set("self", cp) // cyclic
	meta := jsonval.NewObject()

	_, err := Analyze(cp, meta, config.Default())
	if err == nil {
		t.Fatal("expected serialization error for cyclic checkpoint")
	}
}

func TestCanSplitContentLevelAlwaysOK(t *testing.T) {
	verdict := CanSplit(jsonval.NewObject(), config.ContentLevel)
	if !verdict.OK {
		t.Error("CONTENT_LEVEL should always be splittable")
	}
}

func TestCanSplitMessageLevelNoMessages(t *testing.T) {
	verdict := CanSplit(jsonval.NewObject(), config.MessageLevel)
	if verdict.OK {
		t.Error("expected not ok with no messages")
	}
	if verdict.Reason != "No messages found to split" {
		t.Errorf("unexpected reason: %q", verdict.Reason)
	}
}

func TestCanSplitMessageLevelWithMessages(t *testing.T) {
	cp := messageChannel("a", "b", "c")
	verdict := CanSplit(cp, config.MessageLevel)
	if !verdict.OK {
		t.Errorf("expected ok, got reason: %q", verdict.Reason)
	}
}
