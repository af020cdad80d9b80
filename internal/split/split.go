// Package split implements the write path: deciding whether a record
// needs to be sharded, producing the shard set, and persisting it with
// retry and best-effort rollback (spec §4.2.2, §4.2.4, §4.5).
package split

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rcliao/checkpoint-splitter/internal/config"
	"github.com/rcliao/checkpoint-splitter/internal/jsonval"
	"github.com/rcliao/checkpoint-splitter/internal/model"
	"github.com/rcliao/checkpoint-splitter/internal/recordstore"
	"github.com/rcliao/checkpoint-splitter/internal/sizer"
)

// Result is what the write path reports back to the Storage Adapter.
type Result struct {
	WasSplit  bool
	RecordIDs []string
}

// Clock abstracts the wall clock so tests can observe deterministic
// SplitTimestamp values. Split uses time.Now by default.
type Clock func() time.Time

// Split decides whether cp/metadata needs sharding under cfg and, if
// so, persists the shard set to store. When no split is needed — splitting
// is disabled (cfg.Enabled is false), the payload does not exceed
// cfg.MaxSizeThreshold, or the checkpoint cannot be split under the
// configured strategy — it stores a single unsharded record and
// returns Result{WasSplit: false} (spec §4.2.1 steps 2-4).
func Split(ctx context.Context, log *slog.Logger, threadID, recordID string, cp, metadata *jsonval.Object, cfg config.SplitConfig, store recordstore.RecordStore, now Clock) (Result, error) {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	if !cfg.Enabled {
		return storeUnsharded(ctx, threadID, recordID, cp, metadata, store)
	}

	analysis, err := sizer.Analyze(cp, metadata, cfg)
	if err != nil {
		return Result{}, err
	}
	if !analysis.ExceedsThreshold {
		return storeUnsharded(ctx, threadID, recordID, cp, metadata, store)
	}

	if verdict := sizer.CanSplit(cp, cfg.Strategy); !verdict.OK {
		log.Warn("checkpoint exceeds threshold but cannot be split, storing unsharded",
			"threadId", threadID, "recordId", recordID, "reason", verdict.Reason, "totalSize", analysis.TotalSize)
		return storeUnsharded(ctx, threadID, recordID, cp, metadata, store)
	}

	records, err := performSplit(threadID, recordID, cp, metadata, cfg, now())
	if err != nil {
		return Result{}, err
	}
	if len(records) == 1 {
		// Only a CONTENT_LEVEL payload whose encoding fits in one chunk
		// yields a single record: it is stored as a one-part shard set at
		// recordID and reported as not split.
		if err := storeShards(ctx, log, store, records, cfg); err != nil {
			return Result{}, err
		}
		return Result{WasSplit: false, RecordIDs: []string{recordID}}, nil
	}

	if err := storeShards(ctx, log, store, records, cfg); err != nil {
		return Result{}, err
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.RecordID
	}
	return Result{WasSplit: true, RecordIDs: ids}, nil
}

func storeUnsharded(ctx context.Context, threadID, recordID string, cp, metadata *jsonval.Object, store recordstore.RecordStore) (Result, error) {
	cpSerialized, err := jsonval.Marshal(cp)
	if err != nil {
		return Result{}, &model.SerializationError{Cause: err}
	}
	metaSerialized, err := jsonval.Marshal(metadata)
	if err != nil {
		return Result{}, &model.SerializationError{Cause: err}
	}
	record := &model.StoredRecord{
		ThreadID:   threadID,
		RecordID:   recordID,
		Checkpoint: cpSerialized,
		Metadata:   metaSerialized,
		IsSplit:    false,
	}
	if err := store.Create(ctx, record); err != nil {
		return Result{}, &model.StoreError{Op: "create", Cause: err}
	}
	return Result{WasSplit: false, RecordIDs: []string{recordID}}, nil
}

// newBackOff builds the spec's 2^attempt * 100ms schedule: a pure
// exponential doubling with no jitter, driven manually rather than via
// backoff.Retry so a failed final attempt can trigger rollback instead
// of simply propagating the last error.
func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return b
}

// storeShards writes every shard in order, making up to cfg.MaxRetries
// attempts in total per shard with exponential backoff between them. If
// a shard's attempts are all exhausted, every shard successfully written
// so far is deleted best-effort and a *model.SplitError is returned
// (spec §4.5). A nil log defaults to slog.Default().
func storeShards(ctx context.Context, log *slog.Logger, store recordstore.RecordStore, records []*model.StoredRecord, cfg config.SplitConfig) error {
	if log == nil {
		log = slog.Default()
	}
	var written []*model.StoredRecord

	for _, record := range records {
		if err := createWithRetry(ctx, store, record, cfg.MaxRetries); err != nil {
			log.Warn("shard write exhausted retries, rolling back",
				"threadId", record.ThreadID,
				"recordId", record.RecordID,
				"writtenCount", len(written),
				"error", err,
			)
			rollback(ctx, log, store, written)
			return &model.SplitError{RecordID: record.RecordID, PartNum: partNumberOf(record), Cause: err}
		}
		written = append(written, record)
	}
	return nil
}

func partNumberOf(r *model.StoredRecord) int {
	if r.SplitMetadata == nil {
		return 0
	}
	return r.SplitMetadata.PartNumber
}

// createWithRetry attempts store.Create up to maxRetries times,
// sleeping 2^attempt * 100ms between attempts.
func createWithRetry(ctx context.Context, store recordstore.RecordStore, record *model.StoredRecord, maxRetries int) error {
	b := newBackOff()
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = store.Create(ctx, record)
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries-1 {
			break
		}
		d := b.NextBackOff()
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// rollback best-effort deletes every shard already written. Delete
// errors are logged, not returned: rollback runs only after the write
// path has already failed, so surfacing a second error would only
// obscure the first.
func rollback(ctx context.Context, log *slog.Logger, store recordstore.RecordStore, written []*model.StoredRecord) {
	for _, record := range written {
		if err := store.Delete(ctx, record.ThreadID, record.RecordID); err != nil {
			log.Warn("rollback delete failed", "threadId", record.ThreadID, "recordId", record.RecordID, "error", err)
		}
	}
}
