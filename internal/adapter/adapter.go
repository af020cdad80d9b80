// Package adapter implements the Storage Adapter (spec §4.3): the
// caller-facing facade that hides sharding from the rest of the
// conversational agent's state store. Callers only ever see a single
// logical (threadID, recordID) record; the adapter decides whether a
// write needs to be split and transparently reassembles a read.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/checkpoint-splitter/internal/config"
	"github.com/rcliao/checkpoint-splitter/internal/jsonval"
	"github.com/rcliao/checkpoint-splitter/internal/metrics"
	"github.com/rcliao/checkpoint-splitter/internal/model"
	"github.com/rcliao/checkpoint-splitter/internal/reassemble"
	"github.com/rcliao/checkpoint-splitter/internal/recordstore"
	"github.com/rcliao/checkpoint-splitter/internal/sizer"
	"github.com/rcliao/checkpoint-splitter/internal/split"
	"github.com/rcliao/checkpoint-splitter/internal/telemetry"
)

// Adapter is the Storage Adapter. It is safe for concurrent use; the
// underlying RecordStore is responsible for its own concurrency
// control.
type Adapter struct {
	store   recordstore.RecordStore
	cfg     config.SplitConfig
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New constructs an Adapter backed by store, configured by cfg. A nil
// logger defaults to slog.Default(); a nil metrics bundle defaults to
// metrics.Default.
func New(store recordstore.RecordStore, cfg config.SplitConfig, log *slog.Logger, m *metrics.Metrics) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.Default
	}
	return &Adapter{store: store, cfg: cfg, log: log, metrics: m}, nil
}

// Put writes checkpoint and metadata (already decoded into the
// jsonval tree) for (threadID, recordID), sharding them across
// multiple records if they exceed the configured size threshold.
func (a *Adapter) Put(ctx context.Context, threadID, recordID string, cp, metadata *jsonval.Object) (wasSplit bool, err error) {
	opID := ulid.Make().String()
	ctx, span := telemetry.StartOperation(ctx, "put", threadID)
	defer span.End()

	log := a.log.With("operationId", opID, "threadId", threadID, "recordId", recordID)

	analysis, err := sizer.Analyze(cp, metadata, a.cfg)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	if a.cfg.EnableSizeMonitoring {
		log.Debug("size analysis", "totalSize", analysis.TotalSize, "exceedsThreshold", analysis.ExceedsThreshold, "estimatedParts", analysis.EstimatedParts)
	}

	// split.Split re-derives the same analysis and the CanSplit verdict
	// before deciding whether to actually shard; the gating logic lives
	// there, not here, so there is exactly one place that decides it.
	res, err := split.Split(ctx, log, threadID, recordID, cp, metadata, a.cfg, a.store, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		if _, ok := err.(*model.SplitError); ok {
			a.metrics.RollbacksTotal.Inc()
		}
		return false, err
	}

	telemetry.RecordSplitOutcome(span, res.WasSplit, len(res.RecordIDs))
	if res.WasSplit {
		a.metrics.SplitsTotal.Inc()
		log.Info("checkpoint split", "totalSize", analysis.TotalSize, "parts", len(res.RecordIDs))
	}
	return res.WasSplit, nil
}

// Get reads and, if necessary, transparently reassembles the record at
// (threadID, recordID). It returns (nil, nil, nil) if no such record
// exists.
func (a *Adapter) Get(ctx context.Context, threadID, recordID string) (cp, metadata any, err error) {
	opID := ulid.Make().String()
	ctx, span := telemetry.StartOperation(ctx, "get", threadID)
	defer span.End()

	log := a.log.With("operationId", opID, "threadId", threadID, "recordId", recordID)

	deadline := time.Duration(a.cfg.OperationTimeoutMs) * time.Millisecond
	start := time.Now()
	res, err := reassemble.Reassemble(ctx, a.store, threadID, recordID, a.cfg.SplitRecordPrefix, deadline)
	a.metrics.ReassemblyLatency.Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		telemetry.RecordError(span, err)
		a.metrics.ReassembliesTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if res == nil {
		a.metrics.ReassembliesTotal.WithLabelValues("not_found").Inc()
		return nil, nil, nil
	}

	telemetry.RecordReassemblyOutcome(span, res.PartsReassembled, res.TotalExpectedParts)
	if !res.Success {
		a.metrics.ReassembliesTotal.WithLabelValues("failed").Inc()
		log.Error("reassembly failed", "warnings", res.Warnings)
		err := fmt.Errorf("reassembly failed for %s/%s: %v", threadID, recordID, res.Warnings)
		telemetry.RecordError(span, err)
		return nil, nil, err
	}

	a.metrics.ReassembliesTotal.WithLabelValues("success").Inc()
	return res.Checkpoint, res.Metadata, nil
}

// List enumerates every logical record ID under threadID, excluding
// auxiliary shard keys: callers never see the split-record namespace.
func (a *Adapter) List(ctx context.Context, threadID string) ([]string, error) {
	_, span := telemetry.StartOperation(ctx, "list", threadID)
	defer span.End()

	records, err := a.store.QueryByThread(ctx, threadID, "")
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, &model.StoreError{Op: "list", Cause: err}
	}

	shardPrefix := a.cfg.SplitRecordPrefix + "#"
	var out []string
	for _, r := range records {
		if hasPrefix(r.RecordID, shardPrefix) {
			continue
		}
		out = append(out, r.RecordID)
	}
	return out, nil
}

// DeleteThread removes every record belonging to threadID, including
// any auxiliary shards left behind by a prior split.
func (a *Adapter) DeleteThread(ctx context.Context, threadID string) error {
	_, span := telemetry.StartOperation(ctx, "deleteThread", threadID)
	defer span.End()

	records, err := a.store.QueryByThread(ctx, threadID, "")
	if err != nil {
		telemetry.RecordError(span, err)
		return &model.StoreError{Op: "list for delete", Cause: err}
	}
	for _, r := range records {
		if err := a.store.Delete(ctx, threadID, r.RecordID); err != nil {
			telemetry.RecordError(span, err)
			return &model.StoreError{Op: "delete", Cause: err}
		}
	}
	return nil
}

// Stats summarizes the storage footprint of a single logical record,
// surfacing whether it is currently split and how many shards it
// occupies. It mirrors the teacher's per-namespace stats helper,
// narrowed to a single record.
type Stats struct {
	RecordID   string
	IsSplit    bool
	PartCount  int
	TotalBytes int
}

// Stats reports storage statistics for (threadID, recordID).
func (a *Adapter) Stats(ctx context.Context, threadID, recordID string) (*Stats, error) {
	primary, err := a.store.Get(ctx, threadID, recordID)
	if err != nil {
		return nil, &model.StoreError{Op: "get", Cause: err}
	}
	if primary == nil {
		return nil, nil
	}
	if !primary.IsSplit || primary.SplitMetadata == nil {
		return &Stats{
			RecordID:   recordID,
			IsSplit:    false,
			PartCount:  1,
			TotalBytes: len(primary.Checkpoint) + len(primary.Metadata),
		}, nil
	}

	prefix := fmt.Sprintf("%s#%s#part#", a.cfg.SplitRecordPrefix, recordID)
	auxiliaries, err := a.store.QueryByThread(ctx, threadID, prefix)
	if err != nil {
		return nil, &model.StoreError{Op: "query auxiliaries", Cause: err}
	}

	total := len(primary.Checkpoint) + len(primary.Metadata)
	if primary.ContentSplitData != nil {
		total += primary.SplitMetadata.PartSize
	}
	for _, aux := range auxiliaries {
		if aux.SplitMetadata != nil {
			total += aux.SplitMetadata.PartSize
		}
	}

	return &Stats{
		RecordID:   recordID,
		IsSplit:    true,
		PartCount:  primary.SplitMetadata.TotalParts,
		TotalBytes: total,
	}, nil
}

// ThreadStats summarizes every logical record stored under a thread,
// mirroring the teacher's per-namespace stats helper (internal/store's
// Stats/NamespaceStats) but built entirely from queryByThread rather
// than a dedicated store primitive.
type ThreadStats struct {
	ThreadID      string
	RecordCount   int
	ShardSetCount int
	TotalBytes    int
}

// ThreadStats reports record counts, shard-set counts, and total stored
// bytes for every logical record under threadID.
func (a *Adapter) ThreadStats(ctx context.Context, threadID string) (*ThreadStats, error) {
	records, err := a.store.QueryByThread(ctx, threadID, "")
	if err != nil {
		return nil, &model.StoreError{Op: "query thread stats", Cause: err}
	}

	shardPrefix := a.cfg.SplitRecordPrefix + "#"
	stats := &ThreadStats{ThreadID: threadID}
	for _, r := range records {
		stats.TotalBytes += len(r.Checkpoint) + len(r.Metadata)
		if r.SplitMetadata != nil && (r.MessageSplitData != nil || r.ContentSplitData != nil) {
			stats.TotalBytes += r.SplitMetadata.PartSize
		}
		if hasPrefix(r.RecordID, shardPrefix) {
			continue
		}
		stats.RecordCount++
		if r.IsSplit {
			stats.ShardSetCount++
		}
	}
	return stats, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// DecodeCheckpoint is a convenience re-export so CLI/integration
// callers don't need to import internal/jsonval directly just to turn
// raw JSON bytes into the tree Put expects.
func DecodeCheckpoint(raw []byte) (*jsonval.Object, error) {
	v, err := jsonval.Unmarshal(raw)
	if err != nil {
		return nil, &model.SerializationError{Cause: err}
	}
	obj, ok := v.(*jsonval.Object)
	if !ok {
		return nil, &model.SerializationError{Cause: fmt.Errorf("top-level JSON value is not an object")}
	}
	return obj, nil
}
