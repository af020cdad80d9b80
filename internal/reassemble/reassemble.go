// Package reassemble implements the read path: gathering a record's
// shards (if any), verifying their checksums, and reconstructing the
// original checkpoint/metadata pair (spec §4.2.5).
package reassemble

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/rcliao/checkpoint-splitter/internal/jsonval"
	"github.com/rcliao/checkpoint-splitter/internal/model"
	"github.com/rcliao/checkpoint-splitter/internal/recordstore"
	"github.com/rcliao/checkpoint-splitter/internal/sizer"
)

// auxPrefix returns the key-space prefix shared by every auxiliary
// shard of originalRecordID under the configured split-record prefix.
func auxPrefix(splitRecordPrefix, originalRecordID string) string {
	return fmt.Sprintf("%s#%s#part#", splitRecordPrefix, originalRecordID)
}

// Reassemble fetches and, if necessary, reconstructs the record at
// (threadID, recordID). A record that was never split is returned
// as-is. deadline bounds the total time spent gathering auxiliary
// shards; splitRecordPrefix must match the value used at write time.
//
// Failures surface as a ReassemblyResult with Success=false and an
// explanatory Warning rather than as a returned error: only
// store-level I/O failures and payloads that cannot be decoded return
// an error. A missing primary returns (nil, nil).
func Reassemble(ctx context.Context, store recordstore.RecordStore, threadID, recordID, splitRecordPrefix string, deadline time.Duration) (*model.ReassemblyResult, error) {
	start := time.Now()

	primary, err := store.Get(ctx, threadID, recordID)
	if err != nil {
		return nil, &model.StoreError{Op: "get primary", Cause: err}
	}
	if primary == nil {
		return nil, nil
	}

	if !primary.IsSplit || primary.SplitMetadata == nil {
		cp, err := jsonval.Unmarshal(primary.Checkpoint)
		if err != nil {
			return nil, &model.SerializationError{Cause: err}
		}
		meta, err := jsonval.Unmarshal(primary.Metadata)
		if err != nil {
			return nil, &model.SerializationError{Cause: err}
		}
		return &model.ReassemblyResult{
			Success:            true,
			Checkpoint:         cp,
			Metadata:           meta,
			PartsReassembled:   1,
			TotalExpectedParts: 1,
			ReassemblyTimeMs:   time.Since(start).Milliseconds(),
		}, nil
	}

	totalParts := primary.SplitMetadata.TotalParts
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	auxiliaries, err := gatherAuxiliaries(ctx, store, threadID, splitRecordPrefix, recordID, totalParts-1)
	if err != nil {
		if ctx.Err() != nil {
			return &model.ReassemblyResult{
				Success:            false,
				Warnings:           []string{(&model.TimeoutError{Op: "reassemble"}).Error()},
				PartsReassembled:   len(auxiliaries),
				TotalExpectedParts: totalParts,
				ReassemblyTimeMs:   time.Since(start).Milliseconds(),
			}, nil
		}
		return nil, &model.StoreError{Op: "gather auxiliaries", Cause: err}
	}

	switch primary.SplitMetadata.Strategy {
	case model.ContentLevel:
		return reassembleContentLevel(primary, auxiliaries, start)
	default:
		return reassembleMessageLevel(primary, auxiliaries, start)
	}
}

// gatherAuxiliaries polls QueryByThread under the caller's deadline
// until expected auxiliary shards are all present. Most stores return
// every write immediately (no eventual consistency), so the common
// case is a single query; the loop exists for stores where a shard
// write and its visibility to QueryByThread are not atomic.
func gatherAuxiliaries(ctx context.Context, store recordstore.RecordStore, threadID, splitRecordPrefix, recordID string, expected int) ([]*model.StoredRecord, error) {
	if expected <= 0 {
		return nil, nil
	}
	prefix := auxPrefix(splitRecordPrefix, recordID)

	for {
		found, err := store.QueryByThread(ctx, threadID, prefix)
		if err != nil {
			return nil, err
		}
		if len(found) >= expected {
			sort.Slice(found, func(i, j int) bool {
				return partNumber(found[i]) < partNumber(found[j])
			})
			return found, nil
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return found, ctx.Err()
		}
	}
}

func partNumber(r *model.StoredRecord) int {
	if r.SplitMetadata == nil {
		return 0
	}
	return r.SplitMetadata.PartNumber
}

func reassembleMessageLevel(primary *model.StoredRecord, auxiliaries []*model.StoredRecord, start time.Time) (*model.ReassemblyResult, error) {
	cp, err := jsonval.Unmarshal(primary.Checkpoint)
	if err != nil {
		return nil, &model.SerializationError{Cause: err}
	}
	cpObj, ok := cp.(*jsonval.Object)
	if !ok {
		return &model.ReassemblyResult{Success: false, Warnings: []string{"primary checkpoint is not an object"}}, nil
	}
	metadata, err := jsonval.Unmarshal(primary.Metadata)
	if err != nil {
		return nil, &model.SerializationError{Cause: err}
	}

	type channelAccumulator struct {
		name     string
		messages []any
	}
	accumulators := map[string]*channelAccumulator{}
	var order []string

	for _, aux := range auxiliaries {
		data := aux.MessageSplitData
		if data == nil {
			return &model.ReassemblyResult{
				Success:  false,
				Warnings: []string{fmt.Sprintf("shard %s is missing message split data", aux.RecordID)},
			}, nil
		}

		if aux.SplitMetadata != nil && aux.SplitMetadata.Checksum != "" {
			got := sizer.Checksum(data.MessagesData)
			if got != aux.SplitMetadata.Checksum {
				return &model.ReassemblyResult{
					Success: false,
					Warnings: []string{
						(&model.ChecksumError{RecordID: aux.RecordID, PartNum: aux.SplitMetadata.PartNumber, Want: aux.SplitMetadata.Checksum, Got: got}).Error(),
					},
				}, nil
			}
		}

		decoded, err := jsonval.Unmarshal(data.MessagesData)
		if err != nil {
			return nil, &model.SerializationError{Cause: err}
		}
		chunk, ok := decoded.([]any)
		if !ok {
			return &model.ReassemblyResult{Success: false, Warnings: []string{fmt.Sprintf("shard %s message payload is not an array", aux.RecordID)}}, nil
		}

		acc, exists := accumulators[data.ChannelName]
		if !exists {
			acc = &channelAccumulator{name: data.ChannelName}
			accumulators[data.ChannelName] = acc
			order = append(order, data.ChannelName)
		}
		acc.messages = append(acc.messages, chunk...)
	}

	for _, name := range order {
		channelVal, ok := cpObj.Get(name)
		if !ok {
			continue
		}
		channelObj, ok := channelVal.(*jsonval.Object)
		if !ok {
			continue
		}
		channelObj.Set("messages", accumulators[name].messages)
	}

	return &model.ReassemblyResult{
		Success:            true,
		Checkpoint:         cpObj,
		Metadata:           metadata,
		PartsReassembled:   1 + len(auxiliaries),
		TotalExpectedParts: primary.SplitMetadata.TotalParts,
		ReassemblyTimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

func reassembleContentLevel(primary *model.StoredRecord, auxiliaries []*model.StoredRecord, start time.Time) (*model.ReassemblyResult, error) {
	if primary.ContentSplitData == nil {
		return &model.ReassemblyResult{Success: false, Warnings: []string{"content-level primary is missing its chunk data"}}, nil
	}

	expected := primary.SplitMetadata.TotalParts
	if len(auxiliaries)+1 != expected {
		return &model.ReassemblyResult{
			Success:            false,
			Warnings:           []string{fmt.Sprintf("expected %d parts, gathered %d", expected, len(auxiliaries)+1)},
			PartsReassembled:   len(auxiliaries) + 1,
			TotalExpectedParts: expected,
			ReassemblyTimeMs:   time.Since(start).Milliseconds(),
		}, nil
	}

	encoded := ""
	for _, part := range append([]*model.StoredRecord{primary}, auxiliaries...) {
		if part.ContentSplitData == nil {
			return &model.ReassemblyResult{Success: false, Warnings: []string{fmt.Sprintf("shard %s is missing content split data", part.RecordID)}}, nil
		}
		if part.SplitMetadata != nil && part.SplitMetadata.Checksum != "" {
			got := sizer.Checksum([]byte(part.ContentSplitData.ChunkData))
			if got != part.SplitMetadata.Checksum {
				return &model.ReassemblyResult{
					Success: false,
					Warnings: []string{
						(&model.ChecksumError{RecordID: part.RecordID, PartNum: part.SplitMetadata.PartNumber, Want: part.SplitMetadata.Checksum, Got: got}).Error(),
					},
				}, nil
			}
		}
		encoded += part.ContentSplitData.ChunkData
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return &model.ReassemblyResult{Success: false, Warnings: []string{fmt.Sprintf("base64 decode failed: %v", err)}}, nil
	}

	decoded, err := jsonval.Unmarshal(raw)
	if err != nil {
		return nil, &model.SerializationError{Cause: err}
	}
	wrapper, ok := decoded.(*jsonval.Object)
	if !ok {
		return &model.ReassemblyResult{Success: false, Warnings: []string{"reassembled content is not an object"}}, nil
	}
	cp, _ := wrapper.Get("checkpoint")
	metadata, _ := wrapper.Get("metadata")

	return &model.ReassemblyResult{
		Success:            true,
		Checkpoint:         cp,
		Metadata:           metadata,
		PartsReassembled:   len(auxiliaries) + 1,
		TotalExpectedParts: expected,
		ReassemblyTimeMs:   time.Since(start).Milliseconds(),
	}, nil
}
