// Package sizer is the engine's pure analyzer: it computes the
// serialized footprint of a checkpoint/metadata pair, decides whether
// it must be split, estimates shard counts, and computes short
// checksums. It performs no I/O (spec §4.1).
package sizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/rcliao/checkpoint-splitter/internal/checkpoint"
	"github.com/rcliao/checkpoint-splitter/internal/config"
	"github.com/rcliao/checkpoint-splitter/internal/jsonval"
	"github.com/rcliao/checkpoint-splitter/internal/model"
)

// base64Overhead is standard Base64's 4/3 expansion factor rounded
// down to two decimals, used to approximate the transport-encoded size the
// backing store will actually charge for a record.
const base64Overhead = 1.33

// storeOverheadBytes is a conservative, fixed bound on the backing
// store's per-item bookkeeping (primary key, sort key, and internal
// item metadata).
const storeOverheadBytes = 1024

// Checksum returns a deterministic, 16-hex-character (64-bit) SHA-256
// digest of data: full SHA-256 truncated, trading a small collision
// probability for a smaller stored footprint. Identical input always
// yields identical output.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// Analyze computes the SizeAnalysis for a (checkpoint, metadata) pair
// against cfg. It returns a *model.SerializationError if either
// payload cannot be canonically serialized.
func Analyze(cp, metadata *jsonval.Object, cfg config.SplitConfig) (model.SizeAnalysis, error) {
	cpBytes, err := jsonval.Marshal(cp)
	if err != nil {
		return model.SizeAnalysis{}, &model.SerializationError{Cause: fmt.Errorf("checkpoint: %w", err)}
	}
	metaBytes, err := jsonval.Marshal(metadata)
	if err != nil {
		return model.SizeAnalysis{}, &model.SerializationError{Cause: fmt.Errorf("metadata: %w", err)}
	}

	cpSize := expand(len(cpBytes))
	metaSize := expand(len(metaBytes))
	totalSize := cpSize + metaSize + storeOverheadBytes

	largestComponent := "checkpoint"
	if metaSize > cpSize {
		largestComponent = "metadata"
	}

	analysis := model.SizeAnalysis{
		TotalSize:        totalSize,
		ExceedsThreshold: totalSize > cfg.MaxSizeThreshold,
		SizeBreakdown: model.SizeBreakdown{
			Checkpoint: cpSize,
			Metadata:   metaSize,
			Overhead:   storeOverheadBytes,
		},
		LargestComponent: largestComponent,
	}

	largest, err := largestMessageChannel(cp)
	if err != nil {
		return model.SizeAnalysis{}, &model.SerializationError{Cause: err}
	}
	analysis.LargestChannel = largest

	estimated, err := estimatedParts(cp, totalSize, cfg)
	if err != nil {
		return model.SizeAnalysis{}, &model.SerializationError{Cause: err}
	}
	analysis.EstimatedParts = estimated

	return analysis, nil
}

func expand(rawBytes int) int {
	return int(math.Ceil(float64(rawBytes) * base64Overhead))
}

func largestMessageChannel(cp *jsonval.Object) (*model.LargestChannel, error) {
	var best *model.LargestChannel
	for _, mc := range checkpoint.MessageChannels(cp) {
		serialized, err := jsonval.Marshal(mc.Object)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", mc.Name, err)
		}
		size := len(serialized)
		if best == nil || size > best.EstimatedSize {
			best = &model.LargestChannel{
				Name:          mc.Name,
				MessageCount:  len(mc.Messages),
				EstimatedSize: size,
			}
		}
	}
	return best, nil
}

func estimatedParts(cp *jsonval.Object, totalSize int, cfg config.SplitConfig) (int, error) {
	if cfg.Strategy == config.ContentLevel {
		return ceilDiv(totalSize, cfg.MaxChunkSize), nil
	}

	parts := 1 // the primary
	for _, mc := range checkpoint.MessageChannels(cp) {
		serialized, err := jsonval.Marshal(mc.Object)
		if err != nil {
			return 0, fmt.Errorf("channel %s: %w", mc.Name, err)
		}
		parts += ceilDiv(len(serialized), cfg.MaxChunkSize)
	}
	return parts, nil
}

func ceilDiv(numerator, denominator int) int {
	if denominator <= 0 {
		return 0
	}
	return (numerator + denominator - 1) / denominator
}

// CanSplit reports whether cp can be sharded using strategy.
// CONTENT_LEVEL can always shard (it is opaque to the checkpoint's
// structure). MESSAGE_LEVEL requires at least one non-empty
// message-bearing channel whose first min(5, N) messages all
// round-trip through the canonical serializer.
func CanSplit(cp *jsonval.Object, strategy config.Strategy) model.CanSplitVerdict {
	if strategy == config.ContentLevel {
		return model.CanSplitVerdict{OK: true}
	}

	channels := checkpoint.MessageChannels(cp)
	found := false
	for _, mc := range channels {
		if len(mc.Messages) == 0 {
			continue
		}
		found = true
		sampleSize := len(mc.Messages)
		if sampleSize > 5 {
			sampleSize = 5
		}
		for i := 0; i < sampleSize; i++ {
			if _, err := jsonval.Marshal(mc.Messages[i]); err != nil {
				return model.CanSplitVerdict{
					OK:     false,
					Reason: fmt.Sprintf("Message %d in channel %s is not serializable", i, mc.Name),
				}
			}
		}
	}
	if !found {
		return model.CanSplitVerdict{OK: false, Reason: "No messages found to split"}
	}
	return model.CanSplitVerdict{OK: true}
}
