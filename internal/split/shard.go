package split

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rcliao/checkpoint-splitter/internal/checkpoint"
	"github.com/rcliao/checkpoint-splitter/internal/config"
	"github.com/rcliao/checkpoint-splitter/internal/jsonval"
	"github.com/rcliao/checkpoint-splitter/internal/model"
	"github.com/rcliao/checkpoint-splitter/internal/sizer"
)

// auxKey formats an auxiliary shard's RecordID (spec §6.2).
func auxKey(prefix, originalRecordID string, partNumber int) string {
	return fmt.Sprintf("%s#%s#part#%04d", prefix, originalRecordID, partNumber)
}

// performSplit produces the ordered sequence of shard records for cp
// and metadata under cfg. now is passed in rather than read from the
// clock so callers can produce reproducible splitTimestamp values in
// tests.
func performSplit(threadID, recordID string, cp, metadata *jsonval.Object, cfg config.SplitConfig, now time.Time) ([]*model.StoredRecord, error) {
	switch cfg.Strategy {
	case config.ContentLevel:
		return performContentLevelSplit(threadID, recordID, cp, metadata, cfg, now)
	default:
		return performMessageLevelSplit(threadID, recordID, cp, metadata, cfg, now)
	}
}

func performMessageLevelSplit(threadID, recordID string, cp, metadata *jsonval.Object, cfg config.SplitConfig, now time.Time) ([]*model.StoredRecord, error) {
	cpCopy := cp.Clone()
	if cpCopy == nil {
		cpCopy = jsonval.NewObject()
	}

	var auxiliaries []*model.StoredRecord
	partNumber := 0

	for _, mc := range checkpoint.MessageChannels(cp) {
		chunks, err := chunkMessages(mc.Messages, cfg.MaxChunkSize)
		if err != nil {
			return nil, err
		}

		startIdx := 0
		for _, chunk := range chunks {
			partNumber++
			messagesData, err := jsonval.Marshal(chunk)
			if err != nil {
				return nil, fmt.Errorf("marshal message chunk in channel %s: %w", mc.Name, err)
			}
			endIdx := startIdx + len(chunk) - 1

			aux := &model.StoredRecord{
				ThreadID: threadID,
				RecordID: auxKey(cfg.SplitRecordPrefix, recordID, partNumber),
				IsSplit:  true,
				MessageSplitData: &model.MessageSplitData{
					ChannelName:       mc.Name,
					StartMessageIndex: startIdx,
					EndMessageIndex:   endIdx,
					MessagesData:      messagesData,
					TotalMessages:     len(mc.Messages),
					ChannelVersion:    checkpoint.ChannelVersion(mc.Object),
				},
				SplitMetadata: &model.SplitMetadata{
					OriginalRecordID: recordID,
					PartNumber:       partNumber,
					Strategy:         model.MessageLevel,
					SplitTimestamp:   now,
					PartSize:         len(messagesData),
					Checksum:         sizer.Checksum(messagesData),
				},
			}
			auxiliaries = append(auxiliaries, aux)
			startIdx = endIdx + 1
		}

		// Strip messages from the copy that becomes the primary payload.
		if channelVal, ok := cpCopy.Get(mc.Name); ok {
			if channelObj, ok := channelVal.(*jsonval.Object); ok {
				checkpoint.SetMessages(channelObj, []any{})
			}
		}
	}

	cpSerialized, err := jsonval.Marshal(cpCopy)
	if err != nil {
		return nil, fmt.Errorf("marshal stripped checkpoint: %w", err)
	}
	metaSerialized, err := jsonval.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	combined := append(append([]byte{}, cpSerialized...), metaSerialized...)

	totalParts := len(auxiliaries) + 1
	originalSize := len(combined)

	primary := &model.StoredRecord{
		ThreadID:   threadID,
		RecordID:   recordID,
		Checkpoint: cpSerialized,
		Metadata:   metaSerialized,
		IsSplit:    true,
		SplitMetadata: &model.SplitMetadata{
			OriginalRecordID: recordID,
			TotalParts:       totalParts,
			PartNumber:       0,
			Strategy:         model.MessageLevel,
			SplitTimestamp:   now,
			OriginalSize:     originalSize,
			PartSize:         len(cpSerialized) + len(metaSerialized),
			Checksum:         sizer.Checksum(combined),
		},
	}

	for _, aux := range auxiliaries {
		aux.SplitMetadata.TotalParts = totalParts
		aux.SplitMetadata.OriginalSize = originalSize
	}

	// Primary first: minimizes the window where a stale primary is
	// visible without its auxiliaries (spec §4.2.2).
	return append([]*model.StoredRecord{primary}, auxiliaries...), nil
}

// chunkMessages partitions messages into size-bounded chunks using a
// greedy accumulator (spec §4.2.2a): a message is added to the current
// chunk unless doing so would exceed maxChunkSize and the chunk is
// already non-empty, in which case the chunk is sealed and a new one
// started. A single oversized message occupies a chunk by itself.
func chunkMessages(messages []any, maxChunkSize int) ([][]any, error) {
	var chunks [][]any
	var current []any
	currentBytes := 0

	for _, msg := range messages {
		serialized, err := jsonval.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal message: %w", err)
		}
		msgBytes := len(serialized)

		if len(current) > 0 && currentBytes+msgBytes > maxChunkSize {
			chunks = append(chunks, current)
			current = nil
			currentBytes = 0
		}
		current = append(current, msg)
		currentBytes += msgBytes
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks, nil
}

func performContentLevelSplit(threadID, recordID string, cp, metadata *jsonval.Object, cfg config.SplitConfig, now time.Time) ([]*model.StoredRecord, error) {
	wrapper := jsonval.NewObject()
	wrapper.Set("checkpoint", cp)
	wrapper.Set("metadata", metadata)

	raw, err := jsonval.Marshal(wrapper)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint+metadata: %w", err)
	}
	originalSize := len(raw)

	encoded := base64.StdEncoding.EncodeToString(raw)

	var chunks []string
	for i := 0; i < len(encoded); i += cfg.MaxChunkSize {
		end := i + cfg.MaxChunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunks = append(chunks, encoded[i:end])
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	totalParts := len(chunks)
	records := make([]*model.StoredRecord, totalParts)
	for i, chunkData := range chunks {
		partNumber := i + 1
		id := recordID
		if partNumber > 1 {
			id = auxKey(cfg.SplitRecordPrefix, recordID, partNumber)
		}
		records[i] = &model.StoredRecord{
			ThreadID: threadID,
			RecordID: id,
			IsSplit:  true,
			ContentSplitData: &model.ContentSplitData{
				ChunkData: chunkData,
				Encoding:  "base64",
			},
			SplitMetadata: &model.SplitMetadata{
				OriginalRecordID: recordID,
				TotalParts:       totalParts,
				PartNumber:       partNumber,
				Strategy:         model.ContentLevel,
				SplitTimestamp:   now,
				OriginalSize:     originalSize,
				PartSize:         len(chunkData),
				Checksum:         sizer.Checksum([]byte(chunkData)),
			},
		}
	}
	return records, nil
}
