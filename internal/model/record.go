// Package model defines the data types shared by the sizer, splitter,
// reassembler, and storage adapter: stored records, split descriptors,
// and the analysis/result structures passed between them.
package model

import "time"

// Strategy selects how an oversized record is sharded.
type Strategy string

const (
	// MessageLevel shards by channel/message: a stripped primary plus
	// one auxiliary per size-bounded chunk of messages.
	MessageLevel Strategy = "MESSAGE_LEVEL"
	// ContentLevel shards the entire serialized-and-base64-encoded
	// record into opaque, fixed-size chunks.
	ContentLevel Strategy = "CONTENT_LEVEL"
)

// SplitMetadata is the sharding descriptor carried by every shard in a
// split set.
type SplitMetadata struct {
	OriginalRecordID string    `json:"originalRecordId"`
	TotalParts       int       `json:"totalParts"`
	PartNumber       int       `json:"partNumber"`
	Strategy         Strategy  `json:"strategy"`
	SplitTimestamp   time.Time `json:"splitTimestamp"`
	OriginalSize     int       `json:"originalSize"`
	PartSize         int       `json:"partSize"`
	Checksum         string    `json:"checksum,omitempty"`
}

// MessageSplitData is the auxiliary payload carried by a MESSAGE_LEVEL
// shard (absent on the primary and on CONTENT_LEVEL shards).
type MessageSplitData struct {
	ChannelName      string `json:"channelName"`
	StartMessageIndex int   `json:"startMessageIndex"`
	EndMessageIndex   int   `json:"endMessageIndex"`
	MessagesData      []byte `json:"messagesData"`
	TotalMessages     int    `json:"totalMessages"`
	ChannelVersion    string `json:"channelVersion,omitempty"`
}

// ContentSplitData is the auxiliary payload carried by a CONTENT_LEVEL
// shard.
type ContentSplitData struct {
	ChunkData string `json:"chunkData"`
	Encoding  string `json:"encoding"`
}

// StoredRecord is the unit persisted by a RecordStore. It represents
// either a non-sharded logical record or one shard of a sharded one.
type StoredRecord struct {
	ThreadID  string
	RecordID  string
	Checkpoint []byte // canonical-serialized; present on non-shard and on the MESSAGE_LEVEL primary
	Metadata   []byte // canonical-serialized; present alongside Checkpoint

	IsSplit bool

	SplitMetadata     *SplitMetadata
	MessageSplitData  *MessageSplitData
	ContentSplitData  *ContentSplitData
}

// SizeBreakdown reports the byte contribution of each logical
// component of a record.
type SizeBreakdown struct {
	Checkpoint int
	Metadata   int
	Overhead   int
}

// LargestChannel describes the message-bearing channel with the
// largest serialized footprint.
type LargestChannel struct {
	Name          string
	MessageCount  int
	EstimatedSize int
}

// SizeAnalysis is the Sizer's verdict on a (checkpoint, metadata) pair.
type SizeAnalysis struct {
	TotalSize        int
	ExceedsThreshold bool
	SizeBreakdown    SizeBreakdown
	LargestComponent string // "checkpoint" or "metadata"
	EstimatedParts   int
	LargestChannel   *LargestChannel // nil if no message-bearing channel
}

// CanSplitVerdict is the result of Sizer.CanSplit.
type CanSplitVerdict struct {
	OK     bool
	Reason string
}

// ReassemblyResult is returned by the reassembler's read path. Failures
// are represented as Success=false with explanatory Warnings rather
// than as a returned error, so the Storage Adapter can decide how to
// present a degraded result.
type ReassemblyResult struct {
	Success          bool
	Checkpoint       any // *jsonval.Object, decoded
	Metadata         any
	Warnings         []string
	ReassemblyTimeMs int64
	PartsReassembled int
	TotalExpectedParts int
}
