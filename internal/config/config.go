// Package config defines and validates SplitConfig, the engine's only
// external configuration surface (spec §6.3). Loading configuration
// from files/env/flags is a CLI-only concern handled by loader.go; the
// engine itself only ever consumes an already-validated SplitConfig.
package config

import (
	"strconv"

	"github.com/rcliao/checkpoint-splitter/internal/model"
)

// Strategy re-exports model.Strategy so callers don't need to import
// internal/model just to name a strategy.
type Strategy = model.Strategy

const (
	MessageLevel = model.MessageLevel
	ContentLevel = model.ContentLevel
)

// SplitConfig configures the splitting/reassembly engine. Zero-value
// fields are not valid configuration; use Default() and override, or
// build one and call Validate.
type SplitConfig struct {
	Enabled              bool
	MaxSizeThreshold     int
	Strategy             Strategy
	MaxChunkSize         int
	EnableSizeMonitoring bool
	SplitRecordPrefix    string
	MaxRetries           int
	OperationTimeoutMs   int
}

// Bounds from spec §6.3.
const (
	MinMaxSizeThreshold = 100_000
	MaxMaxSizeThreshold = 400_000
	MinMaxChunkSize     = 50_000
	MaxMaxChunkSize     = 350_000
	MinRetries          = 1
	MaxRetries          = 10
	MinOperationTimeoutMs = 5_000
	MaxOperationTimeoutMs = 120_000
)

// Default returns the spec's default configuration.
func Default() SplitConfig {
	return SplitConfig{
		Enabled:              false,
		MaxSizeThreshold:     358_400,
		Strategy:             MessageLevel,
		MaxChunkSize:         307_200,
		EnableSizeMonitoring: true,
		SplitRecordPrefix:    "split",
		MaxRetries:           3,
		OperationTimeoutMs:   30_000,
	}
}

// Validate checks every bound from spec §6.3 and returns a
// *model.ConfigError describing the first violation found.
func (c SplitConfig) Validate() error {
	if c.MaxSizeThreshold < MinMaxSizeThreshold || c.MaxSizeThreshold > MaxMaxSizeThreshold {
		return &model.ConfigError{Field: "maxSizeThreshold", Reason: rangeReason(MinMaxSizeThreshold, MaxMaxSizeThreshold)}
	}
	if c.Strategy != MessageLevel && c.Strategy != ContentLevel {
		return &model.ConfigError{Field: "strategy", Reason: "must be MESSAGE_LEVEL or CONTENT_LEVEL"}
	}
	if c.MaxChunkSize < MinMaxChunkSize || c.MaxChunkSize > MaxMaxChunkSize {
		return &model.ConfigError{Field: "maxChunkSize", Reason: rangeReason(MinMaxChunkSize, MaxMaxChunkSize)}
	}
	if c.SplitRecordPrefix == "" {
		return &model.ConfigError{Field: "splitRecordPrefix", Reason: "must be non-empty"}
	}
	if c.MaxRetries < MinRetries || c.MaxRetries > MaxRetries {
		return &model.ConfigError{Field: "maxRetries", Reason: rangeReason(MinRetries, MaxRetries)}
	}
	if c.OperationTimeoutMs < MinOperationTimeoutMs || c.OperationTimeoutMs > MaxOperationTimeoutMs {
		return &model.ConfigError{Field: "operationTimeout", Reason: rangeReason(MinOperationTimeoutMs, MaxOperationTimeoutMs)}
	}
	return nil
}

func rangeReason(min, max int) string {
	return "must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)
}
