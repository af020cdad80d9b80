package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors SplitConfig's shape for YAML decoding; fields are
// pointers so "unset" is distinguishable from "explicitly zero".
type fileConfig struct {
	Enabled              *bool   `yaml:"enabled"`
	MaxSizeThreshold     *int    `yaml:"maxSizeThreshold"`
	Strategy             *string `yaml:"strategy"`
	MaxChunkSize         *int    `yaml:"maxChunkSize"`
	EnableSizeMonitoring *bool   `yaml:"enableSizeMonitoring"`
	SplitRecordPrefix    *string `yaml:"splitRecordPrefix"`
	MaxRetries           *int    `yaml:"maxRetries"`
	OperationTimeoutMs   *int    `yaml:"operationTimeout"`
}

// Load builds a SplitConfig by layering, lowest precedence first:
// built-in defaults, an optional YAML file, an optional .env file, and
// environment variables named CHECKPOINT_SPLIT_*. It returns a
// validated SplitConfig or the first validation error encountered.
//
// This loader is a CLI-only concern (spec §1 places configuration
// loading out of the core's scope); the engine itself only ever
// consumes an already-validated SplitConfig.
func Load(yamlPath, envPath string) (SplitConfig, error) {
	cfg := Default()

	if yamlPath != "" {
		if err := applyYAMLFile(&cfg, yamlPath); err != nil {
			return SplitConfig{}, err
		}
	}

	if envPath != "" {
		// Missing .env is not an error — it's an optional override layer.
		_ = godotenv.Load(envPath)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return SplitConfig{}, err
	}
	return cfg, nil
}

func applyYAMLFile(cfg *SplitConfig, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Enabled != nil {
		cfg.Enabled = *fc.Enabled
	}
	if fc.MaxSizeThreshold != nil {
		cfg.MaxSizeThreshold = *fc.MaxSizeThreshold
	}
	if fc.Strategy != nil {
		cfg.Strategy = Strategy(*fc.Strategy)
	}
	if fc.MaxChunkSize != nil {
		cfg.MaxChunkSize = *fc.MaxChunkSize
	}
	if fc.EnableSizeMonitoring != nil {
		cfg.EnableSizeMonitoring = *fc.EnableSizeMonitoring
	}
	if fc.SplitRecordPrefix != nil {
		cfg.SplitRecordPrefix = *fc.SplitRecordPrefix
	}
	if fc.MaxRetries != nil {
		cfg.MaxRetries = *fc.MaxRetries
	}
	if fc.OperationTimeoutMs != nil {
		cfg.OperationTimeoutMs = *fc.OperationTimeoutMs
	}
	return nil
}

func applyEnv(cfg *SplitConfig) {
	if v := os.Getenv("CHECKPOINT_SPLIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	if v := os.Getenv("CHECKPOINT_SPLIT_MAX_SIZE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSizeThreshold = n
		}
	}
	if v := os.Getenv("CHECKPOINT_SPLIT_STRATEGY"); v != "" {
		cfg.Strategy = Strategy(v)
	}
	if v := os.Getenv("CHECKPOINT_SPLIT_MAX_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxChunkSize = n
		}
	}
	if v := os.Getenv("CHECKPOINT_SPLIT_RECORD_PREFIX"); v != "" {
		cfg.SplitRecordPrefix = v
	}
	if v := os.Getenv("CHECKPOINT_SPLIT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("CHECKPOINT_SPLIT_OPERATION_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OperationTimeoutMs = n
		}
	}
}
