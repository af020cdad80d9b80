// Package cli implements the checkpointctl commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-splitter/internal/adapter"
	"github.com/rcliao/checkpoint-splitter/internal/config"
	"github.com/rcliao/checkpoint-splitter/internal/recordstore"
	"github.com/rcliao/checkpoint-splitter/internal/recordstore/memstore"
	"github.com/rcliao/checkpoint-splitter/internal/recordstore/pebblestore"
	"github.com/rcliao/checkpoint-splitter/internal/recordstore/sqlitestore"
)

var (
	backendFlag string
	dbPathFlag  string
	configFlag  string
	envFlag     string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "checkpointctl",
	Short: "Inspect and exercise the checkpoint splitting/reassembly engine",
	Long:  "A CLI for the checkpoint splitting engine: put/get/list/rm logical records through the Storage Adapter, and analyze a checkpoint's size without writing it.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "memory", "Record store backend: memory, sqlite, pebble")
	RootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "Database path (required for sqlite/pebble backends)")
	RootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to a YAML config file")
	RootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "Path to a .env file")
}

func loadConfig() (config.SplitConfig, error) {
	return config.Load(configFlag, envFlag)
}

func openRecordStore() (recordstore.RecordStore, func() error, error) {
	switch backendFlag {
	case "memory", "":
		return memstore.New(), func() error { return nil }, nil
	case "sqlite":
		if dbPathFlag == "" {
			return nil, nil, fmt.Errorf("--db is required for the sqlite backend")
		}
		s, err := sqlitestore.Open(dbPathFlag)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "pebble":
		if dbPathFlag == "" {
			return nil, nil, fmt.Errorf("--db is required for the pebble backend")
		}
		s, err := pebblestore.Open(dbPathFlag)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backendFlag)
	}
}

func openAdapter() (*adapter.Adapter, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, closeFn, err := openRecordStore()
	if err != nil {
		return nil, nil, err
	}
	a, err := adapter.New(store, cfg, nil, nil)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return a, closeFn, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
