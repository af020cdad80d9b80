package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-splitter/internal/adapter"
	"github.com/rcliao/checkpoint-splitter/internal/sizer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyze [checkpoint.json]",
		Short: "Report a checkpoint's size breakdown without writing it",
		Long:  "Run the Sizer against a checkpoint and metadata file to show whether it would be split, and why, without touching the record store.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runAnalyze,
	}

	cmd.Flags().String("meta", "", "Path to a metadata JSON file (default: {})")

	RootCmd.AddCommand(cmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	metaPath, _ := cmd.Flags().GetString("meta")

	raw, err := readInput(args)
	if err != nil {
		exitErr("read checkpoint", err)
	}
	cp, err := adapter.DecodeCheckpoint(raw)
	if err != nil {
		exitErr("decode checkpoint", err)
	}

	metaRaw := []byte("{}")
	if metaPath != "" {
		metaRaw, err = os.ReadFile(metaPath)
		if err != nil {
			exitErr("read metadata", err)
		}
	}
	metadata, err := adapter.DecodeCheckpoint(metaRaw)
	if err != nil {
		exitErr("decode metadata", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	analysis, err := sizer.Analyze(cp, metadata, cfg)
	if err != nil {
		exitErr("analyze", err)
	}

	verdict := sizer.CanSplit(cp, cfg.Strategy)

	b, _ := json.MarshalIndent(map[string]any{
		"analysis": analysis,
		"canSplit": verdict,
	}, "", "  ")
	fmt.Println(string(b))
}
