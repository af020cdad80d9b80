package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-splitter/internal/adapter"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [checkpoint.json]",
		Short: "Store a checkpoint, sharding it if it exceeds the configured threshold",
		Long:  "Store a checkpoint for a thread. The checkpoint JSON is read from a file argument or stdin; an empty metadata object is used unless --meta names a file.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runPut,
	}

	cmd.Flags().StringP("thread", "t", "", "Thread ID (required)")
	cmd.Flags().StringP("record", "r", "", "Record ID (required)")
	cmd.Flags().String("meta", "", "Path to a metadata JSON file (default: {})")

	cmd.MarkFlagRequired("thread")
	cmd.MarkFlagRequired("record")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	threadID, _ := cmd.Flags().GetString("thread")
	recordID, _ := cmd.Flags().GetString("record")
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

	a, closeFn, err := openAdapter()
	if err != nil {
		exitErr("open adapter", err)
	}
	defer closeFn()

	wasSplit, err := a.Put(cmd.Context(), threadID, recordID, cp, metadata)
	if err != nil {
		exitErr("put", err)
	}

	b, _ := json.Marshal(map[string]any{"threadId": threadID, "recordId": recordID, "wasSplit": wasSplit})
	fmt.Println(string(b))
}

func readInput(args []string) ([]byte, error) {
	if len(args) > 0 {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(os.Stdin)
}
