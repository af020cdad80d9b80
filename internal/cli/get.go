package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Retrieve a checkpoint, transparently reassembling it if it was split",
		Run:   runGet,
	}

	cmd.Flags().StringP("thread", "t", "", "Thread ID (required)")
	cmd.Flags().StringP("record", "r", "", "Record ID (required)")

	cmd.MarkFlagRequired("thread")
	cmd.MarkFlagRequired("record")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	threadID, _ := cmd.Flags().GetString("thread")
	recordID, _ := cmd.Flags().GetString("record")

	a, closeFn, err := openAdapter()
	if err != nil {
		exitErr("open adapter", err)
	}
	defer closeFn()

	cp, metadata, err := a.Get(cmd.Context(), threadID, recordID)
	if err != nil {
		exitErr("get", err)
	}
	if cp == nil {
		exitErr("get", fmt.Errorf("no record at %s/%s", threadID, recordID))
	}

	b, _ := json.MarshalIndent(map[string]any{"checkpoint": cp, "metadata": metadata}, "", "  ")
	fmt.Println(string(b))
}
