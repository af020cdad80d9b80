package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show a record's storage footprint and shard count",
		Run:   runStats,
	}

	cmd.Flags().StringP("thread", "t", "", "Thread ID (required)")
	cmd.Flags().StringP("record", "r", "", "Record ID (omit for thread-wide stats)")

	cmd.MarkFlagRequired("thread")

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	threadID, _ := cmd.Flags().GetString("thread")
	recordID, _ := cmd.Flags().GetString("record")

	a, closeFn, err := openAdapter()
	if err != nil {
		exitErr("open adapter", err)
	}
	defer closeFn()

	if recordID == "" {
		stats, err := a.ThreadStats(cmd.Context(), threadID)
		if err != nil {
			exitErr("stats", err)
		}
		b, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(b))
		return
	}

	stats, err := a.Stats(cmd.Context(), threadID, recordID)
	if err != nil {
		exitErr("stats", err)
	}
	if stats == nil {
		exitErr("stats", fmt.Errorf("no record at %s/%s", threadID, recordID))
	}

	b, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(b))
}
