package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete a thread's records, including any shards",
		Run:   runRm,
	}

	cmd.Flags().StringP("thread", "t", "", "Thread ID (required)")
	cmd.MarkFlagRequired("thread")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	threadID, _ := cmd.Flags().GetString("thread")

	a, closeFn, err := openAdapter()
	if err != nil {
		exitErr("open adapter", err)
	}
	defer closeFn()

	if err := a.DeleteThread(cmd.Context(), threadID); err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"threadId":%q}`+"\n", threadID)
}
