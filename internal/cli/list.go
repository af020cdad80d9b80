package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logical record IDs for a thread",
		Long:  "List every logical record ID under a thread, excluding auxiliary shard keys.",
		Run:   runList,
	}

	cmd.Flags().StringP("thread", "t", "", "Thread ID (required)")
	cmd.MarkFlagRequired("thread")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	threadID, _ := cmd.Flags().GetString("thread")

	a, closeFn, err := openAdapter()
	if err != nil {
		exitErr("open adapter", err)
	}
	defer closeFn()

	ids, err := a.List(cmd.Context(), threadID)
	if err != nil {
		exitErr("list", err)
	}

	for _, id := range ids {
		fmt.Println(id)
	}
}
