package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rcliao/checkpoint-splitter/internal/cli"
	"github.com/rcliao/checkpoint-splitter/internal/telemetry"
)

func main() {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, "checkpointctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tracing disabled: %v\n", err)
	} else {
		defer tp.Shutdown(ctx)
	}

	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
