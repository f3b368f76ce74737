package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "szarc",
	Short:   "szarc - streaming chunked archiver with split volumes and encryption",
	Long:    "szarc compresses large file sets into seekable chunked archives with optional AES-256 encryption, split volumes, and crash-safe resume.",
	Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),

	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// The first interrupt requests a clean stop: the engine flushes
	// in-flight chunks and checkpoints. A second interrupt kills the
	// process the default way.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, szstream.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		versionCmd(),
		compressCmd(),
		extractCmd(),
		resumeCmd(),
		testCmd(),
	)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("szarc %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		},
	}
}
