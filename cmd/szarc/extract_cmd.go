// cmd/szarc/extract_cmd.go

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmreyno/7z-ffi-sdk/pkg/extract"
	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

func extractCmd() *cobra.Command {
	var outputDir string
	var passwordArg string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "extract <archive> [output_dir]",
		Short: "Extract a chunked archive",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				outputDir = args[1]
			}
			password, err := resolvePassword(cmd, passwordArg, false)
			if err != nil {
				return err
			}
			defer wipeBytes(password)

			opts := &extract.Options{
				ArchivePath: args[0],
				OutputDir:   outputDir,
				Password:    password,
			}

			progress, done := cliProgress(quiet)
			start := time.Now()
			result, err := extract.Run(cmd.Context(), opts, progress)
			done(err)
			if err != nil {
				return err
			}

			fmt.Printf("\nSummary:\n")
			fmt.Printf("  Files:       %d\n", result.FilesTotal)
			fmt.Printf("  Restored:    %s\n", szstream.FormatSize(result.BytesWritten))
			fmt.Printf("  Chunks:      %d\n", result.Chunks)
			if result.Volumes > 1 {
				fmt.Printf("  Volumes:     %d\n", result.Volumes)
			}
			fmt.Printf("  Elapsed:     %s\n", szstream.FormatDuration(time.Since(start)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "No progress bar")
	addPasswordFlag(cmd, &passwordArg)

	return cmd
}
