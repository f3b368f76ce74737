// cmd/szarc/test_cmd.go

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmreyno/7z-ffi-sdk/pkg/extract"
	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

func testCmd() *cobra.Command {
	var passwordArg string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "test <archive>",
		Short: "Verify an archive without extracting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := resolvePassword(cmd, passwordArg, false)
			if err != nil {
				return err
			}
			defer wipeBytes(password)

			opts := &extract.Options{
				ArchivePath: args[0],
				Password:    password,
				VerifyOnly:  true,
			}

			progress, done := cliProgress(quiet)
			start := time.Now()
			result, err := extract.Run(cmd.Context(), opts, progress)
			done(err)
			if err != nil {
				return err
			}

			fmt.Printf("\nArchive OK: %d files, %d chunks, %s, verified in %s\n",
				result.FilesTotal, result.Chunks,
				szstream.FormatSize(result.BytesWritten),
				szstream.FormatDuration(time.Since(start)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "No progress bar")
	addPasswordFlag(cmd, &passwordArg)

	return cmd
}
