// cmd/szarc/resume_cmd.go

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmreyno/7z-ffi-sdk/internal/checkpoint"
	"github.com/tmreyno/7z-ffi-sdk/pkg/compress"
	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

func resumeCmd() *cobra.Command {
	var threads int
	var passwordArg string
	var tempDir string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "resume <archive>",
		Short: "Continue an interrupted compression from its checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive := args[0]

			// The checkpoint records the full job, so the input list does
			// not have to be repeated on the command line.
			ck, err := checkpoint.Load(archive)
			if errors.Is(err, checkpoint.ErrNotFound) {
				return fmt.Errorf("%w: no checkpoint for %s", szstream.ErrInvalidResume, archive)
			}
			if err != nil {
				return err
			}

			password, err := resolvePassword(cmd, passwordArg, false)
			if err != nil {
				return err
			}
			if ck.Encrypted && password == nil {
				password, err = promptPassword("Password: ")
				if err != nil {
					return err
				}
			}
			defer wipeBytes(password)

			files := make([]string, len(ck.Files))
			for i, f := range ck.Files {
				files[i] = f.Path
			}

			opts := &compress.Options{
				ArchivePath: archive,
				Files:       files,
				Level:       szstream.Level(ck.Level),
				ChunkSize:   ck.ChunkSize,
				SplitSize:   ck.SplitSize,
				Threads:     threads,
				TempDir:     tempDir,
				Password:    password,
				Resume:      true,
			}

			progress, done := cliProgress(quiet)
			start := time.Now()
			result, err := compress.Run(cmd.Context(), opts, progress)
			done(err)

			if errors.Is(err, szstream.ErrCancelled) {
				fmt.Printf("\nInterrupted again. Continue with: szarc resume %s\n", archive)
				return err
			}
			if err != nil {
				return err
			}

			fmt.Printf("\nResumed and finished:\n")
			fmt.Printf("  Read this run:    %s\n", szstream.FormatSize(result.BytesRead))
			fmt.Printf("  Written this run: %s\n", szstream.FormatSize(result.BytesWritten))
			fmt.Printf("  Chunks this run:  %d\n", result.Chunks)
			if result.Volumes > 1 {
				fmt.Printf("  Volumes:          %d\n", result.Volumes)
			}
			fmt.Printf("  Elapsed:          %s\n", szstream.FormatDuration(time.Since(start)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "Worker threads (0 = all CPUs)")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "", "Scratch directory (same filesystem as the archive)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "No progress bar")
	addPasswordFlag(cmd, &passwordArg)

	return cmd
}
