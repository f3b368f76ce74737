// cmd/szarc/compress_cmd.go

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmreyno/7z-ffi-sdk/pkg/compress"
	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

func compressCmd() *cobra.Command {
	var levelArg int
	var chunkArg, splitArg string
	var threads int
	var passwordArg string
	var tempDir string
	var resume bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "compress <archive> <file>...",
		Short: "Compress files into a chunked archive",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := szstream.LevelFromInt(levelArg)
			if err != nil {
				return err
			}
			chunkSize, err := szstream.ParseSize(chunkArg)
			if err != nil {
				return fmt.Errorf("--chunk: %w", err)
			}
			var splitSize uint64
			if splitArg != "" {
				splitSize, err = szstream.ParseSize(splitArg)
				if err != nil {
					return fmt.Errorf("--split: %w", err)
				}
			}
			password, err := resolvePassword(cmd, passwordArg, true)
			if err != nil {
				return err
			}
			defer wipeBytes(password)

			opts := &compress.Options{
				ArchivePath: args[0],
				Files:       args[1:],
				Level:       level,
				ChunkSize:   chunkSize,
				SplitSize:   splitSize,
				Threads:     threads,
				TempDir:     tempDir,
				Password:    password,
				Resume:      resume,
			}

			progress, done := cliProgress(quiet)
			start := time.Now()
			result, err := compress.Run(cmd.Context(), opts, progress)
			done(err)

			if errors.Is(err, szstream.ErrCancelled) {
				fmt.Printf("\nInterrupted after %s of input. Continue with: szarc resume %s\n",
					szstream.FormatSize(result.BytesRead), opts.ArchivePath)
				return err
			}
			if err != nil {
				return err
			}

			fmt.Printf("\nSummary:\n")
			fmt.Printf("  Files:       %d\n", result.FilesTotal)
			fmt.Printf("  Read:        %s\n", szstream.FormatSize(result.BytesRead))
			fmt.Printf("  Written:     %s (%.1f%%)\n", szstream.FormatSize(result.BytesWritten), result.Ratio())
			fmt.Printf("  Chunks:      %d\n", result.Chunks)
			if result.Volumes > 1 {
				fmt.Printf("  Volumes:     %d\n", result.Volumes)
			}
			fmt.Printf("  Elapsed:     %s\n", szstream.FormatDuration(time.Since(start)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&levelArg, "level", "l", 5, "Compression level 0-9 (0=store, 5=normal, 9=ultra)")
	cmd.Flags().StringVar(&chunkArg, "chunk", "64m", "Chunk size (k/m/g/t suffixes)")
	cmd.Flags().StringVar(&splitArg, "split", "", "Split archive into volumes of this size")
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "Worker threads (0 = all CPUs)")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "", "Scratch directory (same filesystem as the archive)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue from this archive's checkpoint")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "No progress bar")
	addPasswordFlag(cmd, &passwordArg)

	return cmd
}
