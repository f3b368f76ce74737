// pkg/szstream/helpers.go
package szstream

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// FormatSize formats bytes into a human-readable string
func FormatSize(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatDuration formats a duration as compact h/m/s text for summaries
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}

// ParseSize parses a size argument with optional binary suffix k/m/g/t
// (case-insensitive). A bare number is bytes. Fractional values are
// allowed with a suffix ("1.5g").
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty size", ErrInvalidParameter)
	}

	mult := uint64(1)
	last := s[len(s)-1]
	switch last {
	case 'k', 'K':
		mult = 1 << 10
	case 'm', 'M':
		mult = 1 << 20
	case 'g', 'G':
		mult = 1 << 30
	case 't', 'T':
		mult = 1 << 40
	}
	num := s
	if mult > 1 {
		num = s[:len(s)-1]
	}

	if mult == 1 {
		v, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: size %q", ErrInvalidParameter, s)
		}
		return v, nil
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%w: size %q", ErrInvalidParameter, s)
	}
	return uint64(f * float64(mult)), nil
}

// TruncateLeft truncates a path from the left to fit maxLen, preserving the filename
func TruncateLeft(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	filename := filepath.Base(path)
	if len(filename) >= maxLen-3 {
		return "..." + filename[len(filename)-(maxLen-3):]
	}

	return "..." + path[len(path)-(maxLen-3):]
}

// ProgressBarCallback creates a ProgressFunc that renders a single
// archive-wide progress bar. Call Wait() on the returned container after
// the run finishes to let the bar flush its final state.
func ProgressBarCallback(total uint64) (ProgressFunc, *mpb.Progress) {
	progress := mpb.New(
		mpb.WithWidth(60),
		mpb.WithRefreshRate(250 * time.Millisecond),
	)

	var mu sync.Mutex
	var current Sample

	status := func(decor.Statistics) string {
		mu.Lock()
		defer mu.Unlock()
		name := TruncateLeft(current.FileName, 30)
		if name == "" {
			name = "-"
		}
		eta := "--:--"
		if current.HasETA {
			eta = FormatDuration(current.ETA)
		}
		return fmt.Sprintf(" %s/s | ETA %s | %s", FormatSize(uint64(current.Speed)), eta, name)
	}

	bar := progress.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WC{W: 20}),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Any(status),
		),
	)

	callback := func(s Sample) {
		mu.Lock()
		current = s
		mu.Unlock()
		bar.SetCurrent(int64(s.Processed))
		if s.Processed >= s.Total {
			bar.SetTotal(int64(s.Total), true)
		}
	}

	return callback, progress
}
