// pkg/szstream/helpers_test.go
package szstream

import (
	"errors"
	"testing"
	"time"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"0", 0},
		{"1024", 1024},
		{"1k", 1024},
		{"1K", 1024},
		{"64m", 64 * 1024 * 1024},
		{"64M", 64 * 1024 * 1024},
		{"2g", 2 * 1024 * 1024 * 1024},
		{"1t", 1 << 40},
		{"1.5g", 1610612736},
		{"0.5k", 512},
		{" 10m ", 10 * 1024 * 1024},
	}
	for _, tc := range cases {
		got, err := ParseSize(tc.in)
		if err != nil {
			t.Errorf("ParseSize(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSize(%q): expected %d, got %d", tc.in, tc.want, got)
		}
	}

	for _, bad := range []string{"", "m", "12x", "-5", "-1k", "1.5", "k10"} {
		if _, err := ParseSize(bad); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("ParseSize(%q): expected ErrInvalidParameter, got %v", bad, err)
		}
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{64 * 1024 * 1024, "64.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
		{2 << 40, "2.00 TB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.in); got != tc.want {
			t.Errorf("FormatSize(%d): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{3661 * time.Second, "1h 1m"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.in); got != tc.want {
			t.Errorf("FormatDuration(%v): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestTruncateLeft(t *testing.T) {
	if got := TruncateLeft("short", 30); got != "short" {
		t.Errorf("Short path modified: %q", got)
	}

	long := "/very/long/path/to/some/deeply/nested/file.txt"
	got := TruncateLeft(long, 20)
	if len(got) > 20 {
		t.Errorf("Truncated path too long: %d chars", len(got))
	}
	if got[:3] != "..." {
		t.Errorf("Expected ... prefix, got %q", got)
	}
}
