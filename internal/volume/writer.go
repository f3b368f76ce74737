// internal/volume/writer.go

// Package volume manages the physical output files of a split archive:
// boundary decisions, .NNN naming, and byte accounting. The writer is
// owned by exactly one goroutine; no other component writes volume files.
package volume

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

// State of a volume.
type State int

const (
	StateOpen State = iota
	StateFull
	StateClosed
)

// minDigits is the minimum zero-padding width of the volume suffix.
const minDigits = 3

// maxDigits bounds the suffix widths the reader probes; a uint64 volume
// count never needs more.
const maxDigits = 20

// Writer appends indivisible records to a sequence of volume files. With
// a zero split size it writes a single file at the base path.
type Writer struct {
	base  string
	split uint64
	width int

	num    int
	offset uint64
	file   *os.File

	// OnClose runs after a volume is synced and closed, before the next
	// one opens. Volume closures and checkpoint writes serialize here.
	OnClose func(volume int) error
}

// SuffixWidth returns the zero-padding width for an archive expected to
// span expectVolumes volumes, minimum 3 digits.
func SuffixWidth(expectVolumes uint64) int {
	width := len(strconv.FormatUint(expectVolumes, 10))
	if width < minDigits {
		width = minDigits
	}
	return width
}

// Name returns the path of volume num for the given base path. A zero
// split size means an unsplit archive stored at the base path itself.
func Name(base string, split uint64, width, num int) string {
	if split == 0 {
		return base
	}
	return fmt.Sprintf("%s.%0*d", base, width, num)
}

// NewWriter creates a writer and opens volume 1. totalInput sizes the
// suffix width; compression only shrinks, so the raw input total bounds
// the volume count.
func NewWriter(base string, split, totalInput uint64) (*Writer, error) {
	width := minDigits
	if split > 0 {
		width = SuffixWidth(totalInput/split + 1)
	}
	w := &Writer{base: base, split: split, width: width}
	if err := w.open(1); err != nil {
		return nil, err
	}
	return w, nil
}

// Resume reopens the active volume of an interrupted run, truncating it
// to the checkpointed durable offset before appending.
func Resume(base string, split, totalInput uint64, num int, offset uint64) (*Writer, error) {
	width := minDigits
	if split > 0 {
		width = SuffixWidth(totalInput/split + 1)
	}
	w := &Writer{base: base, split: split, width: width}

	path := Name(base, split, width, num)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", szstream.ErrOpenFile, err)
	}
	if err := f.Truncate(int64(offset)); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate %s: %w", path, err)
	}
	if _, err := f.Seek(int64(offset), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}

	w.file = f
	w.num = num
	w.offset = offset
	return w, nil
}

func (w *Writer) open(num int) error {
	path := Name(w.base, w.split, w.width, num)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", szstream.ErrOpenFile, err)
	}
	w.file = f
	w.num = num
	w.offset = 0
	return nil
}

// closeCurrent syncs and closes the open volume, then fires OnClose.
func (w *Writer) closeCurrent() error {
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync volume %d: %w", w.num, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close volume %d: %w", w.num, err)
	}
	w.file = nil
	if w.OnClose != nil {
		return w.OnClose(w.num)
	}
	return nil
}

// Write appends one record whole. If the record would push the open
// volume past the split size, that volume is closed first and the record
// goes into the next one. A record larger than the split size still goes
// into a volume of its own; that volume exceeds the split size because a
// record is indivisible.
func (w *Writer) Write(p []byte) (volume int, offset uint64, err error) {
	if w.split > 0 && w.offset > 0 && w.offset+uint64(len(p)) > w.split {
		if err := w.closeCurrent(); err != nil {
			return 0, 0, err
		}
		if err := w.open(w.num + 1); err != nil {
			return 0, 0, err
		}
	}

	offset = w.offset
	if _, err := w.file.Write(p); err != nil {
		return 0, 0, fmt.Errorf("write volume %d: %w", w.num, err)
	}
	w.offset += uint64(len(p))
	return w.num, offset, nil
}

// Position reports the active volume number and its byte offset.
func (w *Writer) Position() (volume int, offset uint64) {
	return w.num, w.offset
}

// Sync flushes the active volume to disk without closing it. Used
// before a cancellation checkpoint so the recorded offset is durable.
func (w *Writer) Sync() error {
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync volume %d: %w", w.num, err)
	}
	return nil
}

// Close finalizes the last volume.
func (w *Writer) Close() error {
	return w.closeCurrent()
}

// Count returns how many volumes have been opened so far.
func (w *Writer) Count() int {
	return w.num
}
