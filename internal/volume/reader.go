// internal/volume/reader.go
package volume

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

// Reader presents a sequence of volume files as one contiguous stream.
// It accepts either an unsplit archive path, the base path of a split
// archive, or the path of its first volume (base.001).
type Reader struct {
	base  string
	width int
	split bool

	num  int
	file *os.File
}

// OpenReader opens the archive at path. Resolution order: the exact
// path (unsplit archive, or the explicit first volume of a split set),
// then path.NNN probing the suffix widths the writer produces.
func OpenReader(path string) (*Reader, error) {
	base, width, num, suffixed := splitSuffix(path)

	if suffixed && num == 1 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", szstream.ErrOpenFile, err)
		}
		return &Reader{base: base, width: width, split: true, num: 1, file: f}, nil
	}
	if suffixed {
		// A later volume of an existing split set is not a valid entry
		// point. An unsplit archive whose name merely ends in digits
		// has no volume 1 sibling and resolves by exact path below.
		if _, err := os.Stat(Name(base, 1, width, 1)); err == nil {
			return nil, fmt.Errorf("%w: extraction must start at volume 1, got %s", szstream.ErrInvalidParameter, path)
		}
	}

	if f, err := os.Open(path); err == nil {
		return &Reader{base: path, num: 1, file: f}, nil
	}

	for w := minDigits; w <= maxDigits; w++ {
		if f, err := os.Open(Name(path, 1, w, 1)); err == nil {
			return &Reader{base: path, width: w, split: true, num: 1, file: f}, nil
		}
	}
	if suffixed {
		return nil, fmt.Errorf("%w: extraction must start at volume 1, got %s", szstream.ErrInvalidParameter, path)
	}
	return nil, fmt.Errorf("%w: neither %s nor %s", szstream.ErrOpenFile, path, Name(path, 1, minDigits, 1))
}

// splitSuffix recognizes a trailing .NNN volume suffix (>= 3 digits).
func splitSuffix(path string) (base string, width, num int, ok bool) {
	ext := filepath.Ext(path)
	if len(ext) < minDigits+1 {
		return "", 0, 0, false
	}
	digits := ext[1:]
	n := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", 0, 0, false
		}
		n = n*10 + int(c-'0')
	}
	return strings.TrimSuffix(path, ext), len(digits), n, true
}

// Read implements io.Reader, rolling to the next volume on EOF.
func (r *Reader) Read(p []byte) (int, error) {
	for {
		n, err := r.file.Read(p)
		if n > 0 || err != io.EOF {
			return n, err
		}
		if !r.split {
			return 0, io.EOF
		}
		next := Name(r.base, 1, r.width, r.num+1)
		f, openErr := os.Open(next)
		if openErr != nil {
			return 0, io.EOF
		}
		r.file.Close()
		r.file = f
		r.num++
	}
}

// Volume reports the number of the volume currently being read.
func (r *Reader) Volume() int {
	return r.num
}

// Close releases the current volume file.
func (r *Reader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
