// pkg/compress/options.go
package compress

import (
	"fmt"
	"runtime"

	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

const (
	// DefaultChunkSize is 64 MiB, sized for multi-gigabyte inputs
	DefaultChunkSize = 64 * 1024 * 1024

	// MinChunkSize keeps frame overhead negligible
	MinChunkSize = 64 * 1024

	// MaxChunkSize bounds per-worker memory
	MaxChunkSize = 1024 * 1024 * 1024
)

// Options configures a compression run. Immutable once the run starts.
type Options struct {
	// Logical archive path; the volume manager appends .NNN suffixes
	// when splitting
	ArchivePath string

	// Ordered list of input files. Order defines the byte order of the
	// stream.
	Files []string

	// Compression level preset
	Level szstream.Level

	// Chunk size in bytes. Default: 64 MiB.
	ChunkSize uint64

	// Split size in bytes; 0 disables splitting
	SplitSize uint64

	// Worker count; 0 auto-detects from available parallelism
	Threads int

	// Directory for scratch files (checkpoint staging). Must be on the
	// same filesystem as the archive. Empty: alongside the archive.
	TempDir string

	// Password enables encryption when non-empty. The run wipes key
	// material derived from it on every exit path.
	Password []byte

	// Resume continues from the archive's checkpoint. The checkpoint
	// must exist and match this job; its chunk size, level, and split
	// size take precedence so the stream stays self-consistent.
	Resume bool
}

// Validate checks the options and applies defaults.
func (o *Options) Validate() error {
	if o.ArchivePath == "" {
		return fmt.Errorf("%w: archive path is required", szstream.ErrInvalidParameter)
	}
	if len(o.Files) == 0 {
		return fmt.Errorf("%w: at least one input file is required", szstream.ErrInvalidParameter)
	}
	if !o.Level.Valid() {
		return fmt.Errorf("%w: level %d", szstream.ErrInvalidParameter, o.Level)
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkSize < MinChunkSize || o.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk size %d outside [%d, %d]", szstream.ErrInvalidParameter, o.ChunkSize, MinChunkSize, MaxChunkSize)
	}
	if o.SplitSize > 0 && o.SplitSize < MinChunkSize {
		return fmt.Errorf("%w: split size %d smaller than %d", szstream.ErrInvalidParameter, o.SplitSize, MinChunkSize)
	}
	if o.Threads <= 0 {
		o.Threads = runtime.NumCPU()
	}
	return nil
}
