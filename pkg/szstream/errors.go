// pkg/szstream/errors.go
package szstream

import "errors"

// Every terminal failure of a run wraps exactly one of these sentinels,
// so callers can classify with errors.Is regardless of how deep the
// failure originated.
var (
	// ErrOpenFile is returned when an input file or volume cannot be opened
	ErrOpenFile = errors.New("open file failed")

	// ErrInvalidArchive is returned when the archive framing is corrupt
	// or has an unknown magic/version
	ErrInvalidArchive = errors.New("invalid or corrupt archive")

	// ErrMemory is returned when a frame declares sizes that would require
	// an unreasonable allocation
	ErrMemory = errors.New("memory allocation failed")

	// ErrExtract is returned when decompression of a chunk fails
	ErrExtract = errors.New("extract failed")

	// ErrCompress is returned when compression of a chunk fails
	ErrCompress = errors.New("compress failed")

	// ErrInvalidParameter is returned for invalid options
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotImplemented is returned for unsupported feature combinations
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidResume is returned when a checkpoint is missing, has an
	// unknown schema version, or does not match the requested job
	ErrInvalidResume = errors.New("invalid resume checkpoint")

	// ErrWrongPasswordOrCorrupt is returned when decryption produces
	// structurally invalid padding, or when a decrypted chunk fails its
	// content digest. A wrong password and a corrupted archive are not
	// distinguishable at this layer.
	ErrWrongPasswordOrCorrupt = errors.New("wrong password or corrupt data")

	// ErrCancelled is returned when a run stops on a cancellation request.
	// The job is resumable; this is not a failure.
	ErrCancelled = errors.New("cancelled")
)
