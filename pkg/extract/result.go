// pkg/extract/result.go
package extract

// Result contains statistics about an extraction or verification run.
type Result struct {
	// Files recorded in the archive header
	FilesTotal int

	// Archive payload bytes consumed (frames, headers excluded)
	BytesRead uint64

	// Raw bytes restored (or, under VerifyOnly, checked)
	BytesWritten uint64

	// Chunks decoded
	Chunks uint64

	// True when the archive was encrypted
	Encrypted bool

	// Number of the last volume read
	Volumes int
}
