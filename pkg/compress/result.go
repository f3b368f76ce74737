// pkg/compress/result.go
package compress

// Result contains statistics about a compression run. It is returned
// alongside ErrCancelled so an interrupted run still reports how far it
// got.
type Result struct {
	// Files in the job
	FilesTotal int

	// Raw bytes read and compressed in this run (excludes bytes already
	// flushed by a previous run when resuming)
	BytesRead uint64

	// Archive bytes written in this run, framing included
	BytesWritten uint64

	// Chunks flushed in this run
	Chunks uint64

	// Number of the last volume written
	Volumes int

	// True when the run continued from a checkpoint
	Resumed bool
}

// Ratio returns archive bytes written per raw byte read, as a percentage.
func (r *Result) Ratio() float64 {
	if r.BytesRead == 0 {
		return 0
	}
	return float64(r.BytesWritten) / float64(r.BytesRead) * 100
}
