// pkg/szstream/progress.go
package szstream

import (
	"sync"
	"time"
)

// Sample is one progress snapshot delivered to the caller.
type Sample struct {
	// Cumulative raw bytes processed across the whole job
	Processed uint64
	// Total raw bytes of the job
	Total uint64
	// Bytes processed of the file currently being worked on
	FileProcessed uint64
	// Size of the file currently being worked on
	FileTotal uint64
	// Name of the file currently being worked on
	FileName string
	// Smoothed throughput in bytes per second (0 until the first tick)
	Speed float64
	// Estimated time remaining; valid only when HasETA is true
	ETA    time.Duration
	HasETA bool
	// When the sample was taken
	Timestamp time.Time
}

// ProgressFunc receives throttled progress samples. It is always invoked
// from a single goroutine, in non-decreasing Processed order, and the
// final invocation before completion reports Processed == Total.
type ProgressFunc func(Sample)

// ewmaWeight is the weight of the instantaneous speed in the moving
// average; the remainder stays with the previous average.
const ewmaWeight = 0.3

// emitInterval bounds callback frequency regardless of chunk rate.
const emitInterval = time.Second

// Aggregator converts raw byte counters into throttled, ordered progress
// samples. All methods must be called from the same goroutine (the
// pipeline writer); the callback itself may fan out as it pleases.
type Aggregator struct {
	mu sync.Mutex

	total     uint64
	processed uint64

	fileName      string
	fileProcessed uint64
	fileTotal     uint64

	speed     float64
	haveSpeed bool
	lastEmit  time.Time
	lastBytes uint64

	cb  ProgressFunc
	now func() time.Time
}

// NewAggregator creates an aggregator for a job of total raw bytes.
// cb may be nil, in which case all updates are no-ops.
func NewAggregator(total uint64, cb ProgressFunc) *Aggregator {
	return &Aggregator{
		total: total,
		cb:    cb,
		now:   time.Now,
	}
}

// Seed records bytes already processed by a previous run before resume.
// Must be called before the first Advance.
func (a *Aggregator) Seed(processed uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processed = processed
	a.lastBytes = processed
}

// Advance adds n processed raw bytes attributed to the named file and
// emits a sample if at least emitInterval has elapsed since the last one.
func (a *Aggregator) Advance(n uint64, fileName string, fileProcessed, fileTotal uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.processed += n
	a.fileName = fileName
	a.fileProcessed = fileProcessed
	a.fileTotal = fileTotal

	if a.cb == nil {
		return
	}

	now := a.now()
	if a.lastEmit.IsZero() {
		// First update starts the clock without emitting, so the first
		// speed figure covers a full interval.
		a.lastEmit = now
		return
	}

	elapsed := now.Sub(a.lastEmit)
	if elapsed < emitInterval {
		return
	}

	instant := float64(a.processed-a.lastBytes) / elapsed.Seconds()
	if a.haveSpeed {
		a.speed = ewmaWeight*instant + (1-ewmaWeight)*a.speed
	} else {
		a.speed = instant
		a.haveSpeed = true
	}
	a.lastEmit = now
	a.lastBytes = a.processed

	a.cb(a.sampleLocked(now))
}

// Finish emits the terminal sample. Processed is forced to Total so the
// last callback always reports 100%.
func (a *Aggregator) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cb == nil {
		return
	}
	a.processed = a.total
	a.cb(a.sampleLocked(a.now()))
}

// Processed returns the cumulative raw bytes recorded so far.
func (a *Aggregator) Processed() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processed
}

func (a *Aggregator) sampleLocked(now time.Time) Sample {
	s := Sample{
		Processed:     a.processed,
		Total:         a.total,
		FileProcessed: a.fileProcessed,
		FileTotal:     a.fileTotal,
		FileName:      a.fileName,
		Speed:         a.speed,
		Timestamp:     now,
	}
	if a.speed > 0 && a.total >= a.processed {
		remaining := float64(a.total-a.processed) / a.speed
		s.ETA = time.Duration(remaining * float64(time.Second))
		s.HasETA = true
	}
	return s
}
