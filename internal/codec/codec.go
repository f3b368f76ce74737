// internal/codec/codec.go

// Package codec wraps the zstd entropy coder behind the process-wide
// lifecycle the engine expects: callers bracket all work between Open and
// Close, and concurrent jobs in one process share the same reference
// count instead of racing a boolean.
package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

var (
	mu       sync.Mutex
	refs     int
	decoder  *zstd.Decoder
	encoders map[szstream.Level]*zstd.Encoder
)

// Open initializes the shared codec state. Every Open must be paired
// with a Close; the underlying resources are released when the last
// reference is dropped.
func Open() error {
	mu.Lock()
	defer mu.Unlock()

	if refs == 0 {
		d, err := zstd.NewReader(nil)
		if err != nil {
			return fmt.Errorf("%w: init decoder: %v", szstream.ErrCompress, err)
		}
		decoder = d
		encoders = make(map[szstream.Level]*zstd.Encoder)
	}
	refs++
	return nil
}

// Close drops one reference taken by Open.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if refs == 0 {
		return
	}
	refs--
	if refs == 0 {
		decoder.Close()
		decoder = nil
		for _, e := range encoders {
			e.Close()
		}
		encoders = nil
	}
}

func opened() bool {
	mu.Lock()
	defer mu.Unlock()
	return refs > 0
}

// encoderLevel maps the 0-9 presets onto zstd encoder levels.
func encoderLevel(level szstream.Level) int {
	switch level {
	case szstream.LevelFastest:
		return 1
	case szstream.LevelFast:
		return 3
	case szstream.LevelNormal:
		return 7
	case szstream.LevelMaximum:
		return 15
	case szstream.LevelUltra:
		return 19
	default:
		return 7
	}
}

// encoderFor returns the shared encoder for a level, creating it on
// first use. EncodeAll pools its per-call state internally, so one
// encoder per level serves every worker without allocating encoder
// state per chunk.
func encoderFor(level szstream.Level) (*zstd.Encoder, error) {
	mu.Lock()
	defer mu.Unlock()

	if encoders == nil {
		return nil, fmt.Errorf("%w: codec not opened", szstream.ErrCompress)
	}
	if e, ok := encoders[level]; ok {
		return e, nil
	}
	e, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(encoderLevel(level))),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create encoder: %v", szstream.ErrCompress, err)
	}
	encoders[level] = e
	return e, nil
}

// Compress compresses one raw chunk at the given level. LevelStore
// returns the input unchanged. Pure with respect to the input for a
// fixed level.
func Compress(level szstream.Level, raw []byte) ([]byte, error) {
	if !opened() {
		return nil, fmt.Errorf("%w: codec not opened", szstream.ErrCompress)
	}
	if level == szstream.LevelStore {
		return raw, nil
	}

	enc, err := encoderFor(level)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(raw, nil), nil
}

// Decompress reverses Compress. origLen is the expected raw length from
// the frame header; a mismatch is reported as corruption.
func Decompress(level szstream.Level, payload []byte, origLen int) ([]byte, error) {
	mu.Lock()
	d := decoder
	mu.Unlock()
	if d == nil {
		return nil, fmt.Errorf("%w: codec not opened", szstream.ErrExtract)
	}

	if level == szstream.LevelStore {
		if len(payload) != origLen {
			return nil, fmt.Errorf("%w: stored chunk is %d bytes, want %d", szstream.ErrInvalidArchive, len(payload), origLen)
		}
		return payload, nil
	}

	raw, err := d.DecodeAll(payload, make([]byte, 0, origLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", szstream.ErrExtract, err)
	}
	if len(raw) != origLen {
		return nil, fmt.Errorf("%w: chunk decompressed to %d bytes, want %d", szstream.ErrInvalidArchive, len(raw), origLen)
	}
	return raw, nil
}
