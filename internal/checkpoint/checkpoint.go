// internal/checkpoint/checkpoint.go

// Package checkpoint persists the durable resume state of a run. A
// checkpoint only ever describes fully flushed volume data: it is
// written after a volume closes and after a cancellation sync, never
// while a write to the same volume is in flight.
package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/tmreyno/7z-ffi-sdk/internal/format"
	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

// SchemaVersion tags the on-disk encoding so future format changes are
// rejected instead of misparsed.
const SchemaVersion = 1

// Suffix is appended to the archive path to name the checkpoint file.
const Suffix = ".checkpoint"

// ErrNotFound is returned by Load when no checkpoint exists.
var ErrNotFound = errors.New("no checkpoint found")

// Checkpoint is the durable resume state. Salt and BaseIV reconstruct
// the encryption context; the derived key is never persisted.
type Checkpoint struct {
	Version   int                `cbor:"version"`
	Archive   string             `cbor:"archive"`
	Signature [32]byte           `cbor:"signature"`
	Files     []format.FileEntry `cbor:"files"`

	FileIndex  int    `cbor:"file_index"`
	FileOffset uint64 `cbor:"file_offset"`
	NextSeq    uint64 `cbor:"next_seq"`

	VolumeNumber int    `cbor:"volume_number"`
	VolumeOffset uint64 `cbor:"volume_offset"`

	Encrypted bool   `cbor:"encrypted"`
	Salt      []byte `cbor:"salt,omitempty"`
	BaseIV    []byte `cbor:"base_iv,omitempty"`

	ChunkSize uint64 `cbor:"chunk_size"`
	Level     uint8  `cbor:"level"`
	SplitSize uint64 `cbor:"split_size"`
}

// Path returns the checkpoint location for an archive path.
func Path(archive string) string {
	return archive + Suffix
}

// Signature fingerprints the job identity: the archive path plus the
// ordered input list with sizes. Resume against a different file set
// must fail, not partially match.
func Signature(archive string, files []format.FileEntry) [32]byte {
	h := blake3.New()
	h.Write([]byte(archive))
	h.Write([]byte{0})
	var size [8]byte
	for _, f := range files {
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(size[:], f.Size)
		h.Write(size[:])
	}
	var sig [32]byte
	h.Sum(sig[:0])
	return sig
}

// Save writes the checkpoint atomically: stage to a temporary file,
// fsync, then rename over any previous checkpoint. A crash mid-write
// leaves the previous checkpoint intact. stageDir overrides where the
// temporary file lives; it must be on the same filesystem as the
// archive for the rename to stay atomic. Empty means alongside the
// checkpoint itself.
func Save(ck *Checkpoint, stageDir string) error {
	ck.Version = SchemaVersion
	data, err := cbor.Marshal(ck)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	path := Path(ck.Archive)
	if stageDir == "" {
		stageDir = filepath.Dir(path)
	}
	tmp, err := os.CreateTemp(stageDir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint for an archive. Returns ErrNotFound when
// none exists and ErrInvalidResume when the file exists but cannot be
// trusted (bad encoding or unknown schema version).
func Load(archive string) (*Checkpoint, error) {
	data, err := os.ReadFile(Path(archive))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", szstream.ErrOpenFile, err)
	}

	ck := &Checkpoint{}
	if err := cbor.Unmarshal(data, ck); err != nil {
		return nil, fmt.Errorf("%w: undecodable checkpoint: %v", szstream.ErrInvalidResume, err)
	}
	if ck.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: checkpoint schema version %d, want %d", szstream.ErrInvalidResume, ck.Version, SchemaVersion)
	}
	return ck, nil
}

// Validate checks that the checkpoint belongs to the given job.
func (ck *Checkpoint) Validate(archive string, files []format.FileEntry) error {
	if ck.Archive != archive {
		return fmt.Errorf("%w: checkpoint is for %q, not %q", szstream.ErrInvalidResume, ck.Archive, archive)
	}
	if ck.Signature != Signature(archive, files) {
		return fmt.Errorf("%w: input file set changed since checkpoint", szstream.ErrInvalidResume)
	}
	return nil
}

// Discard deletes the checkpoint. Missing is not an error.
func Discard(archive string) error {
	err := os.Remove(Path(archive))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discard checkpoint: %w", err)
	}
	return nil
}
