// internal/checkpoint/checkpoint_test.go
package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/tmreyno/7z-ffi-sdk/internal/format"
	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

func sampleCheckpoint(archive string) *Checkpoint {
	files := []format.FileEntry{
		{Path: "/data/one.bin", Size: 1 << 20},
		{Path: "/data/two.bin", Size: 42},
	}
	return &Checkpoint{
		Archive:      archive,
		Signature:    Signature(archive, files),
		Files:        files,
		FileIndex:    1,
		FileOffset:   12345,
		NextSeq:      17,
		VolumeNumber: 3,
		VolumeOffset: 9000,
		Encrypted:    true,
		Salt:         []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		BaseIV:       []byte{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
		ChunkSize:    64 * 1024,
		Level:        5,
		SplitSize:    1 << 20,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "job.arc")
	ck := sampleCheckpoint(archive)

	if err := Save(ck, ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(archive)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got.Version != SchemaVersion {
		t.Errorf("Version: expected %d, got %d", SchemaVersion, got.Version)
	}
	if got.Archive != ck.Archive ||
		got.FileIndex != ck.FileIndex ||
		got.FileOffset != ck.FileOffset ||
		got.NextSeq != ck.NextSeq ||
		got.VolumeNumber != ck.VolumeNumber ||
		got.VolumeOffset != ck.VolumeOffset ||
		got.ChunkSize != ck.ChunkSize ||
		got.Level != ck.Level ||
		got.SplitSize != ck.SplitSize {
		t.Errorf("Fields differ:\n  saved:  %+v\n  loaded: %+v", ck, got)
	}
	if got.Signature != ck.Signature {
		t.Error("Signature doesn't survive the round trip")
	}
	if len(got.Files) != 2 || got.Files[0] != ck.Files[0] || got.Files[1] != ck.Files[1] {
		t.Errorf("Files: expected %v, got %v", ck.Files, got.Files)
	}
	if !got.Encrypted || string(got.Salt) != string(ck.Salt) || string(got.BaseIV) != string(ck.BaseIV) {
		t.Error("Encryption context doesn't survive the round trip")
	}

	if err := got.Validate(archive, ck.Files); err != nil {
		t.Errorf("Validate rejected its own checkpoint: %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "never.arc")
	if _, err := Load(archive); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "bad.arc")
	if err := os.WriteFile(Path(archive), []byte("not cbor at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(archive); !errors.Is(err, szstream.ErrInvalidResume) {
		t.Errorf("Expected ErrInvalidResume, got %v", err)
	}
}

func TestLoadRejectsUnknownSchemaVersion(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "future.arc")
	ck := sampleCheckpoint(archive)
	ck.Version = SchemaVersion + 1

	data, err := cbor.Marshal(ck)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(archive), data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(archive); !errors.Is(err, szstream.ErrInvalidResume) {
		t.Errorf("Expected ErrInvalidResume, got %v", err)
	}
}

func TestValidateRejectsChangedInputs(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "job.arc")
	ck := sampleCheckpoint(archive)

	changedSize := []format.FileEntry{
		{Path: "/data/one.bin", Size: 1 << 20},
		{Path: "/data/two.bin", Size: 43},
	}
	if err := ck.Validate(archive, changedSize); !errors.Is(err, szstream.ErrInvalidResume) {
		t.Errorf("Changed size: expected ErrInvalidResume, got %v", err)
	}

	reordered := []format.FileEntry{ck.Files[1], ck.Files[0]}
	if err := ck.Validate(archive, reordered); !errors.Is(err, szstream.ErrInvalidResume) {
		t.Errorf("Reordered files: expected ErrInvalidResume, got %v", err)
	}

	if err := ck.Validate("/other/place.arc", ck.Files); !errors.Is(err, szstream.ErrInvalidResume) {
		t.Errorf("Different archive: expected ErrInvalidResume, got %v", err)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "job.arc")

	ck := sampleCheckpoint(archive)
	if err := Save(ck, ""); err != nil {
		t.Fatal(err)
	}
	ck.NextSeq = 99
	ck.VolumeNumber = 7
	if err := Save(ck, ""); err != nil {
		t.Fatal(err)
	}

	got, err := Load(archive)
	if err != nil {
		t.Fatal(err)
	}
	if got.NextSeq != 99 || got.VolumeNumber != 7 {
		t.Errorf("Second save not visible: %+v", got)
	}

	// No staging temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("Stale staging file left behind: %s", e.Name())
		}
	}
}

func TestSaveUsesStageDir(t *testing.T) {
	dir := t.TempDir()
	stage := filepath.Join(dir, "scratch")
	if err := os.Mkdir(stage, 0755); err != nil {
		t.Fatal(err)
	}
	archive := filepath.Join(dir, "job.arc")

	ck := sampleCheckpoint(archive)
	if err := Save(ck, stage); err != nil {
		t.Fatalf("Save with stage dir failed: %v", err)
	}
	if _, err := Load(archive); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	entries, err := os.ReadDir(stage)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Stage dir not cleaned up: %d entries remain", len(entries))
	}
}

func TestDiscard(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "job.arc")
	ck := sampleCheckpoint(archive)
	if err := Save(ck, ""); err != nil {
		t.Fatal(err)
	}

	if err := Discard(archive); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if _, err := Load(archive); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after discard, got %v", err)
	}

	// Discarding again is not an error.
	if err := Discard(archive); err != nil {
		t.Errorf("Second discard failed: %v", err)
	}
}

func TestSignatureSensitivity(t *testing.T) {
	files := []format.FileEntry{
		{Path: "a", Size: 1},
		{Path: "b", Size: 2},
	}
	base := Signature("arc", files)

	if Signature("other", files) == base {
		t.Error("Signature ignores the archive path")
	}
	if Signature("arc", files[:1]) == base {
		t.Error("Signature ignores the file list length")
	}
	if Signature("arc", []format.FileEntry{{Path: "a", Size: 1}, {Path: "b", Size: 3}}) == base {
		t.Error("Signature ignores file sizes")
	}
	if Signature("arc", []format.FileEntry{{Path: "b", Size: 2}, {Path: "a", Size: 1}}) == base {
		t.Error("Signature ignores file order")
	}
	if Signature("arc", files) != base {
		t.Error("Signature is not deterministic")
	}
}
