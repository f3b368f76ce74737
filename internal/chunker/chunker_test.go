// internal/chunker/chunker_test.go
package chunker

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/blake3"

	"github.com/tmreyno/7z-ffi-sdk/internal/format"
)

// writeTestFile creates a file of n deterministic bytes and returns its entry.
func writeTestFile(t *testing.T, dir, name string, n int) format.FileEntry {
	t.Helper()
	data := make([]byte, n)
	for i := range data {
		data[i] = byte((i*31 + len(name)) % 256)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create %s: %v", name, err)
	}
	return format.FileEntry{Path: path, Size: uint64(n)}
}

func readAll(t *testing.T, r *Reader) []*Chunk {
	t.Helper()
	var chunks []*Chunk
	for {
		c, err := r.Next()
		if err == io.EOF {
			return chunks
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		chunks = append(chunks, c)
	}
}

func TestChunksCoverAllFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	files := []format.FileEntry{
		writeTestFile(t, dir, "a.bin", 2500),
		writeTestFile(t, dir, "b.bin", 1000),
		writeTestFile(t, dir, "c.bin", 1),
	}

	r := NewReader(files, 1000)
	defer r.Close()
	chunks := readAll(t, r)

	// 2500 -> 3 chunks, 1000 -> 1, 1 -> 1
	if len(chunks) != 5 {
		t.Fatalf("Expected 5 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.Seq != uint64(i+1) {
			t.Errorf("Chunk %d: expected seq %d, got %d", i, i+1, c.Seq)
		}
	}

	// Reassemble per file and compare.
	var perFile [3][]byte
	for _, c := range chunks {
		perFile[c.FileIndex] = append(perFile[c.FileIndex], c.Raw...)
	}
	for i, f := range files {
		want, err := os.ReadFile(f.Path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(perFile[i], want) {
			t.Errorf("File %d: reassembled data doesn't match", i)
		}
	}
}

func TestChunksNeverSpanFiles(t *testing.T) {
	dir := t.TempDir()
	files := []format.FileEntry{
		writeTestFile(t, dir, "odd.bin", 1500), // not a multiple of the chunk size
		writeTestFile(t, dir, "next.bin", 1000),
	}

	r := NewReader(files, 1000)
	defer r.Close()
	chunks := readAll(t, r)

	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[1].Raw) != 500 {
		t.Errorf("Last chunk of first file: expected 500 bytes, got %d", len(chunks[1].Raw))
	}
	if chunks[2].FileIndex != 1 || chunks[2].FileOffset != 0 {
		t.Errorf("Third chunk should start the second file, got index %d offset %d",
			chunks[2].FileIndex, chunks[2].FileOffset)
	}
}

func TestEmptyFilesProduceNoChunks(t *testing.T) {
	dir := t.TempDir()
	files := []format.FileEntry{
		writeTestFile(t, dir, "empty1", 0),
		writeTestFile(t, dir, "data.bin", 100),
		writeTestFile(t, dir, "empty2", 0),
	}

	r := NewReader(files, 1000)
	defer r.Close()
	chunks := readAll(t, r)

	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].FileIndex != 1 {
		t.Errorf("Chunk should come from file 1, got %d", chunks[0].FileIndex)
	}
}

func TestAllEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	files := []format.FileEntry{
		writeTestFile(t, dir, "e1", 0),
		writeTestFile(t, dir, "e2", 0),
	}
	r := NewReader(files, 1000)
	defer r.Close()
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestChunkDigest(t *testing.T) {
	dir := t.TempDir()
	files := []format.FileEntry{writeTestFile(t, dir, "d.bin", 300)}

	r := NewReader(files, 1000)
	defer r.Close()
	chunks := readAll(t, r)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Digest != blake3.Sum256(chunks[0].Raw) {
		t.Error("Digest doesn't match chunk content")
	}
}

func TestEndPositionRollsToNextFile(t *testing.T) {
	dir := t.TempDir()
	files := []format.FileEntry{
		writeTestFile(t, dir, "a.bin", 2000),
		writeTestFile(t, dir, "b.bin", 500),
	}

	r := NewReader(files, 1000)
	defer r.Close()
	chunks := readAll(t, r)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}

	// Mid-file chunk ends inside its file.
	if chunks[0].EndFileIndex != 0 || chunks[0].EndFileOffset != 1000 {
		t.Errorf("Chunk 0 end: got (%d, %d)", chunks[0].EndFileIndex, chunks[0].EndFileOffset)
	}
	// Final chunk of a file ends at the start of the next.
	if chunks[1].EndFileIndex != 1 || chunks[1].EndFileOffset != 0 {
		t.Errorf("Chunk 1 end: got (%d, %d)", chunks[1].EndFileIndex, chunks[1].EndFileOffset)
	}
	if chunks[2].EndFileIndex != 2 || chunks[2].EndFileOffset != 0 {
		t.Errorf("Chunk 2 end: got (%d, %d)", chunks[2].EndFileIndex, chunks[2].EndFileOffset)
	}
}

func TestSeekResumesIdentically(t *testing.T) {
	dir := t.TempDir()
	files := []format.FileEntry{
		writeTestFile(t, dir, "a.bin", 2500),
		writeTestFile(t, dir, "b.bin", 1500),
	}

	full := NewReader(files, 1000)
	all := readAll(t, full)
	full.Close()
	if len(all) < 3 {
		t.Fatalf("Need at least 3 chunks, got %d", len(all))
	}

	// Resume from the position recorded after the second chunk.
	resumed := NewReader(files, 1000)
	defer resumed.Close()
	if err := resumed.Seek(all[1].EndFileIndex, all[1].EndFileOffset, all[1].Seq+1); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	tail := readAll(t, resumed)

	if len(tail) != len(all)-2 {
		t.Fatalf("Expected %d chunks after seek, got %d", len(all)-2, len(tail))
	}
	for i, c := range tail {
		want := all[i+2]
		if c.Seq != want.Seq {
			t.Errorf("Chunk %d: expected seq %d, got %d", i, want.Seq, c.Seq)
		}
		if !bytes.Equal(c.Raw, want.Raw) {
			t.Errorf("Chunk %d: data differs from uninterrupted pass", i)
		}
		if c.Digest != want.Digest {
			t.Errorf("Chunk %d: digest differs from uninterrupted pass", i)
		}
	}
}

func TestSeekRejectsBadPosition(t *testing.T) {
	dir := t.TempDir()
	files := []format.FileEntry{writeTestFile(t, dir, "a.bin", 100)}

	r := NewReader(files, 1000)
	defer r.Close()

	if err := r.Seek(5, 0, 1); err == nil {
		t.Error("Expected error for out-of-range file index")
	}
	if err := r.Seek(0, 500, 1); err == nil {
		t.Error("Expected error for offset beyond file size")
	}
}

func TestMissingFileFailsOnNext(t *testing.T) {
	files := []format.FileEntry{{Path: filepath.Join(t.TempDir(), "gone.bin"), Size: 100}}
	r := NewReader(files, 1000)
	defer r.Close()
	if _, err := r.Next(); err == nil {
		t.Error("Expected error for a missing input file")
	}
}
