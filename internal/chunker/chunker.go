// internal/chunker/chunker.go
package chunker

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/tmreyno/7z-ffi-sdk/internal/format"
	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

// Chunk is one sequence-numbered unit of work. Raw is owned by the chunk
// until a worker consumes it; the compressed payload replaces it
// downstream. A chunk never spans a file boundary: the last chunk of
// each file is short when the file size is not a multiple of the chunk
// size.
type Chunk struct {
	Seq        uint64
	FileIndex  int
	FileOffset uint64
	Raw        []byte
	Digest     [32]byte

	// Position of the first byte after this chunk, recorded by the
	// checkpoint manager once the chunk has been flushed.
	EndFileIndex  int
	EndFileOffset uint64
}

// Reader produces chunks strictly in file-list order, then byte-offset
// order within each file, assigning consecutive sequence numbers.
type Reader struct {
	files     []format.FileEntry
	chunkSize uint64

	idx    int
	offset uint64
	seq    uint64
	cur    *os.File
}

// NewReader creates a reader over the ordered file list.
func NewReader(files []format.FileEntry, chunkSize uint64) *Reader {
	return &Reader{files: files, chunkSize: chunkSize}
}

// Seek positions the reader for a resumed run: the next chunk starts at
// the given file index and byte offset and carries sequence number seq.
func (r *Reader) Seek(fileIndex int, offset uint64, seq uint64) error {
	if fileIndex < 0 || fileIndex > len(r.files) {
		return fmt.Errorf("%w: file index %d out of range", szstream.ErrInvalidResume, fileIndex)
	}
	if fileIndex < len(r.files) && offset > r.files[fileIndex].Size {
		return fmt.Errorf("%w: offset %d beyond %q", szstream.ErrInvalidResume, offset, r.files[fileIndex].Path)
	}
	if r.cur != nil {
		r.cur.Close()
		r.cur = nil
	}
	r.idx = fileIndex
	r.offset = offset
	r.seq = seq
	return nil
}

// Next reads the next chunk. Returns io.EOF after the last chunk of the
// last file.
func (r *Reader) Next() (*Chunk, error) {
	// Empty files contribute no chunks.
	for r.idx < len(r.files) && r.offset >= r.files[r.idx].Size {
		if r.cur != nil {
			r.cur.Close()
			r.cur = nil
		}
		r.idx++
		r.offset = 0
	}
	if r.idx >= len(r.files) {
		return nil, io.EOF
	}

	entry := r.files[r.idx]
	if r.cur == nil {
		f, err := os.Open(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", szstream.ErrOpenFile, err)
		}
		if r.offset > 0 {
			if _, err := f.Seek(int64(r.offset), io.SeekStart); err != nil {
				f.Close()
				return nil, fmt.Errorf("%w: seek %q: %v", szstream.ErrOpenFile, entry.Path, err)
			}
		}
		r.cur = f
	}

	want := r.chunkSize
	if remaining := entry.Size - r.offset; remaining < want {
		want = remaining
	}
	raw := make([]byte, want)
	if _, err := io.ReadFull(r.cur, raw); err != nil {
		return nil, fmt.Errorf("read %q: %w", entry.Path, err)
	}

	c := &Chunk{
		Seq:        r.seq,
		FileIndex:  r.idx,
		FileOffset: r.offset,
		Raw:        raw,
		Digest:     blake3.Sum256(raw),
	}
	r.seq++
	r.offset += want

	c.EndFileIndex = r.idx
	c.EndFileOffset = r.offset
	if r.offset >= entry.Size {
		c.EndFileIndex = r.idx + 1
		c.EndFileOffset = 0
	}

	return c, nil
}

// Close releases the currently open input file.
func (r *Reader) Close() error {
	if r.cur != nil {
		err := r.cur.Close()
		r.cur = nil
		return err
	}
	return nil
}
