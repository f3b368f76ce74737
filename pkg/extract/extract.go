// pkg/extract/extract.go

// Package extract restores files from a stream archive, or verifies one
// without writing output. Decoding is strictly sequential: frames are
// laid out in sequence order on disk, so there is no reordering to do
// and a single pass suffices.
package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/tmreyno/7z-ffi-sdk/internal/codec"
	"github.com/tmreyno/7z-ffi-sdk/internal/encryption"
	"github.com/tmreyno/7z-ffi-sdk/internal/format"
	"github.com/tmreyno/7z-ffi-sdk/internal/volume"
	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

// readBufferSize sizes the buffered reader over the volume stream.
const readBufferSize = 1 << 20

// Run extracts (or, with VerifyOnly, checks) the archive described by
// opts. Wrong passwords surface as szstream.ErrWrongPasswordOrCorrupt;
// structural damage as szstream.ErrInvalidArchive.
func Run(ctx context.Context, opts *Options, progress szstream.ProgressFunc) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if err := codec.Open(); err != nil {
		return nil, err
	}
	defer codec.Close()

	vr, err := volume.OpenReader(opts.ArchivePath)
	if err != nil {
		return nil, err
	}
	defer vr.Close()
	br := bufio.NewReaderSize(vr, readBufferSize)

	hdr, err := format.ReadHeader(br)
	if err != nil {
		return nil, err
	}

	result := &Result{FilesTotal: len(hdr.Files), Encrypted: hdr.Encrypted}

	var dec *encryption.Decryptor
	if hdr.Encrypted {
		if len(opts.Password) == 0 {
			return result, fmt.Errorf("%w: archive is encrypted and no password was given", szstream.ErrInvalidParameter)
		}
		dec, err = encryption.NewDecryptor(opts.Password, hdr.Salt[:], hdr.BaseIV)
		if err != nil {
			return result, err
		}
		defer dec.Close()
	}

	sink := &fileSink{
		outDir:     opts.OutputDir,
		files:      hdr.Files,
		verifyOnly: opts.VerifyOnly,
	}
	defer sink.abort()

	agg := szstream.NewAggregator(hdr.TotalBytes(), progress)

	// The declared lengths in a frame header are attacker-controlled
	// until the digest check passes, so bound them before allocating.
	// Compression can expand incompressible data slightly and encryption
	// pads up to one block.
	maxOrig := hdr.ChunkSize
	maxPay := maxOrig + maxOrig/128 + 4096

	var expectSeq uint64 = 1
	for {
		select {
		case <-ctx.Done():
			return result, szstream.ErrCancelled
		default:
		}

		fh, err := format.ReadRecord(br)
		if err != nil {
			return result, err
		}
		if fh == nil {
			if err := format.ReadFooter(br); err != nil {
				return result, err
			}
			break
		}

		if fh.Seq != expectSeq {
			return result, fmt.Errorf("%w: frame %d out of sequence, want %d", szstream.ErrInvalidArchive, fh.Seq, expectSeq)
		}
		if uint64(fh.OrigLen) > maxOrig {
			return result, fmt.Errorf("%w: frame %d declares %d raw bytes, chunk size is %d", szstream.ErrMemory, fh.Seq, fh.OrigLen, hdr.ChunkSize)
		}
		if uint64(fh.PayLen) > maxPay {
			return result, fmt.Errorf("%w: frame %d declares %d payload bytes", szstream.ErrMemory, fh.Seq, fh.PayLen)
		}

		payload := make([]byte, fh.PayLen)
		if _, err := io.ReadFull(br, payload); err != nil {
			return result, fmt.Errorf("%w: frame %d truncated: %v", szstream.ErrInvalidArchive, fh.Seq, err)
		}
		result.BytesRead += uint64(fh.PayLen)

		if dec != nil {
			payload, err = dec.DecryptChunk(fh.Seq, payload)
			if err != nil {
				return result, err
			}
		}

		raw, err := codec.Decompress(hdr.Level, payload, int(fh.OrigLen))
		if err != nil {
			return result, err
		}

		// The digest covers the original plaintext, so a mismatch on an
		// encrypted archive is indistinguishable from a wrong password
		// that happened to produce valid padding.
		if blake3.Sum256(raw) != fh.Digest {
			if hdr.Encrypted {
				return result, fmt.Errorf("%w: chunk %d digest mismatch", szstream.ErrWrongPasswordOrCorrupt, fh.Seq)
			}
			return result, fmt.Errorf("%w: chunk %d digest mismatch", szstream.ErrInvalidArchive, fh.Seq)
		}

		if err := sink.write(raw); err != nil {
			return result, err
		}
		result.BytesWritten += uint64(len(raw))
		result.Chunks++
		expectSeq++

		name, fileDone, fileTotal := sink.position()
		agg.Advance(uint64(len(raw)), name, fileDone, fileTotal)
	}

	if err := sink.finish(); err != nil {
		return result, err
	}
	result.Volumes = vr.Volume()
	agg.Finish()
	return result, nil
}

// fileSink routes the decoded byte stream into the output files in
// header order. Chunks never span files, but the sink does not rely on
// that; it splits writes at file boundaries regardless.
type fileSink struct {
	outDir     string
	files      []format.FileEntry
	verifyOnly bool

	idx     int
	written uint64
	cur     *os.File
	curName string
}

func (s *fileSink) write(data []byte) error {
	for len(data) > 0 {
		if s.idx >= len(s.files) {
			return fmt.Errorf("%w: more chunk data than the file table accounts for", szstream.ErrInvalidArchive)
		}
		entry := s.files[s.idx]
		if s.written >= entry.Size {
			if entry.Size == 0 && !s.verifyOnly {
				if err := s.openCurrent(entry); err != nil {
					return err
				}
			}
			if err := s.closeCurrent(); err != nil {
				return err
			}
			continue
		}

		n := uint64(len(data))
		if remaining := entry.Size - s.written; remaining < n {
			n = remaining
		}

		if !s.verifyOnly {
			if s.cur == nil {
				if err := s.openCurrent(entry); err != nil {
					return err
				}
			}
			if _, err := s.cur.Write(data[:n]); err != nil {
				return fmt.Errorf("%w: write %s: %v", szstream.ErrExtract, s.curName, err)
			}
		} else {
			s.curName = entry.Path
		}

		s.written += n
		data = data[n:]
	}
	return nil
}

func (s *fileSink) openCurrent(entry format.FileEntry) error {
	rel, err := safeRelPath(entry.Path)
	if err != nil {
		return err
	}
	path := filepath.Join(s.outDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", szstream.ErrExtract, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", szstream.ErrExtract, err)
	}
	s.cur = f
	s.curName = entry.Path
	return nil
}

func (s *fileSink) closeCurrent() error {
	if s.cur != nil {
		if err := s.cur.Close(); err != nil {
			return fmt.Errorf("%w: close %s: %v", szstream.ErrExtract, s.curName, err)
		}
		s.cur = nil
	}
	s.idx++
	s.written = 0
	return nil
}

// finish closes the last file and materializes any trailing zero-size
// entries, which contribute no chunks. A non-empty entry left unfilled
// means the stream ended early.
func (s *fileSink) finish() error {
	for s.idx < len(s.files) {
		entry := s.files[s.idx]
		if s.written < entry.Size {
			return fmt.Errorf("%w: %s is truncated: got %d of %d bytes", szstream.ErrInvalidArchive, entry.Path, s.written, entry.Size)
		}
		if entry.Size == 0 && !s.verifyOnly {
			if err := s.openCurrent(entry); err != nil {
				return err
			}
		}
		if err := s.closeCurrent(); err != nil {
			return err
		}
	}
	return nil
}

// position reports the file currently being restored, for progress.
func (s *fileSink) position() (name string, done, total uint64) {
	if s.idx < len(s.files) {
		return s.files[s.idx].Path, s.written, s.files[s.idx].Size
	}
	return s.curName, s.written, s.written
}

// abort releases the open output file on early exit. A partial file is
// left in place; the error that aborted the run names it.
func (s *fileSink) abort() {
	if s.cur != nil {
		s.cur.Close()
		s.cur = nil
	}
}

// safeRelPath maps a recorded input path to a path safe to join under
// the output directory: rooted paths are re-rooted and any upward
// traversal is rejected.
func safeRelPath(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(p))
	clean = strings.TrimPrefix(clean, filepath.VolumeName(clean))
	clean = strings.TrimLeft(clean, string(filepath.Separator))
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part == ".." {
			return "", fmt.Errorf("%w: refusing traversal in recorded path %q", szstream.ErrInvalidArchive, p)
		}
	}
	if clean == "" || clean == "." {
		return "", fmt.Errorf("%w: empty recorded path", szstream.ErrInvalidArchive)
	}
	return clean, nil
}
