// pkg/compress/compress.go
package compress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tmreyno/7z-ffi-sdk/internal/checkpoint"
	"github.com/tmreyno/7z-ffi-sdk/internal/chunker"
	"github.com/tmreyno/7z-ffi-sdk/internal/codec"
	"github.com/tmreyno/7z-ffi-sdk/internal/encryption"
	"github.com/tmreyno/7z-ffi-sdk/internal/format"
	"github.com/tmreyno/7z-ffi-sdk/internal/volume"
	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

// outcome is one chunk coming back from the worker pool, tagged with its
// original sequence number through the embedded chunk.
type outcome struct {
	chunk   *chunker.Chunk
	payload []byte
	err     error
}

// Run compresses the job described by opts into one or more volumes.
// Output byte order is identical to input byte order regardless of
// worker scheduling. On cancellation via ctx the run flushes in-flight
// chunks, saves a checkpoint, and returns the partial Result together
// with szstream.ErrCancelled.
func Run(ctx context.Context, opts *Options, progress szstream.ProgressFunc) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if err := codec.Open(); err != nil {
		return nil, err
	}
	defer codec.Close()

	files, total, err := statInputs(opts.Files)
	if err != nil {
		return nil, err
	}

	var ck *checkpoint.Checkpoint
	if opts.Resume {
		ck, err = checkpoint.Load(opts.ArchivePath)
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("%w: nothing to resume for %s", szstream.ErrInvalidResume, opts.ArchivePath)
		}
		if err != nil {
			return nil, err
		}
		if err := ck.Validate(opts.ArchivePath, files); err != nil {
			return nil, err
		}
		// The stream on disk was produced under these parameters; the
		// continuation must match them exactly.
		opts.ChunkSize = ck.ChunkSize
		opts.Level = szstream.Level(ck.Level)
		opts.SplitSize = ck.SplitSize
	}

	var enc *encryption.Encryptor
	if len(opts.Password) > 0 {
		if ck != nil {
			if !ck.Encrypted {
				return nil, fmt.Errorf("%w: checkpointed run was not encrypted", szstream.ErrInvalidResume)
			}
			enc, err = encryption.NewEncryptorWithSalt(opts.Password, ck.Salt)
		} else {
			enc, err = encryption.NewEncryptor(opts.Password)
		}
		if err != nil {
			return nil, err
		}
		defer enc.Close()
	} else if ck != nil && ck.Encrypted {
		return nil, fmt.Errorf("%w: password required to resume an encrypted archive", szstream.ErrInvalidResume)
	}

	p := &pipeline{
		opts:    opts,
		files:   files,
		enc:     enc,
		result:  &Result{FilesTotal: len(files), Resumed: ck != nil},
		nextSeq: 1,
	}

	if ck != nil {
		p.vw, err = volume.Resume(opts.ArchivePath, opts.SplitSize, total, ck.VolumeNumber, ck.VolumeOffset)
		if err != nil {
			return nil, err
		}
		p.nextSeq = ck.NextSeq
		p.ckFileIndex = ck.FileIndex
		p.ckFileOffset = ck.FileOffset
		p.ckNextSeq = ck.NextSeq
	} else {
		p.vw, err = volume.NewWriter(opts.ArchivePath, opts.SplitSize, total)
		if err != nil {
			return nil, err
		}
		p.ckNextSeq = 1
	}
	p.agg = szstream.NewAggregator(total, progress)
	if ck != nil {
		var done uint64
		for _, f := range files[:ck.FileIndex] {
			done += f.Size
		}
		p.agg.Seed(done + ck.FileOffset)
	}

	if ck == nil {
		hdr := &format.Header{
			Encrypted: enc != nil,
			Level:     opts.Level,
			ChunkSize: opts.ChunkSize,
			Files:     files,
		}
		if enc != nil {
			hdr.Salt = enc.Salt()
			hdr.BaseIV = enc.BaseIV()
		}
		if err := p.writeHeader(hdr); err != nil {
			p.vw.Close()
			return p.result, err
		}
	}

	err = p.run(ctx)
	p.result.Volumes = p.vw.Count()
	return p.result, err
}

// pipeline owns the moving parts of one run. The writer side (run,
// flushReady, writeChunk, onVolumeClosed) executes on a single
// goroutine; only the reader and workers run concurrently with it.
type pipeline struct {
	opts   *Options
	files  []format.FileEntry
	enc    *encryption.Encryptor
	vw     *volume.Writer
	agg    *szstream.Aggregator
	result *Result

	// next sequence number the writer may flush
	nextSeq uint64
	// reordering buffer for chunks that completed ahead of their turn
	pending map[uint64]*outcome

	// reader position of the first unflushed chunk, recorded by
	// checkpoints; only valid between chunk flushes
	ckFileIndex  int
	ckFileOffset uint64
	ckNextSeq    uint64

	cancelled bool
	finished  bool
}

func (p *pipeline) run(ctx context.Context) error {
	reader := chunker.NewReader(p.files, p.opts.ChunkSize)
	if err := reader.Seek(p.ckFileIndex, p.ckFileOffset, p.ckNextSeq); err != nil {
		p.vw.Close()
		return err
	}
	defer reader.Close()

	// Volume closures checkpoint from here on; the header (already
	// written) can never have triggered a roll.
	p.vw.OnClose = p.onVolumeClosed

	jobs := make(chan *chunker.Chunk, p.opts.Threads)
	results := make(chan outcome, p.opts.Threads)
	p.pending = make(map[uint64]*outcome, p.opts.Threads)

	// A fatal compress or write error cancels this derived context so
	// the reader exits between chunks instead of feeding the workers
	// the rest of the job.
	rctx, stop := context.WithCancel(ctx)
	defer stop()

	// Reader: strictly sequential chunk production with bounded
	// backpressure through the jobs channel. Stops between chunks on
	// cancellation; never mid-chunk.
	var readErr error
	go func() {
		defer close(jobs)
		for {
			select {
			case <-rctx.Done():
				p.cancelled = ctx.Err() != nil
				return
			default:
			}

			c, err := reader.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				readErr = err
				return
			}

			select {
			case jobs <- c:
			case <-rctx.Done():
				p.cancelled = ctx.Err() != nil
				return
			}
		}
	}()

	// Workers: stateless, interchangeable; each compresses one chunk at
	// a time and tags the result with its sequence number.
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				payload, err := codec.Compress(p.opts.Level, c.Raw)
				results <- outcome{chunk: c, payload: payload, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Writer: single consumer, strict sequence order via the
	// reordering buffer. Out-of-order completions wait in pending until
	// their predecessor is flushed. After a fatal error it only drains
	// the results already in flight; stop keeps that drain short.
	var fatal error
	for out := range results {
		if out.err != nil {
			if fatal == nil {
				fatal = out.err
				stop()
			}
			continue
		}
		if fatal != nil {
			continue
		}
		o := out
		p.pending[o.chunk.Seq] = &o
		if err := p.flushReady(); err != nil {
			fatal = err
			stop()
		}
	}

	if fatal == nil && readErr != nil {
		fatal = readErr
	}

	switch {
	case fatal != nil:
		// The flushed prefix is consistent; leave the job resumable
		// from it where possible.
		_ = p.vw.Sync()
		_ = p.saveCheckpoint()
		p.finished = true
		_ = p.vw.Close()
		return fatal

	case p.cancelled:
		if err := p.vw.Sync(); err != nil {
			p.finished = true
			p.vw.Close()
			return err
		}
		if err := p.saveCheckpoint(); err != nil {
			p.finished = true
			p.vw.Close()
			return err
		}
		p.finished = true
		if err := p.vw.Close(); err != nil {
			return err
		}
		return szstream.ErrCancelled

	default:
		if _, _, err := p.vw.Write(format.EncodeFooter()); err != nil {
			p.vw.Close()
			return err
		}
		p.finished = true
		if err := p.vw.Close(); err != nil {
			return err
		}
		if err := checkpoint.Discard(p.opts.ArchivePath); err != nil {
			return err
		}
		p.agg.Finish()
		return nil
	}
}

// flushReady writes every chunk whose predecessors have all been flushed.
func (p *pipeline) flushReady() error {
	for {
		out, ok := p.pending[p.nextSeq]
		if !ok {
			return nil
		}
		delete(p.pending, p.nextSeq)
		if err := p.writeChunk(out); err != nil {
			return err
		}
		p.nextSeq++
	}
}

func (p *pipeline) writeChunk(out *outcome) error {
	c := out.chunk
	payload := out.payload
	if p.enc != nil {
		payload = p.enc.EncryptChunk(c.Seq, payload)
	}

	fh := &format.FrameHeader{
		Seq:     c.Seq,
		OrigLen: uint32(len(c.Raw)),
		PayLen:  uint32(len(payload)),
		Digest:  c.Digest,
	}
	frame := format.EncodeFrame(fh, payload)

	// May roll to a new volume; the close callback checkpoints with the
	// cursor still pointing at this chunk's start, so the checkpoint
	// never describes in-flight data.
	if _, _, err := p.vw.Write(frame); err != nil {
		return err
	}

	rawLen := uint64(len(c.Raw))
	entry := p.files[c.FileIndex]
	p.agg.Advance(rawLen, entry.Path, c.FileOffset+rawLen, entry.Size)

	p.result.BytesRead += rawLen
	p.result.BytesWritten += uint64(len(frame))
	p.result.Chunks++

	p.ckFileIndex = c.EndFileIndex
	p.ckFileOffset = c.EndFileOffset
	p.ckNextSeq = c.Seq + 1
	c.Raw = nil
	return nil
}

// onVolumeClosed persists a checkpoint every time a volume fills. At
// callback time the closed volume is synced and the next one has not
// been opened, so the resume point is the start of volume+1.
func (p *pipeline) onVolumeClosed(volumeNum int) error {
	if p.finished {
		return nil
	}
	return p.saveCheckpointAt(volumeNum+1, 0)
}

// saveCheckpoint records the current writer position (used on
// cancellation and fatal errors, after the open volume is synced).
func (p *pipeline) saveCheckpoint() error {
	num, off := p.vw.Position()
	return p.saveCheckpointAt(num, off)
}

func (p *pipeline) saveCheckpointAt(volumeNum int, volumeOff uint64) error {
	ck := &checkpoint.Checkpoint{
		Archive:      p.opts.ArchivePath,
		Signature:    checkpoint.Signature(p.opts.ArchivePath, p.files),
		Files:        p.files,
		FileIndex:    p.ckFileIndex,
		FileOffset:   p.ckFileOffset,
		NextSeq:      p.ckNextSeq,
		VolumeNumber: volumeNum,
		VolumeOffset: volumeOff,
		Encrypted:    p.enc != nil,
		ChunkSize:    p.opts.ChunkSize,
		Level:        uint8(p.opts.Level),
		SplitSize:    p.opts.SplitSize,
	}
	if p.enc != nil {
		salt := p.enc.Salt()
		iv := p.enc.BaseIV()
		ck.Salt = salt[:]
		ck.BaseIV = iv[:]
	}
	return checkpoint.Save(ck, p.opts.TempDir)
}

func (p *pipeline) writeHeader(hdr *format.Header) error {
	var buf headerBuffer
	if err := format.WriteHeader(&buf, hdr); err != nil {
		return err
	}
	// The header goes through the volume manager like everything else,
	// but at offset zero it can never trigger a roll.
	if _, _, err := p.vw.Write(buf); err != nil {
		return err
	}
	p.result.BytesWritten += uint64(len(buf))
	return nil
}

// headerBuffer collects the serialized header into one indivisible record.
type headerBuffer []byte

func (b *headerBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

// statInputs validates the input list and captures the sizes the whole
// run will trust (chunk accounting, checkpoint signatures, progress
// totals).
func statInputs(paths []string) ([]format.FileEntry, uint64, error) {
	files := make([]format.FileEntry, 0, len(paths))
	var total uint64
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", szstream.ErrOpenFile, err)
		}
		if !info.Mode().IsRegular() {
			return nil, 0, fmt.Errorf("%w: %s is not a regular file", szstream.ErrInvalidParameter, path)
		}
		files = append(files, format.FileEntry{Path: path, Size: uint64(info.Size())})
		total += uint64(info.Size())
	}
	return files, total, nil
}

// CanResume reports whether a loadable checkpoint exists for the archive.
func CanResume(archive string) bool {
	_, err := checkpoint.Load(archive)
	return err == nil
}
