// internal/format/format.go
package format

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

const (
	// Magic signature at the start of volume 1
	Magic     = "SZSTRM01"
	MagicSize = 8

	// FooterMagic trails the end-of-stream marker on the final volume
	FooterMagic = "SZSTRMEND"

	// Record markers separating chunk frames from the stream trailer
	MarkerFrame byte = 0x01
	MarkerEnd   byte = 0x00

	// FrameHeaderSize is marker(1) + seq(8) + orig_len(4) + pay_len(4) + digest(32)
	FrameHeaderSize = 1 + 8 + 4 + 4 + 32

	headerFlagEncrypted byte = 0x01

	// SaltSize and IVSize are fixed by the encryption subsystem
	SaltSize = 16
	IVSize   = 16

	// maxPathLen bounds file table entries on decode
	maxPathLen = 4096
)

// FileEntry describes one input file recorded in the stream header.
type FileEntry struct {
	Path string
	Size uint64
}

// Header is the stream header written at the start of volume 1.
type Header struct {
	Encrypted bool
	Level     szstream.Level
	ChunkSize uint64
	Files     []FileEntry
	// Salt and BaseIV are meaningful only when Encrypted is set
	Salt   [SaltSize]byte
	BaseIV [IVSize]byte
}

// TotalBytes returns the sum of all file sizes in the header.
func (h *Header) TotalBytes() uint64 {
	var total uint64
	for _, f := range h.Files {
		total += f.Size
	}
	return total
}

// WriteHeader writes the stream header.
func WriteHeader(w io.Writer, h *Header) error {
	if _, err := w.Write([]byte(Magic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}

	var flags byte
	if h.Encrypted {
		flags |= headerFlagEncrypted
	}
	if _, err := w.Write([]byte{flags, byte(h.Level)}); err != nil {
		return fmt.Errorf("write flags: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, h.ChunkSize); err != nil {
		return fmt.Errorf("write chunk size: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(h.Files))); err != nil {
		return fmt.Errorf("write file count: %w", err)
	}

	for _, f := range h.Files {
		if len(f.Path) > maxPathLen {
			return fmt.Errorf("%w: path longer than %d bytes", szstream.ErrInvalidParameter, maxPathLen)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(f.Path))); err != nil {
			return fmt.Errorf("write path length: %w", err)
		}
		if _, err := w.Write([]byte(f.Path)); err != nil {
			return fmt.Errorf("write path: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, f.Size); err != nil {
			return fmt.Errorf("write file size: %w", err)
		}
	}

	if h.Encrypted {
		if _, err := w.Write(h.Salt[:]); err != nil {
			return fmt.Errorf("write salt: %w", err)
		}
		if _, err := w.Write(h.BaseIV[:]); err != nil {
			return fmt.Errorf("write iv: %w", err)
		}
	}

	return nil
}

// ReadHeader reads and validates the stream header.
func ReadHeader(r io.Reader) (*Header, error) {
	magic := make([]byte, MagicSize)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: read magic: %v", szstream.ErrInvalidArchive, err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("%w: unknown magic %q", szstream.ErrInvalidArchive, magic)
	}

	var fl [2]byte
	if _, err := io.ReadFull(r, fl[:]); err != nil {
		return nil, fmt.Errorf("%w: read flags: %v", szstream.ErrInvalidArchive, err)
	}
	h := &Header{
		Encrypted: fl[0]&headerFlagEncrypted != 0,
		Level:     szstream.Level(fl[1]),
	}
	if !h.Level.Valid() {
		return nil, fmt.Errorf("%w: unknown level byte %d", szstream.ErrInvalidArchive, fl[1])
	}

	if err := binary.Read(r, binary.LittleEndian, &h.ChunkSize); err != nil {
		return nil, fmt.Errorf("%w: read chunk size: %v", szstream.ErrInvalidArchive, err)
	}
	var fileCount uint32
	if err := binary.Read(r, binary.LittleEndian, &fileCount); err != nil {
		return nil, fmt.Errorf("%w: read file count: %v", szstream.ErrInvalidArchive, err)
	}

	h.Files = make([]FileEntry, 0, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		var pathLen uint16
		if err := binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
			return nil, fmt.Errorf("%w: read path length: %v", szstream.ErrInvalidArchive, err)
		}
		if int(pathLen) > maxPathLen {
			return nil, fmt.Errorf("%w: path length %d", szstream.ErrInvalidArchive, pathLen)
		}
		path := make([]byte, pathLen)
		if _, err := io.ReadFull(r, path); err != nil {
			return nil, fmt.Errorf("%w: read path: %v", szstream.ErrInvalidArchive, err)
		}
		var size uint64
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: read file size: %v", szstream.ErrInvalidArchive, err)
		}
		h.Files = append(h.Files, FileEntry{Path: string(path), Size: size})
	}

	if h.Encrypted {
		if _, err := io.ReadFull(r, h.Salt[:]); err != nil {
			return nil, fmt.Errorf("%w: read salt: %v", szstream.ErrInvalidArchive, err)
		}
		if _, err := io.ReadFull(r, h.BaseIV[:]); err != nil {
			return nil, fmt.Errorf("%w: read iv: %v", szstream.ErrInvalidArchive, err)
		}
	}

	return h, nil
}

// FrameHeader describes one chunk frame. Digest is the BLAKE3-256 of the
// raw (uncompressed, unencrypted) chunk bytes.
type FrameHeader struct {
	Seq     uint64
	OrigLen uint32
	PayLen  uint32
	Digest  [32]byte
}

// EncodeFrame serializes a frame header and payload into a single buffer
// so the volume manager receives it as one indivisible write.
func EncodeFrame(fh *FrameHeader, payload []byte) []byte {
	buf := make([]byte, FrameHeaderSize+len(payload))
	buf[0] = MarkerFrame
	binary.LittleEndian.PutUint64(buf[1:], fh.Seq)
	binary.LittleEndian.PutUint32(buf[9:], fh.OrigLen)
	binary.LittleEndian.PutUint32(buf[13:], fh.PayLen)
	copy(buf[17:], fh.Digest[:])
	copy(buf[FrameHeaderSize:], payload)
	return buf
}

// ReadRecord reads the next record marker and, for a chunk frame, its
// header. Returns (nil, nil) when the end-of-stream marker is found;
// the caller should then verify the trailer with ReadFooter.
func ReadRecord(r io.Reader) (*FrameHeader, error) {
	var marker [1]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return nil, fmt.Errorf("%w: read record marker: %v", szstream.ErrInvalidArchive, err)
	}

	switch marker[0] {
	case MarkerEnd:
		return nil, nil
	case MarkerFrame:
	default:
		return nil, fmt.Errorf("%w: unknown record marker 0x%02x", szstream.ErrInvalidArchive, marker[0])
	}

	var raw [FrameHeaderSize - 1]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, fmt.Errorf("%w: read frame header: %v", szstream.ErrInvalidArchive, err)
	}

	fh := &FrameHeader{
		Seq:     binary.LittleEndian.Uint64(raw[0:]),
		OrigLen: binary.LittleEndian.Uint32(raw[8:]),
		PayLen:  binary.LittleEndian.Uint32(raw[12:]),
	}
	copy(fh.Digest[:], raw[16:])
	return fh, nil
}

// EncodeFooter serializes the end-of-stream record.
func EncodeFooter() []byte {
	buf := make([]byte, 1+len(FooterMagic))
	buf[0] = MarkerEnd
	copy(buf[1:], FooterMagic)
	return buf
}

// ReadFooter verifies the trailer that follows the end-of-stream marker.
func ReadFooter(r io.Reader) error {
	trailer := make([]byte, len(FooterMagic))
	if _, err := io.ReadFull(r, trailer); err != nil {
		return fmt.Errorf("%w: read footer: %v", szstream.ErrInvalidArchive, err)
	}
	if string(trailer) != FooterMagic {
		return fmt.Errorf("%w: bad footer %q", szstream.ErrInvalidArchive, trailer)
	}
	return nil
}
