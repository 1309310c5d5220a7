package backup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

const (
	// Magic identifies a backup container (ASCII "LUCB").
	Magic = "LUCB"

	// ContainerVersion is the container format version written by Writer.
	ContainerVersion = uint32(1)

	// MaxEntryNameLen bounds entry names accepted by Reader.
	MaxEntryNameLen = 1024

	copyBufferSize = 64 * 1024
)

var (
	ErrInvalidContainer   = errors.New("invalid backup container")
	ErrUnsupportedVersion = errors.New("unsupported backup container version")
)

// EntryHeader describes one container entry.
type EntryHeader struct {
	Name string
	Size int64
}

// Writer produces a container:
//
//	[magic "LUCB"][uint32 version]
//	repeated: [uint32 name length][name][uint64 data length][data]
//
// All integers are little-endian.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter writes the container header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := io.WriteString(w, Magic); err != nil {
		return nil, fmt.Errorf("failed to write magic bytes: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, ContainerVersion); err != nil {
		return nil, fmt.Errorf("failed to write version: %w", err)
	}
	return &Writer{w: w, buf: make([]byte, copyBufferSize)}, nil
}

// WriteEntry copies exactly size bytes from r as entry name.
func (cw *Writer) WriteEntry(name string, size int64, r io.Reader) error {
	if name == "" || len(name) > MaxEntryNameLen || !utf8.ValidString(name) {
		return fmt.Errorf("invalid entry name %q", name)
	}
	if size < 0 {
		return fmt.Errorf("invalid entry size %d", size)
	}

	if err := binary.Write(cw.w, binary.LittleEndian, uint32(len(name))); err != nil {
		return fmt.Errorf("failed to write name length: %w", err)
	}
	if _, err := io.WriteString(cw.w, name); err != nil {
		return fmt.Errorf("failed to write name: %w", err)
	}
	if err := binary.Write(cw.w, binary.LittleEndian, uint64(size)); err != nil {
		return fmt.Errorf("failed to write data length: %w", err)
	}

	n, err := io.CopyBuffer(cw.w, io.LimitReader(r, size), cw.buf)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if n != size {
		return fmt.Errorf("entry %s: short data, %d of %d bytes", name, n, size)
	}
	return nil
}

// WriteBytes writes data as entry name.
func (cw *Writer) WriteBytes(name string, data []byte) error {
	return cw.WriteEntry(name, int64(len(data)), bytes.NewReader(data))
}

// Reader iterates the entries of a container, in the manner of archive/tar:
// Next advances to an entry and Read returns its data.
type Reader struct {
	r       io.Reader
	version uint32
	cur     *io.LimitedReader
	skip    []byte
}

// NewReader validates the container header.
func NewReader(r io.Reader) (*Reader, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: missing header: %w", ErrInvalidContainer, err)
	}
	if string(magic[:]) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidContainer, magic[:])
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: missing version: %w", ErrInvalidContainer, err)
	}
	if version == 0 {
		return nil, fmt.Errorf("%w: version 0", ErrInvalidContainer)
	}
	if version > ContainerVersion {
		return nil, fmt.Errorf("%w: %d (supported up to %d)", ErrUnsupportedVersion, version, ContainerVersion)
	}

	return &Reader{r: r, version: version}, nil
}

// Version returns the container version from the header.
func (cr *Reader) Version() uint32 {
	return cr.version
}

// Next skips any unread data of the current entry and returns the next
// entry header. It returns io.EOF at a clean end of the container.
func (cr *Reader) Next() (*EntryHeader, error) {
	if cr.cur != nil && cr.cur.N > 0 {
		if cr.skip == nil {
			cr.skip = make([]byte, copyBufferSize)
		}
		if _, err := io.CopyBuffer(io.Discard, cr.cur, cr.skip); err != nil {
			return nil, truncated(err)
		}
		if cr.cur.N > 0 {
			return nil, fmt.Errorf("%w: truncated entry data", ErrInvalidContainer)
		}
	}
	cr.cur = nil

	var nameLen uint32
	if err := binary.Read(cr.r, binary.LittleEndian, &nameLen); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, truncated(err)
	}
	if nameLen == 0 || nameLen > MaxEntryNameLen {
		return nil, fmt.Errorf("%w: entry name length %d", ErrInvalidContainer, nameLen)
	}

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(cr.r, name); err != nil {
		return nil, truncated(err)
	}
	if !utf8.Valid(name) {
		return nil, fmt.Errorf("%w: entry name is not UTF-8", ErrInvalidContainer)
	}

	var size uint64
	if err := binary.Read(cr.r, binary.LittleEndian, &size); err != nil {
		return nil, truncated(err)
	}
	if size > math.MaxInt64 {
		return nil, fmt.Errorf("%w: entry size %d", ErrInvalidContainer, size)
	}

	cr.cur = &io.LimitedReader{R: cr.r, N: int64(size)}
	return &EntryHeader{Name: string(name), Size: int64(size)}, nil
}

// Read reads from the current entry. A container that ends inside the
// entry yields ErrInvalidContainer.
func (cr *Reader) Read(p []byte) (int, error) {
	if cr.cur == nil {
		return 0, io.EOF
	}
	n, err := cr.cur.Read(p)
	if err == io.EOF && cr.cur.N > 0 {
		return n, fmt.Errorf("%w: truncated entry data", ErrInvalidContainer)
	}
	return n, err
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated", ErrInvalidContainer)
	}
	return err
}
