package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket/layers"
)

const (
	magicMicros = 0xA1B2C3D4
	magicNanos  = 0xA1B23C4D

	globalHeaderLen = 24
	recordHeaderLen = 16

	// Records claiming more captured bytes than this are treated as stream
	// corruption: a bogus length would desynchronize every record after it.
	maxRecordLen = 64 << 20
)

// GlobalHeader is the fixed libpcap file header.
type GlobalHeader struct {
	Magic        uint32
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32
	SigFigs      uint32
	SnapLen      uint32
	Network      uint32
}

// Record is one raw capture record: the per-record header plus the captured
// frame bytes. Consumed once by the frame decoder.
type Record struct {
	Timestamp      time.Time
	CaptureLength  int
	OriginalLength int
	Data           []byte
}

// Reader streams records out of a libpcap capture container. Both byte
// orders and the nanosecond-timestamp magic variants are recognized.
type Reader struct {
	br     *bufio.Reader
	closer io.Closer
	order  binary.ByteOrder
	nanos  bool
	header GlobalHeader
	eof    bool
}

// Open opens a capture file and parses its global header. An unreadable file
// or an unrecognized header is the only fatal failure in the engine.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file %q: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read capture file %q: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader parses the global header from an arbitrary stream.
func NewReader(src io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(src, 64<<10)

	var raw [globalHeaderLen]byte
	if _, err := io.ReadFull(br, raw[:]); err != nil {
		return nil, fmt.Errorf("global header: %w", err)
	}

	r := &Reader{br: br}
	switch binary.LittleEndian.Uint32(raw[0:4]) {
	case magicMicros:
		r.order = binary.LittleEndian
	case magicNanos:
		r.order = binary.LittleEndian
		r.nanos = true
	default:
		switch binary.BigEndian.Uint32(raw[0:4]) {
		case magicMicros:
			r.order = binary.BigEndian
		case magicNanos:
			r.order = binary.BigEndian
			r.nanos = true
		default:
			return nil, fmt.Errorf("bad magic number 0x%08x", binary.BigEndian.Uint32(raw[0:4]))
		}
	}

	r.header = GlobalHeader{
		Magic:        r.order.Uint32(raw[0:4]),
		VersionMajor: r.order.Uint16(raw[4:6]),
		VersionMinor: r.order.Uint16(raw[6:8]),
		ThisZone:     int32(r.order.Uint32(raw[8:12])),
		SigFigs:      r.order.Uint32(raw[12:16]),
		SnapLen:      r.order.Uint32(raw[16:20]),
		Network:      r.order.Uint32(raw[20:24]),
	}
	return r, nil
}

// Header returns the parsed global header.
func (r *Reader) Header() GlobalHeader { return r.header }

// Network returns the raw 32-bit link-layer code from the global header.
func (r *Reader) Network() uint32 { return r.header.Network }

// LinkType maps the header's network code onto gopacket's link-type space.
// Codes outside the 8-bit range cannot be a known link type; they come back
// as zero so the decoder falls through to heuristic detection.
func (r *Reader) LinkType() layers.LinkType {
	if r.header.Network > 0xFF {
		return 0
	}
	return layers.LinkType(r.header.Network)
}

// Next returns the next record, or io.EOF at the end of the stream. A
// truncated trailing record yields its partial bytes and then ends the
// stream; the decoder downgrades short frames on its own.
func (r *Reader) Next() (*Record, error) {
	if r.eof {
		return nil, io.EOF
	}

	var hdr [recordHeaderLen]byte
	if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
		r.eof = true
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}

	tsSec := r.order.Uint32(hdr[0:4])
	tsFrac := r.order.Uint32(hdr[4:8])
	capLen := r.order.Uint32(hdr[8:12])
	origLen := r.order.Uint32(hdr[12:16])

	if capLen > maxRecordLen {
		r.eof = true
		return nil, fmt.Errorf("record header claims %d captured bytes", capLen)
	}

	ts := time.Unix(int64(tsSec), r.fracNanos(tsFrac))
	data := make([]byte, capLen)
	n, err := io.ReadFull(r.br, data)
	if err != nil {
		// Short final record: hand back what was captured, stop afterwards.
		r.eof = true
		if n == 0 {
			return nil, io.EOF
		}
		data = data[:n]
	}

	return &Record{
		Timestamp:      ts,
		CaptureLength:  len(data),
		OriginalLength: int(origLen),
		Data:           data,
	}, nil
}

func (r *Reader) fracNanos(frac uint32) int64 {
	if r.nanos {
		return int64(frac)
	}
	return int64(frac) * 1000
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
