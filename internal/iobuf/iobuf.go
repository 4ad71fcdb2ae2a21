// Package iobuf implements the packed variable-length buffer wire format
// used by the FastRPC reverse tunnel: a 32-bit little-endian size, zero
// padding to the next 8-byte boundary, then that many bytes of payload,
// repeated for each buffer in the sequence. The alignment cursor runs mod 8
// across the entire stream, not per buffer.
//
// Grounded on fastrpc/hexagonrpcd/iobuffer.c (fastrpc_decoder_context,
// consume_size/consume_alignment/consume_buf, outbufs_encode). The reference
// decoder conflates "haven't started reading this buffer's size yet" with
// "decoded size happens to be zero" by reusing a single accumulator field as
// both states, which drops any literal zero-length buffer from the stream.
// This implementation tracks the size/pad/payload phase explicitly instead,
// so a zero-length buffer completes the instant its size word is read and
// round-trips correctly (see the package tests and SPEC_FULL.md §8 property
// 1, which requires sizes across the full [0, 65535] range to round-trip).
package iobuf

import (
	"encoding/binary"
	"errors"
)

// ErrMalformedStream is returned when bytes arrive after the decoder has
// already produced its expected number of buffers.
var ErrMalformedStream = errors.New("iobuf: malformed stream: bytes past expected buffer count")

// IOBuffer is a single decoded (or to-be-encoded) wire buffer.
type IOBuffer struct {
	Size    uint32
	Payload []byte
}

type phase int

const (
	phaseSize phase = iota
	phasePad
	phasePayload
)

// Decoder turns an inbound byte stream, fed in arbitrarily sized chunks, into
// a sequence of IOBuffers. Create with NewDecoder(expectedCount), call Feed
// as bytes arrive, and check IsComplete before calling Finish.
type Decoder struct {
	expected int
	inbufs   []IOBuffer

	phase          phase
	sizeBuf        [4]byte
	sizeByteOffset int
	currentSize    uint32
	payload        []byte
	payloadOffset  uint32
	alignCursor    int

	err error
}

// NewDecoder creates a decoder expecting exactly expectedCount buffers, as
// derived from the inbuf-count field of a scalars word.
func NewDecoder(expectedCount int) *Decoder {
	return &Decoder{
		expected: expectedCount,
		inbufs:   make([]IOBuffer, 0, expectedCount),
	}
}

// IsComplete reports whether the decoder has produced all expected buffers.
func (d *Decoder) IsComplete() bool {
	return len(d.inbufs) >= d.expected
}

// Err returns any error encountered by Feed.
func (d *Decoder) Err() error {
	return d.err
}

// Feed consumes as much of data as completes the expected buffer count,
// tolerating chunks as small as a single byte. Once complete, any further
// bytes fed cause ErrMalformedStream.
func (d *Decoder) Feed(data []byte) error {
	if d.err != nil {
		return d.err
	}

	off := 0
	for off < len(data) && len(d.inbufs) < d.expected {
		switch d.phase {
		case phaseSize:
			off += d.consumeSize(data[off:])
		case phasePad:
			off += d.consumePad(data[off:])
		case phasePayload:
			off += d.consumePayload(data[off:])
		}
	}

	if off < len(data) {
		d.err = ErrMalformedStream
		return d.err
	}
	return nil
}

func (d *Decoder) consumeSize(buf []byte) int {
	n := min(len(buf), 4-d.sizeByteOffset)
	copy(d.sizeBuf[d.sizeByteOffset:], buf[:n])
	d.sizeByteOffset += n
	d.alignCursor = (d.alignCursor + n) & 0x7

	if d.sizeByteOffset == 4 {
		d.currentSize = binary.LittleEndian.Uint32(d.sizeBuf[:])
		d.sizeByteOffset = 0

		if d.currentSize == 0 {
			d.inbufs = append(d.inbufs, IOBuffer{Size: 0, Payload: []byte{}})
			d.phase = phaseSize
		} else {
			d.payload = make([]byte, d.currentSize)
			d.payloadOffset = 0
			if d.alignCursor == 0 {
				d.phase = phasePayload
			} else {
				d.phase = phasePad
			}
		}
	}
	return n
}

func (d *Decoder) consumePad(buf []byte) int {
	remaining := (8 - d.alignCursor) % 8
	n := min(len(buf), remaining)
	d.alignCursor = (d.alignCursor + n) & 0x7
	if n == remaining {
		d.phase = phasePayload
	}
	return n
}

func (d *Decoder) consumePayload(buf []byte) int {
	n := min(len(buf), int(d.currentSize-d.payloadOffset))
	copy(d.payload[d.payloadOffset:], buf[:n])
	d.payloadOffset += uint32(n)
	d.alignCursor = (d.alignCursor + n) & 0x7

	if d.payloadOffset == d.currentSize {
		d.inbufs = append(d.inbufs, IOBuffer{Size: d.currentSize, Payload: d.payload})
		d.payload = nil
		d.currentSize = 0
		d.payloadOffset = 0
		d.phase = phaseSize
	}
	return n
}

// Finish returns the decoded buffers. It is an error to call before
// IsComplete reports true.
func (d *Decoder) Finish() ([]IOBuffer, error) {
	if d.err != nil {
		return nil, d.err
	}
	if !d.IsComplete() {
		return nil, errors.New("iobuf: decode not complete")
	}
	return d.inbufs, nil
}

// EncodedLen computes the total encoded length of bufs without writing
// anything, per the running cursor formula in SPEC_FULL.md §4.A.
func EncodedLen(bufs []IOBuffer) int {
	total := 0
	cursor := 0
	for _, b := range bufs {
		total += 4
		cursor = (cursor + 4) & 0x7
		if len(b.Payload) > 0 {
			pad := 0
			if cursor != 0 {
				pad = 8 - cursor
			}
			total += pad
			total += len(b.Payload)
			cursor = (cursor + pad + len(b.Payload)) & 0x7
		}
	}
	return total
}

// Encode writes bufs into a freshly allocated byte slice in wire format.
func Encode(bufs []IOBuffer) []byte {
	dest := make([]byte, EncodedLen(bufs))
	cursor := 0
	off := 0
	for _, b := range bufs {
		binary.LittleEndian.PutUint32(dest[off:], b.Size)
		off += 4
		cursor = (cursor + 4) & 0x7

		if len(b.Payload) > 0 {
			if cursor != 0 {
				pad := 8 - cursor
				off += pad
				cursor = 0
			}
			n := copy(dest[off:], b.Payload)
			off += n
			cursor = (cursor + n) & 0x7
		}
	}
	return dest
}
