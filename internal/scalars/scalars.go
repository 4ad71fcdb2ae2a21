// Package scalars implements the FastRPC method descriptor and the 32-bit
// "scalars word" the kernel ABI packs a method id and buffer counts into.
//
// Bit layout, grounded on fastrpc.git's REMOTE_SCALARS_MAKEX macro
// (transcribed from fastrpc/fastrpc.h in the original hexagonrpc sources):
//
//	bits [31:29] attr        (always 0 in this system)
//	bits [28:24] method id
//	bits [23:16] inbuf count
//	bits [15:8]  outbuf count
//	bits [7:4]   scalar-in count (always 0 — folded into inbuf count upstream)
//	bits [3:0]   scalar-out count (always 0 — folded into outbuf count upstream)
package scalars

const (
	attrShift   = 29
	methodShift = 24
	inbufShift  = 16
	outbufShift = 8

	methodMask = 0x1f
	countMask  = 0xff
)

// Descriptor is the static record of a remote method: its numeric id and the
// counts of scalar/buffer arguments it takes in each direction. Immutable
// once constructed.
type Descriptor struct {
	MethodID   uint32
	InScalars  uint8
	InBuffers  uint8
	OutScalars uint8
	OutBuffers uint8
}

// NeedsFirstInbuf reports whether the call needs a synthesized first input
// buffer (true whenever any of the four counts is nonzero).
func (d Descriptor) NeedsFirstInbuf() bool {
	return d.InScalars != 0 || d.InBuffers != 0 || d.OutScalars != 0 || d.OutBuffers != 0
}

// NeedsFirstOutbuf reports whether the call needs a synthesized first output
// buffer (true whenever there is at least one output scalar).
func (d Descriptor) NeedsFirstOutbuf() bool {
	return d.OutScalars != 0
}

// EffectiveInbufs is the declared input buffer count plus one whenever a
// first input scratch buffer is required.
func (d Descriptor) EffectiveInbufs() uint8 {
	n := d.InBuffers
	if d.NeedsFirstInbuf() {
		n++
	}
	return n
}

// EffectiveOutbufs is the declared output buffer count plus one whenever a
// first output scratch buffer is required.
func (d Descriptor) EffectiveOutbufs() uint8 {
	n := d.OutBuffers
	if d.NeedsFirstOutbuf() {
		n++
	}
	return n
}

// Scalars computes the scalars word for this descriptor's effective counts.
func (d Descriptor) Scalars() uint32 {
	return Encode(d.MethodID, d.EffectiveInbufs(), d.EffectiveOutbufs())
}

// Encode packs a method id and buffer counts into a scalars word. The two
// high scalar-count fields are always zero in this system.
func Encode(method uint32, inbufs, outbufs uint8) uint32 {
	return ((method & methodMask) << methodShift) |
		((uint32(inbufs) & countMask) << inbufShift) |
		((uint32(outbufs) & countMask) << outbufShift)
}

// Method extracts the method id field of a scalars word.
func Method(word uint32) uint32 {
	return (word >> methodShift) & methodMask
}

// Inbufs extracts the inbuf-count field of a scalars word.
func Inbufs(word uint32) uint8 {
	return uint8((word >> inbufShift) & countMask)
}

// Outbufs extracts the outbuf-count field of a scalars word.
func Outbufs(word uint32) uint8 {
	return uint8((word >> outbufShift) & countMask)
}
