// Package wire implements the relay's length-prefixed binary frame format
// and the closed set of client<->server message variants carried inside it.
package wire

import "encoding/binary"

// LengthPrefixSize is the width of the frame length prefix.
const LengthPrefixSize = 4

// TryExtractFrame looks for one complete frame at the front of buf.
// A frame is <length:u32 LE><payload of length bytes>. It returns the
// payload bounds [bodyBegin, bodyEnd) within buf and ok=true when a full
// frame is present; ok=false means the caller must read more bytes before
// trying again. bodyBegin is always LengthPrefixSize.
//
// This function does not interpret the payload and never errors: an
// oversized length prefix just means ok=false until more bytes arrive,
// which is the framing-level failure mode spec'd for a peer that never
// sends the rest of a frame (recovered naturally by the caller's read
// loop terminating on connection close).
func TryExtractFrame(buf []byte) (bodyBegin, bodyEnd int, ok bool) {
	if len(buf) < LengthPrefixSize {
		return 0, 0, false
	}
	n := binary.LittleEndian.Uint32(buf[:LengthPrefixSize])
	end := LengthPrefixSize + int(n)
	if len(buf) < end {
		return 0, 0, false
	}
	return LengthPrefixSize, end, true
}

// AppendFrame appends a length-prefixed frame wrapping payload to dst and
// returns the extended slice.
func AppendFrame(dst []byte, payload []byte) []byte {
	var lenBuf [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, payload...)
	return dst
}
