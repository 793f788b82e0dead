package rapidrpc

import (
	"encoding/binary"
)

const (
	frameStart byte = 0x02
	frameEnd   byte = 0x03
)

// Frame is one request or response on the wire. Payload is the opaque
// serialized request/response produced by the pluggable Message codec;
// the RPC plane never interprets it.
type Frame struct {
	MsgID      string
	Method     string
	ErrCode    ErrorCode
	ErrInfo    string
	Payload    []byte
}

// encodedLen returns the total on-wire byte count for this frame,
// inclusive of both markers and the checksum, mirroring tinypb_coder.cc's
// pk_len computation.
func (f *Frame) encodedLen() int {
	return 1 + 4 + // start + packet length
		4 + len(f.MsgID) +
		4 + len(f.Method) +
		4 + // err code
		4 + len(f.ErrInfo) +
		len(f.Payload) +
		4 + // checksum
		1 // end
}

// Encode appends the wire representation of f to buf, growing buf if
// needed and advancing its write index past the new frame.
func Encode(f *Frame, buf *Buffer) {
	n := f.encodedLen()
	buf.EnsureWritable(n)
	start := buf.WriteIndex()
	b := buf.Bytes()[start : start+n]

	pos := 0
	b[pos] = frameStart
	pos++
	binary.BigEndian.PutUint32(b[pos:], uint32(n))
	pos += 4

	pos = putField(b, pos, []byte(f.MsgID))
	pos = putField(b, pos, []byte(f.Method))

	binary.BigEndian.PutUint32(b[pos:], uint32(f.ErrCode))
	pos += 4

	pos = putField(b, pos, []byte(f.ErrInfo))
	copy(b[pos:], f.Payload)
	pos += len(f.Payload)

	// checksum slot, zeroed for computation
	checksumPos := pos
	binary.BigEndian.PutUint32(b[checksumPos:], 0)
	pos += 4

	b[pos] = frameEnd
	pos++

	sum := xorChecksum(b)
	binary.LittleEndian.PutUint32(b[checksumPos:], sum)

	buf.MoveWriteIndex(n)
}

func putField(b []byte, pos int, data []byte) int {
	binary.BigEndian.PutUint32(b[pos:], uint32(len(data)))
	pos += 4
	copy(b[pos:], data)
	return pos + len(data)
}

// xorChecksum folds data as a little-endian sequence of 32-bit words,
// zero-padding the final partial word, matching the source's
// checksum_xor byte-for-byte (the source never byte-swaps before XOR).
func xorChecksum(data []byte) uint32 {
	var sum uint32
	n := len(data) / 4
	for i := 0; i < n; i++ {
		sum ^= binary.LittleEndian.Uint32(data[i*4:])
	}
	if rem := len(data) % 4; rem > 0 {
		var tail [4]byte
		copy(tail[:], data[n*4:])
		sum ^= binary.LittleEndian.Uint32(tail[:])
	}
	return sum
}

// Decode repeatedly extracts complete frames from in, returning them in
// arrival order. It mutates in's read index. Any invalidity (checksum,
// markers, field-length overflow) drops the offending frame and
// resynchronizes by scanning for the next start marker; per the source's
// adopted behavior (§9 Open Question), a trailing-field-length overflow
// still advances by the declared packet length rather than retrying
// byte-by-byte within the frame.
func Decode(in *Buffer) []*Frame {
	var frames []*Frame
	for {
		// 1. scan forward past non-start bytes
		for in.ReadAvailable() > 0 && in.Bytes()[in.ReadIndex()] != frameStart {
			in.MoveReadIndex(1)
		}
		// 2. need at least marker + length
		if in.ReadAvailable() < 5 {
			return frames
		}
		base := in.ReadIndex()
		buf := in.Bytes()
		pktLen := int(binary.BigEndian.Uint32(buf[base+1 : base+5]))
		// a frame can never be shorter than its fixed fields with every
		// variable-length field empty
		const minFrameLen = 1 + 4 + 4 + 4 + 4 + 4 + 4 + 1
		if pktLen < minFrameLen {
			in.MoveReadIndex(1)
			continue
		}
		if in.ReadAvailable() < pktLen {
			return frames
		}

		frameBytes := make([]byte, pktLen)
		copy(frameBytes, buf[base:base+pktLen])
		in.MoveReadIndex(pktLen)

		if frameBytes[pktLen-1] != frameEnd {
			continue
		}

		frame, ok := parseFrame(frameBytes)
		if !ok {
			continue
		}
		frames = append(frames, frame)
	}
}

// parseFrame validates and decodes one already-length-delimited frame
// (markers, checksum and all fields included). It never advances any
// external read index; the caller already consumed pktLen bytes.
func parseFrame(b []byte) (*Frame, bool) {
	end := len(b)
	pos := 5 // past start marker + packet length

	msgID, pos, ok := readField(b, pos, end)
	if !ok {
		return nil, false
	}
	method, pos, ok := readField(b, pos, end)
	if !ok {
		return nil, false
	}
	if pos+4 >= end {
		return nil, false
	}
	errCode := ErrorCode(binary.BigEndian.Uint32(b[pos:]))
	pos += 4

	errInfo, pos, ok := readField(b, pos, end)
	if !ok {
		return nil, false
	}

	// remaining bytes, minus checksum(4) + end marker(1), are payload
	if pos+4+1 > end {
		return nil, false
	}
	payloadEnd := end - 4 - 1
	if payloadEnd < pos {
		return nil, false
	}
	payload := append([]byte(nil), b[pos:payloadEnd]...)

	checksum := binary.LittleEndian.Uint32(b[payloadEnd:])
	binary.LittleEndian.PutUint32(b[payloadEnd:], 0)
	computed := xorChecksum(b)
	binary.LittleEndian.PutUint32(b[payloadEnd:], checksum)
	if computed != checksum {
		return nil, false
	}

	return &Frame{
		MsgID:   string(msgID),
		Method:  string(method),
		ErrCode: errCode,
		ErrInfo: string(errInfo),
		Payload: payload,
	}, true
}

// readField reads a 4-byte big-endian length followed by that many bytes,
// validating that the field fits within [0, end). index must remain
// strictly less than end (not <=), matching tinypb_coder.cc's
// checkIndexValid (index+len >= end is rejected).
func readField(b []byte, pos, end int) ([]byte, int, bool) {
	if pos+4 >= end {
		return nil, 0, false
	}
	l := int(binary.BigEndian.Uint32(b[pos:]))
	pos += 4
	if l < 0 || pos+l >= end {
		return nil, 0, false
	}
	return b[pos : pos+l], pos + l, true
}
