package rapidrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeFrame(t *testing.T, f *Frame) []byte {
	t.Helper()
	buf := NewBuffer(64)
	Encode(f, buf)
	return append([]byte(nil), buf.Unread()...)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := &Frame{MsgID: "00000000000000000001", Method: "OrderService.PlaceOrder", Payload: []byte("payload-bytes")}
	buf := NewBuffer(64)
	Encode(f, buf)

	frames := Decode(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, f.MsgID, frames[0].MsgID)
	assert.Equal(t, f.Method, frames[0].Method)
	assert.Equal(t, f.Payload, frames[0].Payload)
	assert.Equal(t, OK, frames[0].ErrCode)
}

func TestDecodeAcrossMultipleFeeds(t *testing.T) {
	f := &Frame{MsgID: "1", Method: "A.B", Payload: []byte("xyz")}
	full := encodeFrame(t, f)

	buf := NewBuffer(64)
	mid := len(full) / 2
	buf.Write(full[:mid])
	assert.Empty(t, Decode(buf))

	buf.Write(full[mid:])
	frames := Decode(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, "1", frames[0].MsgID)
}

func TestDecodeRejectsCorruptedPayloadByte(t *testing.T) {
	f := &Frame{MsgID: "1", Method: "A.B", Payload: []byte("xyz")}
	full := encodeFrame(t, f)
	full[len(full)-6] ^= 0xFF // flip a payload byte, checksum no longer matches

	buf := NewBuffer(64)
	buf.Write(full)
	assert.Empty(t, Decode(buf))
}

func TestDecodeSkipsGarbagePrefix(t *testing.T) {
	f := &Frame{MsgID: "1", Method: "A.B", Payload: []byte("xyz")}
	full := encodeFrame(t, f)

	buf := NewBuffer(64)
	buf.Write([]byte{0xAA, 0xBB, 0xCC})
	buf.Write(full)

	frames := Decode(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, "1", frames[0].MsgID)
}

func TestDecodeTwoFramesBackToBack(t *testing.T) {
	f1 := &Frame{MsgID: "1", Method: "A.B", Payload: []byte("one")}
	f2 := &Frame{MsgID: "2", Method: "A.C", Payload: []byte("two")}

	buf := NewBuffer(64)
	Encode(f1, buf)
	Encode(f2, buf)

	frames := Decode(buf)
	require.Len(t, frames, 2)
	assert.Equal(t, "1", frames[0].MsgID)
	assert.Equal(t, "2", frames[1].MsgID)
}

func TestXORChecksumOddLength(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	sum := xorChecksum(data)
	assert.NotZero(t, sum)
}
