package rapidrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferWriteRead(t *testing.T) {
	b := NewBuffer(8)
	n := b.Write([]byte("hello"))
	require.Equal(t, 5, n)
	assert.Equal(t, 5, b.ReadAvailable())

	out := make([]byte, 5)
	n = b.Read(out)
	require.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out))
}

func TestBufferGrowsOnOverflow(t *testing.T) {
	b := NewBuffer(4)
	payload := []byte("this is longer than four bytes")
	n := b.Write(payload)
	require.Equal(t, len(payload), n)
	assert.GreaterOrEqual(t, len(b.Bytes()), len(payload))
	assert.Equal(t, len(payload), b.ReadAvailable())
}

func TestBufferShiftsAtHalfCapacity(t *testing.T) {
	b := NewBuffer(10)
	b.Write(make([]byte, 10))
	out := make([]byte, 6)
	b.Read(out) // r becomes 6, which is >= cap/2 (5), so shift fires

	assert.Equal(t, 0, b.ReadIndex())
	assert.Equal(t, 4, b.WriteIndex())
}

func TestBufferReadEmptyReturnsNegativeOne(t *testing.T) {
	b := NewBuffer(4)
	out := make([]byte, 4)
	assert.Equal(t, -1, b.Read(out))
}

func TestBufferMoveReadIndexOverrunResets(t *testing.T) {
	b := NewBuffer(8)
	b.Write([]byte("abcd"))
	b.MoveReadIndex(100)
	assert.Equal(t, 0, b.ReadIndex())
	assert.Equal(t, 0, b.WriteIndex())
}

func TestBufferEnsureWritable(t *testing.T) {
	b := NewBuffer(4)
	b.EnsureWritable(100)
	assert.GreaterOrEqual(t, b.WriteAvailable(), 100)
}
