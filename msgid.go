package rapidrpc

import (
	"crypto/rand"
)

const msgIDLength = 20

// MsgIDGenerator produces 20-decimal-digit msg-ids, monotonically
// increasing within the generator, reseeding from crypto/rand on overflow.
// The source keys this state per-OS-thread via thread_local; Go has no
// language-level thread-local storage, so each RPCChannel owns its own
// *MsgIDGenerator instance instead (see
// DESIGN.md OQ-1). msg-ids are treated as opaque by every other component.
type MsgIDGenerator struct {
	current []byte // ASCII digits, len == msgIDLength
}

// NewMsgIDGenerator returns a generator with no seed yet; the first call
// to Next reseeds from the OS CSPRNG.
func NewMsgIDGenerator() *MsgIDGenerator {
	return &MsgIDGenerator{}
}

var maxMsgID = func() []byte {
	b := make([]byte, msgIDLength)
	for i := range b {
		b[i] = '9'
	}
	return b
}()

// Next returns the next msg-id for this generator.
func (g *MsgIDGenerator) Next() string {
	if g.current == nil || string(g.current) == string(maxMsgID) {
		g.reseed()
		return string(g.current)
	}
	g.increment()
	return string(g.current)
}

func (g *MsgIDGenerator) reseed() {
	raw := make([]byte, msgIDLength)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand failing is effectively fatal for the host; fall back
		// to an all-zero seed rather than panicking mid-call.
		raw = make([]byte, msgIDLength)
	}
	digits := make([]byte, msgIDLength)
	for i, v := range raw {
		digits[i] = '0' + v%10
	}
	g.current = digits
}

func (g *MsgIDGenerator) increment() {
	carry := byte(1)
	for i := msgIDLength - 1; i >= 0; i-- {
		num := g.current[i] - '0' + carry
		if num >= 10 {
			g.current[i] = '0'
			carry = 1
		} else {
			g.current[i] = '0' + num
			carry = 0
			break
		}
	}
}
