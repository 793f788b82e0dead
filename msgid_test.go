package rapidrpc

import "testing"

func TestMsgIDGeneratorLength(t *testing.T) {
	g := NewMsgIDGenerator()
	id := g.Next()
	if len(id) != msgIDLength {
		t.Fatalf("expected length %d, got %d: %q", msgIDLength, len(id), id)
	}
}

func TestMsgIDGeneratorMonotonicallyIncreases(t *testing.T) {
	g := NewMsgIDGenerator()
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		next := g.Next()
		if next <= prev {
			t.Fatalf("msg-id did not increase: prev=%q next=%q", prev, next)
		}
		prev = next
	}
}

func TestMsgIDGeneratorReseedsOnOverflow(t *testing.T) {
	g := &MsgIDGenerator{current: append([]byte(nil), maxMsgID...)}
	id := g.Next()
	if id == string(maxMsgID) {
		t.Fatalf("expected reseed past all-nines overflow")
	}
	if len(id) != msgIDLength {
		t.Fatalf("expected reseeded id length %d, got %d", msgIDLength, len(id))
	}
}
