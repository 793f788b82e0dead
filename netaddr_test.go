package rapidrpc

import "testing"

func TestParseIPNetAddrValid(t *testing.T) {
	a := ParseIPNetAddr("127.0.0.1:8080")
	if !a.Valid() {
		t.Fatalf("expected valid address, got %+v", a)
	}
	if a.String() != "127.0.0.1:8080" {
		t.Fatalf("unexpected String(): %s", a.String())
	}
}

func TestParseIPNetAddrMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-an-address",
		"256.256.256.256:80",
		"127.0.0.1",
		"127.0.0.1:notaport",
		"[::1]:80", // IPv6 literal fed to the IPv4 parser
	}
	for _, c := range cases {
		a := ParseIPNetAddr(c)
		if a.Valid() {
			t.Errorf("expected %q to be invalid, got valid address %+v", c, a)
		}
	}
}

func TestParseIP6NetAddrValid(t *testing.T) {
	a := ParseIP6NetAddr("[::1]:8080")
	if !a.Valid() {
		t.Fatalf("expected valid address, got %+v", a)
	}
	if a.String() != "[::1]:8080" {
		t.Fatalf("unexpected String(): %s", a.String())
	}
}

func TestParseIP6NetAddrMalformed(t *testing.T) {
	cases := []string{
		"",
		"[not-an-address]:80",
		"127.0.0.1:80", // IPv4 literal fed to the IPv6 parser
	}
	for _, c := range cases {
		a := ParseIP6NetAddr(c)
		if a.Valid() {
			t.Errorf("expected %q to be invalid, got valid address %+v", c, a)
		}
	}
}

func TestUnixNetAddr(t *testing.T) {
	a := &UnixNetAddr{Path: "/tmp/rapidrpc.sock"}
	if !a.Valid() {
		t.Fatalf("expected valid address")
	}
	if a.Network() != "unix" {
		t.Fatalf("unexpected network: %s", a.Network())
	}

	empty := &UnixNetAddr{}
	if empty.Valid() {
		t.Fatalf("expected empty path to be invalid")
	}
}
