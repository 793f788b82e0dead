package rapidrpc

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Client is a single outbound TCP connection, lazily dialed on first use
// and reused across calls, the Go shape of tcp_client.cc.
type Client struct {
	peer NetAddr
	loop *EventLoop

	mu   sync.Mutex
	conn *Connection
	fd   int

	connectE *fdEvent
	waiters  []func(*Connection, error)
}

// NewClient constructs a Client that will dial peer on loop.
func NewClient(peer NetAddr, loop *EventLoop) *Client {
	return &Client{peer: peer, loop: loop}
}

// Connect returns the established Connection, dialing it if necessary.
// cb is invoked on the loop goroutine once connected or on failure.
func (c *Client) Connect(cb func(*Connection, error)) {
	c.mu.Lock()
	if c.conn != nil && c.conn.State() == stateConnected {
		conn := c.conn
		c.mu.Unlock()
		cb(conn, nil)
		return
	}
	c.waiters = append(c.waiters, cb)
	alreadyDialing := len(c.waiters) > 1
	c.mu.Unlock()
	if alreadyDialing {
		return
	}

	c.loop.AddTask(func() { c.dial() }, true)
}

func (c *Client) dial() {
	domain := unix.AF_INET
	if c.peer.Network() == "tcp6" {
		domain = unix.AF_INET6
	} else if c.peer.Network() == "unix" {
		domain = unix.AF_UNIX
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		c.fail(NewError(FailedConnect, err.Error()))
		return
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		c.fail(NewError(FailedConnect, err.Error()))
		return
	}

	err = unix.Connect(fd, c.peer.SockAddr())
	switch err {
	case nil:
		// Connected synchronously (e.g. loopback); finish immediately. The
		// fd was never registered with the poller, so Established's fresh
		// EPOLL_CTL_ADD path applies.
		c.finish(fd, nil)
	case unix.EINPROGRESS:
		c.fd = fd
		c.connectE = c.loop.AddFD(fd)
		c.connectE.setWriteCallback(c.handleConnectWritable)
		c.connectE.setErrorCallback(func() { c.handleConnectError(fd) })
		c.connectE.enableWrite(true)
		c.loop.UpdateFD(c.connectE, false)
	case unix.ECONNREFUSED:
		unix.Close(fd)
		c.fail(NewError(PeerClosed, "connection refused"))
	default:
		unix.Close(fd)
		c.fail(NewError(FailedConnect, err.Error()))
	}
}

// handleConnectWritable fires once a non-blocking connect resolves;
// SO_ERROR distinguishes success from a deferred failure, and the
// write-interest registered for connect detection is cleared before the
// completion callback runs so the callback can freely re-arm it for
// request writes, mirroring tcp_client.cc's connect-completion handling.
func (c *Client) handleConnectWritable() {
	fd := c.fd
	c.connectE.enableWrite(false)
	c.loop.UpdateFD(c.connectE, true)

	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		c.handleConnectError(fd)
		return
	}
	switch errno {
	case 0:
		// The fd is already registered with the poller via c.connectE; hand
		// that registration over instead of re-adding it.
		c.finish(fd, c.connectE)
	case int(unix.ECONNREFUSED):
		unix.Close(fd)
		c.loop.DeleteFD(fd)
		c.fail(NewError(PeerClosed, "connection refused"))
	default:
		unix.Close(fd)
		c.loop.DeleteFD(fd)
		c.fail(NewError(FailedConnect, unix.Errno(errno).Error()))
	}
}

func (c *Client) handleConnectError(fd int) {
	unix.Close(fd)
	c.loop.DeleteFD(fd)
	c.fail(NewError(FailedConnect, "connect error"))
}

func (c *Client) finish(fd int, existing *fdEvent) {
	local := localAddrOf(fd)
	conn := NewConnection(c.loop, fd, roleClient, local, c.peer)
	if existing != nil {
		conn.EstablishedFromFD(existing)
	} else {
		conn.Established()
	}
	conn.SetOnClose(func(*Connection) {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	})

	c.mu.Lock()
	c.conn = conn
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		w(conn, nil)
	}
}

// localAddrOf reports the local address a connected fd was bound to, the
// getsockname-equivalent tcp_client.cc runs once connect completes so the
// connection's local endpoint is known for logging/addressing purposes.
// A failure here is non-fatal: the connection still proceeds, just
// without a populated local address.
func localAddrOf(fd int) NetAddr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return NetAddrFromSockaddr(sa)
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		w(nil, err)
	}
}

// Close tears down the underlying connection, if any.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Shutdown()
	}
}
