package rapidrpc

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// connState is the lifecycle of one Connection, matching
// tcp_connection.h's TcpStateType.
type connState int32

const (
	stateNotConnected connState = iota
	stateConnected
	stateHalfClosed
	stateClosed
)

type connRole int

const (
	roleServer connRole = iota
	roleClient
)

// pendingCall tracks one in-flight client-side request awaiting its
// msg-id-matched reply, the Go counterpart to rpc_channel.cc's use of the
// connection to correlate a single outstanding call at a time per msg-id.
type pendingCall struct {
	msgID string
	done  func(*Frame, error)
}

// Connection is one accepted or dialed TCP connection driving a pair of
// Buffers and a length-prefixed frame codec, the analogue of
// tcp_connection.cc. It is owned by exactly one EventLoop/worker and must
// only be touched from that loop's goroutine once registered.
type Connection struct {
	fd   int
	loop *EventLoop
	fdE  *fdEvent
	role connRole

	local NetAddr
	peer  NetAddr

	in  *Buffer
	out *Buffer

	state int32 // connState, accessed atomically for cross-goroutine reads

	mu       sync.Mutex
	pending  map[string]*pendingCall // client role: msgID -> waiter
	onClose  func(*Connection)

	// dispatch is invoked for each fully decoded request frame when
	// role == roleServer; its return value is written back as the reply.
	dispatch func(req *Frame) *Frame
}

// NewConnection wraps fd (already accepted or connected) for loop.
func NewConnection(loop *EventLoop, fd int, role connRole, local, peer NetAddr) *Connection {
	c := &Connection{
		fd:      fd,
		loop:    loop,
		role:    role,
		local:   local,
		peer:    peer,
		in:      NewBuffer(4096),
		out:     NewBuffer(4096),
		pending: make(map[string]*pendingCall),
	}
	atomic.StoreInt32(&c.state, int32(stateNotConnected))
	return c
}

// Established registers the connection's fd with its loop and marks it
// connected, wiring read/write/error callbacks. The fd must not already be
// registered with the loop's poller.
func (c *Connection) Established() {
	unix.SetNonblock(c.fd, true)
	c.attach(c.loop.AddFD(c.fd), false)
}

// EstablishedFromFD takes over an fd already registered with the loop
// (e.g. one used to detect a non-blocking connect's completion) instead
// of adding it fresh, avoiding a duplicate EPOLL_CTL_ADD on the same fd.
func (c *Connection) EstablishedFromFD(e *fdEvent) {
	c.attach(e, true)
}

func (c *Connection) attach(e *fdEvent, alreadyRegistered bool) {
	atomic.StoreInt32(&c.state, int32(stateConnected))
	c.fdE = e
	c.fdE.setReadCallback(c.handleRead)
	c.fdE.setWriteCallback(c.handleWrite)
	c.fdE.setErrorCallback(c.handleError)
	c.fdE.enableWrite(false)
	c.fdE.enableRead(true)
	c.loop.AddTask(func() { c.loop.UpdateFD(c.fdE, alreadyRegistered) }, true)
}

// State reports the connection's current lifecycle state.
func (c *Connection) State() connState {
	return connState(atomic.LoadInt32(&c.state))
}

// SetDispatch installs the server-role request handler.
func (c *Connection) SetDispatch(fn func(req *Frame) *Frame) { c.dispatch = fn }

// SetOnClose installs the callback invoked once the connection is torn
// down, so the owning server/client can drop it from its live set.
func (c *Connection) SetOnClose(fn func(*Connection)) { c.onClose = fn }

// handleRead drains fd into the input buffer, decodes complete frames,
// and for servers dispatches each one and queues its reply; for clients
// it completes the matching pending call.
func (c *Connection) handleRead() {
	var rbuf [4096]byte
	for {
		n, err := unix.Read(c.fd, rbuf[:])
		if n > 0 {
			c.in.Write(rbuf[:n])
		}
		if err == unix.EAGAIN {
			break
		}
		if err != nil || n == 0 {
			c.close()
			return
		}
		if n < len(rbuf) {
			break
		}
	}

	for _, frame := range Decode(c.in) {
		c.handleFrame(frame)
	}
}

func (c *Connection) handleFrame(frame *Frame) {
	switch c.role {
	case roleServer:
		if c.dispatch == nil {
			return
		}
		reply := c.dispatch(frame)
		if reply != nil {
			c.queueWrite(reply)
		}
	case roleClient:
		c.mu.Lock()
		p, ok := c.pending[frame.MsgID]
		if ok {
			delete(c.pending, frame.MsgID)
		}
		c.mu.Unlock()
		if ok {
			p.done(frame, nil)
		}
	}
}

// queueWrite appends frame's wire encoding to the outbound buffer and
// enables write-readiness, matching tcp_connection.cc's reply path:
// buffered writes are flushed opportunistically as the fd drains.
func (c *Connection) queueWrite(frame *Frame) {
	if c.State() != stateConnected {
		return
	}
	c.loop.AddTask(func() {
		Encode(frame, c.out)
		if !c.fdE.isWriting() {
			c.fdE.enableWrite(true)
			c.loop.UpdateFD(c.fdE, true)
		}
	}, true)
}

// CallAsync registers a pending completion for msgID and queues req for
// write, used by the client-side RPCChannel.
func (c *Connection) CallAsync(req *Frame, done func(*Frame, error)) {
	c.mu.Lock()
	c.pending[req.MsgID] = &pendingCall{msgID: req.MsgID, done: done}
	c.mu.Unlock()
	c.queueWrite(req)
}

// CancelCall removes msgID's pending completion, e.g. on timeout.
func (c *Connection) CancelCall(msgID string) {
	c.mu.Lock()
	delete(c.pending, msgID)
	c.mu.Unlock()
}

func (c *Connection) handleWrite() {
	for c.out.ReadAvailable() > 0 {
		n, err := unix.Write(c.fd, c.out.Unread())
		if n > 0 {
			c.out.MoveReadIndex(n)
		}
		if err == unix.EAGAIN {
			return
		}
		if err != nil {
			c.close()
			return
		}
		if n == 0 {
			return
		}
	}
	c.fdE.enableWrite(false)
	c.loop.UpdateFD(c.fdE, true)
	if c.State() == stateHalfClosed {
		c.close()
	}
}

func (c *Connection) handleError() {
	c.close()
}

// close tears the connection down, deregistering its fd and notifying
// any still-pending calls with PeerClosed.
func (c *Connection) close() {
	if !atomic.CompareAndSwapInt32(&c.state, int32(stateConnected), int32(stateClosed)) &&
		!atomic.CompareAndSwapInt32(&c.state, int32(stateHalfClosed), int32(stateClosed)) {
		return
	}
	c.loop.DeleteFD(c.fd)
	unix.Close(c.fd)

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, p := range pending {
		p.done(nil, NewError(PeerClosed, "connection closed"))
	}
	if c.onClose != nil {
		c.onClose(c)
	}
}

// Shutdown half-closes the connection: no further writes are accepted,
// but buffered output is flushed before the fd is actually closed.
func (c *Connection) Shutdown() {
	if atomic.CompareAndSwapInt32(&c.state, int32(stateConnected), int32(stateHalfClosed)) {
		if c.out.ReadAvailable() == 0 {
			c.close()
		}
	}
}

// LocalAddr and PeerAddr report the connection's endpoints.
func (c *Connection) LocalAddr() NetAddr { return c.local }
func (c *Connection) PeerAddr() NetAddr  { return c.peer }
