package rapidrpc

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/qx-io/rapidrpc/metrics"
)

// Server accepts inbound connections on the main reactor and hands each
// one off round-robin to a worker EventLoop, the Go shape of
// tcp_server.cc/tcp_acceptor.cc's Main Reactor / Worker Reactor split.
type Server struct {
	addr NetAddr

	mainLoop *EventLoop
	workers  []*EventLoop
	next     int

	listenFD int
	acceptE  *fdEvent

	mu    sync.Mutex
	conns map[*Connection]struct{}

	dispatcher *Dispatcher
}

// NewServer constructs a Server bound to addr, driven by mainLoop for
// accept() and workers for per-connection I/O. len(workers) must be >= 1.
func NewServer(addr NetAddr, mainLoop *EventLoop, workers []*EventLoop, d *Dispatcher) *Server {
	return &Server{
		addr:       addr,
		mainLoop:   mainLoop,
		workers:    workers,
		conns:      make(map[*Connection]struct{}),
		dispatcher: d,
	}
}

// Start binds and listens, registering the accept callback on mainLoop.
func (s *Server) Start() error {
	domain := unix.AF_INET
	if s.addr.Network() == "tcp6" {
		domain = unix.AF_INET6
	} else if s.addr.Network() == "unix" {
		domain = unix.AF_UNIX
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return errors.Wrap(err, "socket")
	}
	if domain != unix.AF_UNIX {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return errors.Wrap(err, "setsockopt SO_REUSEADDR")
		}
	}
	if err := unix.Bind(fd, s.addr.SockAddr()); err != nil {
		unix.Close(fd)
		return errors.Wrapf(err, "bind %s", s.addr)
	}
	const backlog = 128
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return errors.Wrap(err, "listen")
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return errors.Wrap(err, "set nonblocking")
	}
	s.listenFD = fd

	s.acceptE = s.mainLoop.AddFD(fd)
	s.acceptE.setReadCallback(s.handleAccept)
	s.acceptE.enableRead(true)
	s.mainLoop.AddTask(func() { s.mainLoop.UpdateFD(s.acceptE, false) }, true)
	return nil
}

func (s *Server) handleAccept() {
	for {
		nfd, sa, err := unix.Accept(s.listenFD)
		if err != nil {
			return
		}
		w := s.pickWorker()
		peer := NetAddrFromSockaddr(sa)
		conn := NewConnection(w, nfd, roleServer, s.addr, peer)
		conn.SetDispatch(s.dispatch)
		conn.SetOnClose(s.forget)

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		metrics.ActiveConnections.Inc()

		w.AddTask(func() { conn.Established() }, true)
	}
}

func (s *Server) pickWorker() *EventLoop {
	if len(s.workers) == 0 {
		return s.mainLoop
	}
	s.mu.Lock()
	w := s.workers[s.next%len(s.workers)]
	s.next++
	s.mu.Unlock()
	return w
}

func (s *Server) dispatch(req *Frame) *Frame {
	resp := &Frame{MsgID: req.MsgID, Method: req.Method}
	s.dispatcher.Dispatch(req, resp)
	return resp
}

func (s *Server) forget(c *Connection) {
	s.mu.Lock()
	_, found := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()
	if found {
		metrics.ActiveConnections.Dec()
	}
}

// ConnectionCount reports the number of currently live connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stop closes the listening socket. In-flight connections are left to
// drain; callers that want a hard stop should also Stop each worker loop.
func (s *Server) Stop() {
	s.mainLoop.DeleteFD(s.listenFD)
	unix.Close(s.listenFD)
}
