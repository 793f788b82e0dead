//go:build linux

package rapidrpc

import (
	"golang.org/x/sys/unix"
)

// pollEvent mirrors the interest/readiness flags the source's
// eventloop.cc folds into its own Event bitmask.
type pollEvent uint32

const (
	eventRead  pollEvent = unix.EPOLLIN
	eventWrite pollEvent = unix.EPOLLOUT
	unixErrMask pollEvent = unix.EPOLLERR | unix.EPOLLHUP
)

// poller wraps a single epoll instance plus an eventfd used to break the
// blocking wait from another goroutine, matching ADD_TO_EPOLL/
// DELETE_FROM_EPOLL and the wakeup fd in eventloop.cc.
type poller struct {
	epfd     int
	wakeFD   int
	eventBuf []unix.EpollEvent
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFD, _, errno := unix.Syscall(unix.SYS_EVENTFD2, 0, uintptr(unix.EFD_NONBLOCK|unix.EFD_CLOEXEC), 0)
	if errno != 0 {
		unix.Close(epfd)
		return nil, errno
	}
	p := &poller{epfd: epfd, wakeFD: int(wakeFD), eventBuf: make([]unix.EpollEvent, 128)}
	if err := p.add(p.wakeFD, eventRead); err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

func (p *poller) add(fd int, events pollEvent) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: uint32(events), Fd: int32(fd)})
}

func (p *poller) modify(fd int, events pollEvent) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: uint32(events), Fd: int32(fd)})
}

func (p *poller) del(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks up to timeoutMs (or indefinitely when negative) and reports
// ready (fd, events) pairs, draining the wakeup fd transparently.
func (p *poller) wait(timeoutMs int) ([]readyFD, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	ready := make([]readyFD, 0, n)
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Fd)
		if fd == p.wakeFD {
			p.drainWake()
			continue
		}
		ready = append(ready, readyFD{fd: fd, events: pollEvent(ev.Events)})
	}
	return ready, nil
}

func (p *poller) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(p.wakeFD, buf[:])
		if err != nil {
			return
		}
	}
}

// wake unblocks a concurrent wait call from another goroutine.
func (p *poller) wake() {
	var one [8]byte
	one[0] = 1
	unix.Write(p.wakeFD, one[:])
}

func (p *poller) close() {
	unix.Close(p.wakeFD)
	unix.Close(p.epfd)
}

type readyFD struct {
	fd     int
	events pollEvent
}
