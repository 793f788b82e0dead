package rapidrpc

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qx-io/rapidrpc/metrics"
)

// epollWaitMaxMs bounds the blocking wait so a loop whose timer becomes
// due without an fd event still wakes in reasonable time, mirroring
// eventloop.cc's hard-coded 10000ms epoll_wait ceiling.
const epollWaitMaxMs = 10000

// EventLoop is a single-goroutine reactor: it owns one poller, one set of
// registered fdEvents, one Timer, and a cross-goroutine task queue. It is
// the Go analogue of eventloop.cc's EventLoop, minus the thread-affinity
// assertions a Go goroutine doesn't need an equivalent of (IsInLoopThread
// below is a best-effort diagnostic, not a hard guard).
type EventLoop struct {
	p *poller

	mu      sync.Mutex
	fds     map[int]*fdEvent
	tasks   []func()
	taskAt  []time.Time

	timer *Timer

	loopGoroutine int64 // goroutine id Loop is running on; 0 before start

	stopCh chan struct{}
	doneCh chan struct{}
	stopped int32
}

// NewEventLoop constructs an EventLoop; call Loop to run it.
func NewEventLoop() (*EventLoop, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &EventLoop{
		p:      p,
		fds:    make(map[int]*fdEvent),
		timer:  NewTimer(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// AddFD registers fd with the loop, returning its fdEvent for callback
// and interest-mask configuration. Safe to call from any goroutine; the
// fd is recorded in the loop's registry on the loop goroutine via AddTask.
// It is not added to the poller here: callers do that with UpdateFD.
func (l *EventLoop) AddFD(fd int) *fdEvent {
	e := newFDEvent(fd)
	l.AddTask(func() {
		l.mu.Lock()
		l.fds[fd] = e
		l.mu.Unlock()
	}, true)
	return e
}

// UpdateFD pushes e's current interest mask to the poller. Must be
// scheduled on the loop goroutine (callers typically invoke this from
// within a callback already running there).
func (l *EventLoop) UpdateFD(e *fdEvent, registered bool) {
	if registered {
		l.p.modify(e.fd, e.interest)
	} else {
		l.p.add(e.fd, e.interest)
	}
}

// DeleteFD unregisters fd from the loop and the poller.
func (l *EventLoop) DeleteFD(fd int) {
	l.AddTask(func() {
		l.mu.Lock()
		delete(l.fds, fd)
		l.mu.Unlock()
		l.p.del(fd)
	}, true)
}

// AddTask enqueues cb to run on the loop goroutine. If wakeup is true (or
// the caller is not the loop goroutine) the loop's blocking wait is
// interrupted so cb runs promptly instead of waiting for the next natural
// wake, mirroring eventloop.cc's addTask(cb, is_wake_up).
func (l *EventLoop) AddTask(cb func(), wakeup bool) {
	l.mu.Lock()
	l.tasks = append(l.tasks, cb)
	l.taskAt = append(l.taskAt, time.Now())
	l.mu.Unlock()
	if wakeup || !l.IsInLoopThread() {
		l.p.wake()
	}
}

// AddTimer schedules event on this loop's Timer and re-arms the
// underlying wait if event becomes the new earliest arrival.
func (l *EventLoop) AddTimer(event *TimerEvent) {
	l.AddTask(func() {
		l.timer.Add(event)
	}, true)
}

// DeleteTimer cancels event.
func (l *EventLoop) DeleteTimer(event *TimerEvent) {
	event.SetCanceled(true)
}

// IsInLoopThread reports whether the calling goroutine is the one running
// Loop, the analogue of eventloop.cc's isInLoopThread() pid comparison.
// Used for assertions and to decide whether AddTask needs to wake the
// poller, not for synchronization.
func (l *EventLoop) IsInLoopThread() bool {
	return atomic.LoadInt64(&l.loopGoroutine) == goroutineID()
}

// Stop asks the loop to return from Loop after completing in-flight work.
func (l *EventLoop) Stop() {
	if atomic.CompareAndSwapInt32(&l.stopped, 0, 1) {
		close(l.stopCh)
		l.p.wake()
	}
	<-l.doneCh
	l.p.close()
}

// Loop runs the reactor until Stop is called. Each iteration: drain the
// task queue, run any due timer callbacks, compute the next wait bound,
// block in epoll_wait, then enqueue each ready fdEvent's handling as a
// task that runs at the next drain. This is the Go rendering of
// eventloop.cc's loop(): task-queue draining happens before event
// dispatch, and ready callbacks are never invoked inline, so they keep
// their FIFO order relative to externally submitted tasks.
func (l *EventLoop) Loop() {
	atomic.StoreInt64(&l.loopGoroutine, goroutineID())
	defer close(l.doneCh)

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		l.runTasks()

		due, next, hasPending := l.timer.OnFire()
		metrics.TimerQueueDepth.Set(float64(l.timer.Len()))
		for _, e := range due {
			if e.cb != nil {
				e.cb()
			}
		}

		waitMs := epollWaitMaxMs
		if hasPending {
			if ms := int(next / 1e6); ms < waitMs {
				waitMs = ms
			}
		}

		ready, err := l.p.wait(waitMs)
		if err != nil {
			continue
		}
		l.dispatch(ready)
	}
}

func (l *EventLoop) runTasks() {
	l.mu.Lock()
	tasks := l.tasks
	taskAt := l.taskAt
	l.tasks = nil
	l.taskAt = nil
	l.mu.Unlock()
	now := time.Now()
	for i, t := range tasks {
		metrics.TaskQueueLatency.Observe(now.Sub(taskAt[i]).Seconds())
		t()
	}
}

func (l *EventLoop) dispatch(ready []readyFD) {
	l.mu.Lock()
	events := make(map[int]pollEvent, len(ready))
	handlers := make(map[int]*fdEvent, len(ready))
	for _, r := range ready {
		if e, ok := l.fds[r.fd]; ok {
			events[r.fd] = r.events
			handlers[r.fd] = e
		}
	}
	l.mu.Unlock()

	for fd, e := range handlers {
		e, ev := e, events[fd]
		l.AddTask(func() { e.handle(ev) }, false)
	}
}

// goroutineID extracts the calling goroutine's runtime id by parsing its
// stack trace header ("goroutine 123 [running]:"). Go exposes no public
// API for this; it is only used for the IsInLoopThread diagnostic.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
