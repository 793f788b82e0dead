package rapidrpc

import (
	"container/heap"
	"sync"
	"time"
)

// minRearmInterval matches timer.cc's 100ms floor used when the earliest
// pending arrival has already passed, avoiding a tight busy loop.
const minRearmInterval = 100 * time.Millisecond

// TimerEvent is a scheduled callback: an absolute arrival time, an
// interval, a repeat flag, a canceled flag, and a callback. Timers live in
// a multimap keyed by arrival time, permitting duplicate keys, realized
// here as a min-heap (container/heap) ordered by arrival.
type TimerEvent struct {
	arrival  time.Time
	interval time.Duration
	repeat   bool
	canceled bool
	cb       func()
	index    int // heap.Interface bookkeeping
}

// NewTimerEvent creates a timer firing after interval, optionally
// repeating every interval thereafter.
func NewTimerEvent(interval time.Duration, repeat bool, cb func()) *TimerEvent {
	return &TimerEvent{
		arrival:  time.Now().Add(interval),
		interval: interval,
		repeat:   repeat,
		cb:       cb,
		index:    -1,
	}
}

// SetCanceled marks the event canceled; cancellation between re-arm and
// fire is observational — the event is simply skipped when it is drained.
func (t *TimerEvent) SetCanceled(c bool) { t.canceled = c }

// Canceled reports whether the event has been canceled.
func (t *TimerEvent) Canceled() bool { return t.canceled }

func (t *TimerEvent) resetArrival() {
	t.arrival = time.Now().Add(t.interval)
}

// timerHeap is a min-heap of *TimerEvent ordered by arrival time.
type timerHeap []*TimerEvent

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].arrival.Before(h[j].arrival) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x interface{}) {
	e := x.(*TimerEvent)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Timer is one loop-owned timer primitive backed by the loop's readiness
// wait, driving a heap of pending TimerEvents. It corresponds to
// timer.cc's Timer, minus the timerfd: the owning EventLoop calls OnFire
// from its own goroutine on every iteration and bounds its epoll_wait
// timeout by the next arrival, so Timer itself needs no internal
// goroutine or OS descriptor.
type Timer struct {
	mu      sync.Mutex
	pending timerHeap
}

// NewTimer constructs an empty Timer.
func NewTimer() *Timer {
	return &Timer{}
}

// Add inserts event into the pending set and reports the duration until
// the new earliest arrival with changed == true, or 0 and false if the
// earliest arrival did not change.
func (t *Timer) Add(event *TimerEvent) (nextArrival time.Duration, changed bool) {
	t.mu.Lock()
	wasEmpty := len(t.pending) == 0
	var prevEarliest time.Time
	if !wasEmpty {
		prevEarliest = t.pending[0].arrival
	}
	heap.Push(&t.pending, event)
	changed = wasEmpty || event.arrival.Before(prevEarliest)
	next := t.pending[0].arrival
	t.mu.Unlock()
	if !changed {
		return 0, false
	}
	return t.rearmDuration(next), true
}

// Delete marks event canceled and, if it was the earliest pending
// arrival, reports the new re-arm duration.
func (t *Timer) Delete(event *TimerEvent) (nextArrival time.Duration, changed bool, empty bool) {
	event.SetCanceled(true)

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return 0, false, true
	}
	wasEarliest := t.pending[0] == event
	if event.index >= 0 && event.index < len(t.pending) && t.pending[event.index] == event {
		heap.Remove(&t.pending, event.index)
	}
	if len(t.pending) == 0 {
		return 0, wasEarliest, true
	}
	if !wasEarliest {
		return 0, false, false
	}
	return t.rearmDuration(t.pending[0].arrival), true, false
}

// rearmDuration computes how long until the primitive should next fire,
// applying the 100ms floor the source uses when the earliest arrival has
// already passed. Caller must hold t.mu.
func (t *Timer) rearmDuration(next time.Time) time.Duration {
	d := time.Until(next)
	if d <= 0 {
		return minRearmInterval
	}
	return d
}

// OnFire drains all entries with arrival <= now, reinserting non-canceled
// repeaters (advanced to their next arrival) before invoking any
// callback, so repeating tasks reliably re-enqueue even if their own
// callback panics or blocks. Returns the duration until the next re-arm,
// and whether there is anything left pending.
func (t *Timer) OnFire() (due []*TimerEvent, nextArrival time.Duration, hasPending bool) {
	now := time.Now()

	t.mu.Lock()
	var fired []*TimerEvent
	for len(t.pending) > 0 && !t.pending[0].arrival.After(now) {
		e := heap.Pop(&t.pending).(*TimerEvent)
		fired = append(fired, e)
	}
	for _, e := range fired {
		if e.canceled {
			continue
		}
		if e.repeat {
			e.resetArrival()
			heap.Push(&t.pending, e)
		}
	}
	var next time.Duration
	if len(t.pending) > 0 {
		next = t.rearmDuration(t.pending[0].arrival)
		hasPending = true
	}
	t.mu.Unlock()

	for _, e := range fired {
		if !e.canceled {
			due = append(due, e)
		}
	}
	return due, next, hasPending
}

// Len reports the number of pending (not yet fired) timer events,
// including canceled ones awaiting their drain.
func (t *Timer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
