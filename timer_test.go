package rapidrpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerFiresInArrivalOrder(t *testing.T) {
	tm := NewTimer()
	var fired []string

	e1 := NewTimerEvent(5*time.Millisecond, false, func() { fired = append(fired, "first") })
	e2 := NewTimerEvent(15*time.Millisecond, false, func() { fired = append(fired, "second") })
	tm.Add(e2)
	tm.Add(e1)

	time.Sleep(10 * time.Millisecond)
	due, _, _ := tm.OnFire()
	for _, e := range due {
		e.cb()
	}
	require.Len(t, due, 1)
	assert.Equal(t, []string{"first"}, fired)

	time.Sleep(10 * time.Millisecond)
	due, _, hasPending := tm.OnFire()
	for _, e := range due {
		e.cb()
	}
	require.Len(t, due, 1)
	assert.Equal(t, []string{"first", "second"}, fired)
	assert.False(t, hasPending)
}

func TestTimerRepeatReinsertsBeforeInvoking(t *testing.T) {
	tm := NewTimer()
	count := 0
	e := NewTimerEvent(1*time.Millisecond, true, func() { count++ })
	tm.Add(e)

	time.Sleep(5 * time.Millisecond)
	due, _, hasPending := tm.OnFire()
	for _, d := range due {
		d.cb()
	}
	assert.Len(t, due, 1)
	assert.True(t, hasPending, "a repeating event must still be pending after firing once")
	assert.Equal(t, 1, count)
}

func TestTimerDeleteCancelsBeforeFire(t *testing.T) {
	tm := NewTimer()
	fired := false
	e := NewTimerEvent(1*time.Millisecond, false, func() { fired = true })
	tm.Add(e)
	tm.Delete(e)

	time.Sleep(5 * time.Millisecond)
	due, _, _ := tm.OnFire()
	assert.Empty(t, due)
	assert.False(t, fired)
}

func TestTimerRearmFloorWhenArrivalAlreadyPassed(t *testing.T) {
	tm := NewTimer()
	e := NewTimerEvent(0, false, func() {})
	time.Sleep(time.Millisecond)
	d, changed := tm.Add(e)
	require.True(t, changed)
	assert.GreaterOrEqual(t, d, minRearmInterval)
}
