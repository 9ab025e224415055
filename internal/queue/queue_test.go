package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	q := New(4, 16)
	assert.True(t, q.Push([]byte("a"), 0, false))
	assert.True(t, q.Push([]byte("b"), 1, false))

	buf := make([]byte, 16)
	n, iface, short, ok := q.TryPop(buf)
	require.True(t, ok)
	assert.Equal(t, "a", string(buf[:n]))
	assert.Equal(t, 0, iface)
	assert.False(t, short)

	n, iface, _, ok = q.TryPop(buf)
	require.True(t, ok)
	assert.Equal(t, "b", string(buf[:n]))
	assert.Equal(t, 1, iface)
}

func TestDropsWhenFull(t *testing.T) {
	q := New(2, 8)
	assert.True(t, q.Push([]byte("1"), 0, false))
	assert.True(t, q.Push([]byte("2"), 0, false))
	assert.False(t, q.Push([]byte("3"), 0, false))
	assert.Equal(t, uint64(1), q.Dropped())
}

func TestTryPopEmptyReturnsFalse(t *testing.T) {
	q := New(2, 8)
	buf := make([]byte, 8)
	_, _, _, ok := q.TryPop(buf)
	assert.False(t, ok)
}

func TestTimedPopWakesOnPush(t *testing.T) {
	q := New(2, 8)
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push([]byte("late"), 2, true)
	}()
	buf := make([]byte, 8)
	n, iface, short, ok := q.TimedPop(buf, 200*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "late", string(buf[:n]))
	assert.Equal(t, 2, iface)
	assert.True(t, short)
}

func TestTimedPopTimesOut(t *testing.T) {
	q := New(2, 8)
	buf := make([]byte, 8)
	_, _, _, ok := q.TimedPop(buf, 30*time.Millisecond)
	assert.False(t, ok)
}

func TestPeakAndReset(t *testing.T) {
	q := New(4, 8)
	q.Push([]byte("a"), 0, false)
	q.Push([]byte("b"), 0, false)
	peak := q.PeakAndReset()
	assert.Equal(t, 2, peak)
	buf := make([]byte, 8)
	q.TryPop(buf)
	peak2 := q.PeakAndReset()
	assert.Equal(t, 2, peak2)
}
