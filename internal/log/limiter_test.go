package log

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixedClock steps a fake clock the Limiter reads instead of time.Now.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter(window time.Duration, maxKeys int) (*Limiter, *fixedClock) {
	clock := &fixedClock{now: time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(window, maxKeys)
	l.now = func() time.Time { return clock.now }
	return l, clock
}

func TestLimiter_SuppressesWithinWindow(t *testing.T) {
	l, clock := newTestLimiter(30*time.Second, 20)

	assert.True(t, l.Allow("bad-event"))
	assert.False(t, l.Allow("bad-event"))

	clock.advance(29 * time.Second)
	assert.False(t, l.Allow("bad-event"))

	clock.advance(time.Second)
	assert.True(t, l.Allow("bad-event"))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(30*time.Second, 20)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("a"))
	assert.False(t, l.Allow("b"))
}

func TestLimiter_EvictsOldestBeyondCap(t *testing.T) {
	l, clock := newTestLimiter(time.Hour, 3)

	for i := 0; i < 4; i++ {
		assert.True(t, l.Allow("key"+strconv.Itoa(i)))
		clock.advance(time.Second)
	}

	// key0 was the stalest and must have been evicted, so it is allowed
	// again even though the window has not elapsed.
	assert.True(t, l.Allow("key0"))

	// key3 is fresh and still suppressed.
	assert.False(t, l.Allow("key3"))
}

func TestLimiter_BoundedSize(t *testing.T) {
	l, clock := newTestLimiter(time.Hour, 5)

	for i := 0; i < 100; i++ {
		l.Allow("key" + strconv.Itoa(i))
		clock.advance(time.Millisecond)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.LessOrEqual(t, len(l.lastSeen), 5)
}

func TestLimiter_ZeroConfigUsesDefaults(t *testing.T) {
	l := NewLimiter(0, 0)
	assert.Equal(t, 30*time.Second, l.window)
	assert.Equal(t, 20, l.maxKeys)
}
