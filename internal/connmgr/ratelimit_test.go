package connmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindowLimiterAllowsUpToLimit(t *testing.T) {
	l := newSlidingWindowLimiter(time.Minute, 20)
	for i := 0; i < 20; i++ {
		assert.True(t, l.allow("k"), "event %d should be allowed", i)
	}
	assert.False(t, l.allow("k"), "21st event within the window must be denied")
}

func TestSlidingWindowLimiterPrunesExpiredEntries(t *testing.T) {
	l := newSlidingWindowLimiter(20*time.Millisecond, 1)
	assert.True(t, l.allow("k"))
	assert.False(t, l.allow("k"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.allow("k"), "window should have rolled past the first event")
}

func TestSlidingWindowLimiterKeysAreIndependent(t *testing.T) {
	l := newSlidingWindowLimiter(time.Minute, 1)
	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("b"))
	assert.False(t, l.allow("a"))
	assert.False(t, l.allow("b"))
}

func TestSlidingWindowLimiterForget(t *testing.T) {
	l := newSlidingWindowLimiter(time.Minute, 1)
	assert.True(t, l.allow("k"))
	assert.False(t, l.allow("k"))
	l.forget("k")
	assert.True(t, l.allow("k"), "forgetting a key should clear its history")
}
