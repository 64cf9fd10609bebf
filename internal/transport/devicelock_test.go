package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSucceedsWhenUnlocked(t *testing.T) {
	d := newDeviceLocks()
	release, ok := d.Acquire("udid-1", time.Second)
	require.True(t, ok)
	release()
}

func TestAcquireTimesOutWhenAlreadyHeld(t *testing.T) {
	d := newDeviceLocks()
	release, ok := d.Acquire("udid-1", time.Second)
	require.True(t, ok)
	defer release()

	_, ok = d.Acquire("udid-1", 10*time.Millisecond)
	assert.False(t, ok, "a second acquire for the same udid must time out while the first holds the lock")
}

func TestAcquireIsIndependentPerUDID(t *testing.T) {
	d := newDeviceLocks()
	release1, ok := d.Acquire("udid-1", time.Second)
	require.True(t, ok)
	defer release1()

	release2, ok := d.Acquire("udid-2", time.Second)
	require.True(t, ok)
	release2()
}

func TestReleaseAllowsSubsequentAcquire(t *testing.T) {
	d := newDeviceLocks()
	release, ok := d.Acquire("udid-1", time.Second)
	require.True(t, ok)
	release()

	_, ok = d.Acquire("udid-1", time.Second)
	assert.True(t, ok, "releasing must free the semaphore for the next acquire")
}
