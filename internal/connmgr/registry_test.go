package connmgr

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/logging"
)

func alwaysValid(string) bool { return true }

func TestTryRegisterRespectsPerSessionCap(t *testing.T) {
	r := New(logging.NewLogger("test"), alwaysValid, 1000, time.Minute, 2)

	assert.NoError(t, r.TryRegister("s1", KindVideo, "10.0.0.1", NewHandle()))
	assert.NoError(t, r.TryRegister("s1", KindVideo, "10.0.0.1", NewHandle()))

	err := r.TryRegister("s1", KindVideo, "10.0.0.1", NewHandle())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCapExceeded, apperrors.KindOf(err))
}

func TestTryRegisterRespectsRateLimit(t *testing.T) {
	r := New(logging.NewLogger("test"), alwaysValid, 20, time.Minute, 1000)

	for i := 0; i < 20; i++ {
		require.NoError(t, r.TryRegister("s1", KindVideo, "1.2.3.4", NewHandle()))
	}
	err := r.TryRegister("s1", KindVideo, "1.2.3.4", NewHandle())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRateLimited, apperrors.KindOf(err))
	assert.Equal(t, 20, r.Stats().TotalConnections)
}

func TestTryRegisterRejectsUnknownSession(t *testing.T) {
	r := New(logging.NewLogger("test"), func(string) bool { return false }, 20, time.Minute, 10)
	err := r.TryRegister("ghost", KindControl, "1.2.3.4", NewHandle())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSessionInvalid, apperrors.KindOf(err))
}

func TestScopedRegisterUnregistersOnRelease(t *testing.T) {
	r := New(logging.NewLogger("test"), alwaysValid, 20, time.Minute, 10)

	_, release, err := r.ScopedRegister("s1", KindControl, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Stats().TotalConnections)

	release()
	assert.Equal(t, 0, r.Stats().TotalConnections)
}

func TestReapRemovesCollectedHandles(t *testing.T) {
	r := New(logging.NewLogger("test"), alwaysValid, 20, time.Minute, 10)

	h := NewHandle()
	require.NoError(t, r.TryRegister("s1", KindControl, "1.2.3.4", h))
	h = Handle{}
	runtime.GC()
	runtime.GC()

	removed := r.Reap()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, r.Stats().TotalConnections)
}
