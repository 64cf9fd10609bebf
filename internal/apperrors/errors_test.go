package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := New(KindNotFound, "get-session", "no such session")
	assert.Equal(t, "not-found [get-session]: no such session", err.Error())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindIO, "store-write", "failed to write", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsMatchesByKindOnly(t *testing.T) {
	a := New(KindBusy, "op-a", "device busy")
	b := New(KindBusy, "op-b", "different message, same kind")
	c := New(KindTimeout, "op-a", "device busy")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindConfiguration: http.StatusBadRequest,
		KindProtocol:      http.StatusBadRequest,
		KindNotFound:      http.StatusNotFound,
		KindBadState:      http.StatusConflict,
		KindBusy:          http.StatusConflict,
		KindRateLimited:   http.StatusTooManyRequests,
		KindCapExceeded:   http.StatusTooManyRequests,
		KindTimeout:       http.StatusGatewayTimeout,
		KindHostDriver:    http.StatusInternalServerError,
		KindIO:            http.StatusInternalServerError,
		KindInternal:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		require.Equal(t, want, HTTPStatus(kind), "kind=%s", kind)
	}
	// Unknown/zero-value kind falls back to 500.
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Kind("made-up")))
}

func TestWrapPreservesChainThroughMultipleLayers(t *testing.T) {
	root := New(KindHostDriver, "simctl", "exit code 65")
	mid := Wrap(KindTimeout, "run", "operation timed out", root)
	top := Wrap(KindInternal, "dispatch", "dispatch failed", mid)

	assert.Equal(t, KindInternal, KindOf(top))
	assert.True(t, errors.Is(top, New(KindTimeout, "anything", "anything")))
	assert.True(t, errors.Is(top, New(KindHostDriver, "anything", "anything")))
}
