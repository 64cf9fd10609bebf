package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiocontrol/simctrl/internal/apperrors"
)

func TestDisabledGateBypassesVerification(t *testing.T) {
	g := New(false, "")
	assert.False(t, g.Enabled())

	claims, err := g.Verify("")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", claims.Subject)
}

func TestDisabledGateWithEmptyKeyCannotIssue(t *testing.T) {
	g := New(true, "")
	assert.False(t, g.Enabled(), "enabling with no signing key must not actually enable the gate")

	_, err := g.Issue("client-1", time.Hour)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))
}

func TestIssueThenVerifyRoundTrips(t *testing.T) {
	g := New(true, "super-secret-signing-key")
	require.True(t, g.Enabled())

	token, err := g.Issue("client-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := g.Verify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.Subject)
}

func TestVerifyRejectsMissingBearerPrefix(t *testing.T) {
	g := New(true, "super-secret-signing-key")
	token, err := g.Issue("client-1", time.Hour)
	require.NoError(t, err)

	_, err = g.Verify(token)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindProtocol, apperrors.KindOf(err))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	g := New(true, "super-secret-signing-key")
	token, err := g.Issue("client-1", -time.Minute)
	require.NoError(t, err)

	_, err = g.Verify("Bearer " + token)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindProtocol, apperrors.KindOf(err))
}

func TestVerifyRejectsTokenSignedWithDifferentKey(t *testing.T) {
	issuer := New(true, "key-a")
	verifier := New(true, "key-b")

	token, err := issuer.Issue("client-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify("Bearer " + token)
	require.Error(t, err)
}
