package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodChainStartsWithStream(t *testing.T) {
	c := newMethodChain()
	m, err := c.next()
	require.NoError(t, err)
	assert.Equal(t, MethodStream, m)
}

func TestMethodChainFallsThroughDisqualifiedMethods(t *testing.T) {
	c := newMethodChain()
	c.disqualify(MethodStream)
	c.disqualify(MethodHWEncode)

	m, err := c.next()
	require.NoError(t, err)
	assert.Equal(t, MethodSWEncode, m)
}

func TestMethodChainDisqualificationIsPermanent(t *testing.T) {
	c := newMethodChain()
	c.disqualify(MethodStream)

	for i := 0; i < 3; i++ {
		m, err := c.next()
		require.NoError(t, err)
		assert.NotEqual(t, MethodStream, m)
	}
}

func TestMethodChainErrorsWhenAllDisqualified(t *testing.T) {
	c := newMethodChain()
	c.disqualify(MethodStream)
	c.disqualify(MethodHWEncode)
	c.disqualify(MethodSWEncode)
	c.disqualify(MethodScreenshot)

	_, err := c.next()
	assert.Error(t, err)
}
