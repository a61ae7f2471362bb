package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey_Valid(t *testing.T) {
	key, err := ParseKey("retry-abc-123")
	require.NoError(t, err)
	assert.Equal(t, "retry-abc-123", key.String())
	assert.False(t, key.IsZero())
}

func TestParseKey_TrimsWhitespace(t *testing.T) {
	key, err := ParseKey("  abc \n")
	require.NoError(t, err)
	assert.Equal(t, "abc", key.String())
}

func TestParseKey_RejectsEmpty(t *testing.T) {
	_, err := ParseKey("")
	require.Error(t, err)

	_, err = ParseKey("   \t ")
	require.Error(t, err)
}

func TestParseKey_RejectsOverlong(t *testing.T) {
	_, err := ParseKey(strings.Repeat("x", 129))
	require.Error(t, err)

	key, err := ParseKey(strings.Repeat("x", 128))
	require.NoError(t, err)
	assert.Len(t, key.String(), 128)
}

func TestKey_ZeroValue(t *testing.T) {
	var key Key
	assert.True(t, key.IsZero())
}
