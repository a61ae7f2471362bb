package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSubscriberName(t *testing.T) {
	require.NoError(t, ValidateSubscriberName("Ursula Le Guin"))
	require.NoError(t, ValidateSubscriberName(strings.Repeat("a", 256)))

	require.Error(t, ValidateSubscriberName(""))
	require.Error(t, ValidateSubscriberName("   "))
	require.Error(t, ValidateSubscriberName(strings.Repeat("a", 257)))

	for _, c := range []string{`/`, `(`, `)`, `"`, `<`, `>`, `\`, `{`, `}`} {
		require.Error(t, ValidateSubscriberName("name"+c), "character %q", c)
	}
}
