package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDIsDeterministic(t *testing.T) {
	require.Equal(t, ID("hello"), ID("hello"))
	require.NotEqual(t, ID("hello"), ID("world"))
}

func TestIDEmptyString(t *testing.T) {
	// The empty string hashes to a fixed, non-special value; null handling
	// is the caller's concern, not a magic digest.
	require.Equal(t, ID(""), ID(""))
}
