package occupancy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestApplyDelta_ClampsAtZero checks +1, -1, -1 from zero ends at zero.
func TestApplyDelta_ClampsAtZero(t *testing.T) {
	t.Parallel()

	var c Counter

	require.Equal(t, 1, c.ApplyDelta(+1))
	require.Equal(t, 0, c.ApplyDelta(-1))
	require.Equal(t, 0, c.ApplyDelta(-1))
	require.Equal(t, 0, c.Count())
}

// TestSetAbsolute_ClampsNegative verifies slave-side application of
// broadcast values never goes below zero.
func TestSetAbsolute_ClampsNegative(t *testing.T) {
	t.Parallel()

	var c Counter

	c.SetAbsolute(3)
	require.Equal(t, 3, c.Count())

	c.SetAbsolute(-5)
	require.Equal(t, 0, c.Count())
}
