package bundle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowlistAllCollapse(t *testing.T) {
	t.Parallel()

	window := NewFeatureGroup("window", map[string]bool{"show": true, "hide": true})
	features := ComputeAllowlistFeatures(window)
	require.True(t, features.Has("window-all"))
	require.False(t, features.Has("window-show"))
}

func TestAllowlistIndividualFlags(t *testing.T) {
	t.Parallel()

	shell := NewFeatureGroup("shell", map[string]bool{"open": true, "execute": false})
	features := ComputeAllowlistFeatures(shell)
	require.True(t, features.Has("shell-open"))
	require.False(t, features.Has("shell-execute"))
	require.False(t, features.Has("shell-all"))
}

func TestAllowlistIsDeterministic(t *testing.T) {
	t.Parallel()

	fs := NewFeatureGroup("fs", map[string]bool{"readFile": true})
	a := ComputeAllowlistFeatures(fs)
	b := ComputeAllowlistFeatures(fs)
	require.ElementsMatch(t, a.Tokens(), b.Tokens())
}
