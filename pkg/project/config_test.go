package project

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Decode(map[string]any{
		"package": map[string]any{"productName": "ExampleApp", "version": "0.1.0"},
	})
	require.NoError(t, err)
	require.Equal(t, "../dist", cfg.DistDir)
	require.True(t, cfg.Visible)
	require.True(t, cfg.Decorations)
	require.True(t, cfg.FileDropEnabled)
	require.True(t, cfg.Focus)
}

func TestDecodeRejectsUnknownField(t *testing.T) {
	t.Parallel()

	_, err := Decode(map[string]any{
		"package": map[string]any{"productName": "ExampleApp", "version": "0.1.0"},
		"bogus":   "field",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bogus")
}

func TestDecodeRejectsUnknownNestedField(t *testing.T) {
	t.Parallel()

	_, err := Decode(map[string]any{
		"package": map[string]any{"productName": "ExampleApp", "version": "0.1.0"},
		"bundle": map[string]any{
			"identifier": "com.example.app",
			"bogus":      "field",
		},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bogus")
}

func TestDecodeBundleTargetStringAll(t *testing.T) {
	t.Parallel()

	cfg, err := Decode(map[string]any{
		"package": map[string]any{"productName": "ExampleApp", "version": "0.1.0"},
		"bundle": map[string]any{
			"identifier": "com.example.app",
			"targets":    "all",
		},
	})
	require.NoError(t, err)
	require.True(t, cfg.Bundle.Targets.All)
}

func TestDecodeBundleTargetArray(t *testing.T) {
	t.Parallel()

	cfg, err := Decode(map[string]any{
		"package": map[string]any{"productName": "ExampleApp", "version": "0.1.0"},
		"bundle": map[string]any{
			"identifier": "com.example.app",
			"targets":    []any{"deb", "appimage"},
		},
	})
	require.NoError(t, err)
	require.False(t, cfg.Bundle.Targets.All)
	require.Equal(t, []string{"deb", "appimage"}, cfg.Bundle.Targets.Kinds)
}

func TestDecodeUpdaterEndpointsString(t *testing.T) {
	t.Parallel()

	cfg, err := Decode(map[string]any{
		"package": map[string]any{"productName": "ExampleApp", "version": "0.1.0"},
		"updater": map[string]any{
			"active":    true,
			"endpoints": "https://example.com/update.json",
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/update.json"}, cfg.Updater.Endpoints.URLs)
}

func TestDecodeRejectsNonSemverVersion(t *testing.T) {
	t.Parallel()

	_, err := Decode(map[string]any{
		"package": map[string]any{"productName": "ExampleApp", "version": "not-a-version"},
	})
	require.Error(t, err)
}

func TestVersionNormalizationAndWindowsVersion(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in  string
		win string
	}{
		{"1.2.3", "1.2.3.0"},
		{"1.2.3+5", "1.2.3.5"},
	}
	for _, tt := range tests {
		norm, err := NormalizeVersion(tt.in)
		require.NoError(t, err)
		win, err := WindowsVersion(norm)
		require.NoError(t, err)
		require.Equal(t, tt.win, win)
	}

	_, err := WindowsVersion("1.2.3+beta")
	require.Error(t, err)
	require.Contains(t, err.Error(), "numeric-only")
}
