package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFileParsesTomlDocument(t *testing.T) {
	t.Parallel()

	doc := `
[package]
productName = "ExampleApp"
version = "0.1.0"

[bundle]
identifier = "com.example.app"
`
	path := filepath.Join(t.TempDir(), "bundler.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "ExampleApp", cfg.Package.ProductName)
	require.Equal(t, "com.example.app", cfg.Bundle.Identifier)
}

func TestLoadFileRejectsUnknownField(t *testing.T) {
	t.Parallel()

	doc := `
[package]
productName = "ExampleApp"
version = "0.1.0"

bogus = "field"
`
	path := filepath.Join(t.TempDir(), "bundler.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
