package resources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestEachYieldsEveryMatchOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "assets", "logo.png"), "logo")
	writeFile(t, filepath.Join(dir, "assets", "icon.png"), "icon")

	var seen []string
	p := New([]string{filepath.Join(dir, "assets", "*.png")}, false)
	err := p.Each(func(path string) error {
		seen = append(seen, path)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
}

func TestEachZeroMatchesIsTerminalError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := New([]string{filepath.Join(dir, "nonexistent", "*.png")}, false)
	err := p.Each(func(path string) error { return nil })
	require.Error(t, err)

	var bErr *bundleerr.Error
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, bundleerr.KindResourceNotFound, bErr.Kind)
}

func TestEachDirectoryWithoutAllowWalkErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "assets", "logo.png"), "logo")

	p := New([]string{filepath.Join(dir, "assets")}, false)
	err := p.Each(func(path string) error { return nil })
	require.Error(t, err)
}

func TestEachWalksDirectoryWhenAllowed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "assets", "nested", "logo.png"), "logo")

	p := New([]string{filepath.Join(dir, "assets")}, true)
	var seen []string
	err := p.Each(func(path string) error {
		seen = append(seen, path)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
}

func TestTargetRelPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "logo.png", TargetRelPath("assets/*.png", "assets/logo.png"))
	require.Equal(t, filepath.FromSlash("nested/logo.png"), TargetRelPath("assets/*", "assets/nested/logo.png"))
}
