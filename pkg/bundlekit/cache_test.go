package bundlekit

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestCacheEnsureFetchesArchiveOnFirstUse(t *testing.T) {
	t.Parallel()

	archive := buildZip(t, map[string]string{"plugin.dll": "plugin-bytes"})
	archiveHash := sha256Hex(archive)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	cacheRoot := t.TempDir()
	cache, err := OpenCache(cacheRoot)
	require.NoError(t, err)
	defer cache.Close()

	dir, err := cache.Ensure(Toolchain{
		Name:          "NSIS",
		ArchiveURL:    srv.URL,
		ArchiveHash:   archiveHash,
		ArchiveAlgo:   SHA256,
		RequiredFiles: []string{"plugin.dll"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "plugin.dll"))
	require.NoError(t, err)
	require.Equal(t, "plugin-bytes", string(data))
}

func TestCacheEnsureRefetchesSinglyCorruptedFile(t *testing.T) {
	t.Parallel()

	archive := buildZip(t, map[string]string{"plugin.dll": "good-bytes"})
	archiveHash := sha256Hex(archive)
	goodFileHash := sha256Hex([]byte("good-bytes"))

	var pluginRequests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/archive.zip":
			w.Write(archive)
		case "/plugin.dll":
			pluginRequests++
			w.Write([]byte("good-bytes"))
		}
	}))
	defer srv.Close()

	cacheRoot := t.TempDir()
	cache, err := OpenCache(cacheRoot)
	require.NoError(t, err)
	defer cache.Close()

	toolchain := Toolchain{
		Name:          "NSIS",
		ArchiveURL:    srv.URL + "/archive.zip",
		ArchiveHash:   archiveHash,
		ArchiveAlgo:   SHA256,
		RequiredFiles: []string{"plugin.dll"},
		Manifest: []ManifestEntry{
			{RelPath: "plugin.dll", URL: srv.URL + "/plugin.dll", ExpectedHash: goodFileHash, Algo: SHA256},
		},
	}

	dir, err := cache.Ensure(toolchain)
	require.NoError(t, err)

	// Corrupt one byte of the cached file.
	pluginPath := filepath.Join(dir, "plugin.dll")
	require.NoError(t, os.WriteFile(pluginPath, []byte("good_bytes"), 0o644))

	_, err = cache.Ensure(toolchain)
	require.NoError(t, err)
	require.Equal(t, 1, pluginRequests, "expected exactly one outbound request to the pinned plug-in URL")

	data, err := os.ReadFile(pluginPath)
	require.NoError(t, err)
	require.Equal(t, "good-bytes", string(data))
}
