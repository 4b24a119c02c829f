package bundlekit

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

// HashAlgo names the digest algorithm a toolchain manifest entry pins.
type HashAlgo string

const (
	SHA1   HashAlgo = "sha1"
	SHA256 HashAlgo = "sha256"
)

func newHash(algo HashAlgo) (hash.Hash, error) {
	switch algo {
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algo)
	}
}

var httpClient = &http.Client{Timeout: 5 * time.Minute}

// DownloadAndVerify fetches url over HTTPS, streams the response into
// memory while hashing it, and compares the computed digest against
// expectedHash (hex-encoded). On mismatch, the bytes are discarded and a
// Hash-kind error is returned — per §4.4, the caller is responsible for
// the single automatic retry this error triggers on the toolchain-cache
// path.
func DownloadAndVerify(url, expectedHash string, algo HashAlgo) ([]byte, error) {
	h, err := newHash(algo)
	if err != nil {
		return nil, bundleerr.NewConfigError("toolchain manifest hash algorithm", err)
	}

	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, bundleerr.NewIOError("download", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, bundleerr.NewIOError("download", url, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var buf bytes.Buffer
	tee := io.TeeReader(resp.Body, h)
	if _, err := io.Copy(&buf, tee); err != nil {
		return nil, bundleerr.NewIOError("download", url, err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, expectedHash) {
		return nil, bundleerr.NewHashError(url, fmt.Errorf("expected %s, got %s", expectedHash, got))
	}
	return buf.Bytes(), nil
}

// ExtractZip extracts a ZIP archive (in memory, as downloaded by
// DownloadAndVerify) into dest, creating parent directories as needed and
// refusing any entry whose cleaned path escapes dest (a "../" path
// traversal guard).
func ExtractZip(data []byte, dest string) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return bundleerr.NewIOError("open zip", dest, err)
	}

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return bundleerr.NewIOError("resolve destination", dest, err)
	}

	for _, f := range r.File {
		target := filepath.Join(destAbs, f.Name)
		targetAbs, err := filepath.Abs(target)
		if err != nil {
			return bundleerr.NewIOError("resolve entry path", f.Name, err)
		}
		if targetAbs != destAbs && !strings.HasPrefix(targetAbs, destAbs+string(filepath.Separator)) {
			return bundleerr.NewIOError("extract zip", f.Name, fmt.Errorf("entry escapes destination via path traversal"))
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(targetAbs, 0o755); err != nil {
				return bundleerr.NewIOError("mkdir", targetAbs, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetAbs), 0o755); err != nil {
			return bundleerr.NewIOError("mkdir", filepath.Dir(targetAbs), err)
		}

		rc, err := f.Open()
		if err != nil {
			return bundleerr.NewIOError("open zip entry", f.Name, err)
		}

		out, err := os.OpenFile(targetAbs, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode())
		if err != nil {
			rc.Close()
			return bundleerr.NewIOError("create", targetAbs, err)
		}

		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return bundleerr.NewIOError("write", targetAbs, copyErr)
		}
	}
	return nil
}
