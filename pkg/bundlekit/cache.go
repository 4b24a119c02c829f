package bundlekit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

// ManifestEntry is one file a toolchain cache entry tracks: its
// cache-relative path, the URL it's fetched from, and the pinned hash
// that validates it.
type ManifestEntry struct {
	RelPath      string
	URL          string
	ExpectedHash string
	Algo         HashAlgo
}

// Toolchain describes one cacheable toolchain (NSIS, WiX, a WebView2
// bootstrapper archive): a stable name, the archive to fetch when the
// directory doesn't exist yet, its manifest of individually-verifiable
// files, and the subset of those files that must be present for the
// cache entry to be considered valid at all.
type Toolchain struct {
	Name          string
	ArchiveURL    string
	ArchiveHash   string
	ArchiveAlgo   HashAlgo
	Manifest      []ManifestEntry
	RequiredFiles []string // relative paths, subset (or all) of Manifest
}

// Cache is the process-wide toolchain cache root described in §4.4 and
// the Design Notes' "Global mutable toolchain cache" note: modeled as a
// resource acquired by path, never as a module-level static. A small
// bbolt-backed metadata store records the last validation time and hash
// for each file; Ensure writes these records but does not read them, and
// re-hashes every pinned file on each call.
type Cache struct {
	Root string
	db   *bolt.DB
}

var metadataBucket = []byte("validated")

// OpenCache opens (creating if needed) the cache root directory and its
// bbolt metadata store.
func OpenCache(root string) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, bundleerr.NewIOError("mkdir", root, err)
	}
	db, err := bolt.Open(filepath.Join(root, "cache.db"), 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, bundleerr.NewIOError("open cache metadata store", root, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metadataBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, bundleerr.NewIOError("initialize cache metadata store", root, err)
	}
	return &Cache{Root: root, db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

type validatedRecord struct {
	Hash       string    `json:"hash"`
	ValidatedAt time.Time `json:"validated_at"`
}

func (c *Cache) recordValidated(relPath, hash string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metadataBucket)
		data, err := json.Marshal(validatedRecord{Hash: hash, ValidatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		return b.Put([]byte(relPath), data)
	})
}

// Ensure implements §4.4's three-step toolchain validation sequence:
//
//  1. If the toolchain directory does not exist, download and extract the
//     pinned archive.
//  2. Verify every required file exists; if any is missing, remove the
//     directory and redownload the archive once.
//  3. For every hash-pinned manifest file, verify its hash; on mismatch,
//     redownload and overwrite just that file.
//
// Ensure is idempotent: two sequential calls with the same Toolchain
// leave the cache in the same on-disk state.
func (c *Cache) Ensure(t Toolchain) (string, error) {
	dir := filepath.Join(c.Root, t.Name)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := c.fetchArchive(t, dir); err != nil {
			return "", err
		}
	}

	for _, rel := range t.RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, rel)); os.IsNotExist(err) {
			if err := os.RemoveAll(dir); err != nil {
				return "", bundleerr.NewIOError("remove stale toolchain", dir, err)
			}
			if err := c.fetchArchive(t, dir); err != nil {
				return "", err
			}
			break
		}
	}

	for _, entry := range t.Manifest {
		if entry.ExpectedHash == "" {
			continue
		}
		path := filepath.Join(dir, entry.RelPath)
		ok, err := verifyFileHash(path, entry.ExpectedHash, entry.Algo)
		if err != nil || !ok {
			if err := c.refetchFile(entry, path); err != nil {
				return "", err
			}
		} else {
			_ = c.recordValidated(entry.RelPath, entry.ExpectedHash)
		}
	}

	return dir, nil
}

func (c *Cache) fetchArchive(t Toolchain, dir string) error {
	data, err := DownloadAndVerify(t.ArchiveURL, t.ArchiveHash, t.ArchiveAlgo)
	if err != nil {
		// Single automatic retry on hash mismatch, per §4.4/§7.
		data, err = DownloadAndVerify(t.ArchiveURL, t.ArchiveHash, t.ArchiveAlgo)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return bundleerr.NewIOError("mkdir", dir, err)
	}
	return ExtractZip(data, dir)
}

func (c *Cache) refetchFile(entry ManifestEntry, path string) error {
	data, err := DownloadAndVerify(entry.URL, entry.ExpectedHash, entry.Algo)
	if err != nil {
		data, err = DownloadAndVerify(entry.URL, entry.ExpectedHash, entry.Algo)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return bundleerr.NewIOError("mkdir", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return bundleerr.NewIOError("write", path, err)
	}
	return c.recordValidated(entry.RelPath, entry.ExpectedHash)
}

func verifyFileHash(path, expectedHash string, algo HashAlgo) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, bundleerr.NewIOError("read", path, err)
	}
	h, err := newHash(algo)
	if err != nil {
		return false, err
	}
	h.Write(data)
	got := fmt.Sprintf("%x", h.Sum(nil))
	return got == expectedHash, nil
}
