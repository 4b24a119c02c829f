//go:build !windows

package bundlekit

import (
	"os"
	"path/filepath"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

// copySymlink recreates src's symlink at dst using os.Symlink, preserving
// the link rather than following it, per §4.4's copy_dir contract.
func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return bundleerr.NewIOError("readlink", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return bundleerr.NewIOError("mkdir", filepath.Dir(dst), err)
	}
	_ = os.Remove(dst)
	if err := os.Symlink(target, dst); err != nil {
		return bundleerr.NewIOError("symlink", dst, err)
	}
	return nil
}
