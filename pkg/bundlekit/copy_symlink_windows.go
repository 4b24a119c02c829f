//go:build windows

package bundlekit

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

// copySymlink recreates src's symlink (or directory junction) at dst on
// Windows, where symlink creation requires either Administrator rights
// or Developer Mode — windows.CreateSymbolicLink is the exact call the
// corpus's own Windows reparse-point handling reaches for
// (golang.org/x/sys/windows), per §4.4's "using the appropriate platform
// symlink call" contract.
func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return bundleerr.NewIOError("readlink", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return bundleerr.NewIOError("mkdir", filepath.Dir(dst), err)
	}

	info, statErr := os.Stat(src)
	flags := uint32(0)
	if statErr == nil && info.IsDir() {
		flags = windows.SYMBOLIC_LINK_FLAG_DIRECTORY
	}
	flags |= windows.SYMBOLIC_LINK_FLAG_ALLOW_UNPRIVILEGED_CREATE

	srcPtr, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return bundleerr.NewIOError("symlink", dst, err)
	}
	targetPtr, err := windows.UTF16PtrFromString(target)
	if err != nil {
		return bundleerr.NewIOError("symlink", dst, err)
	}

	_ = os.Remove(dst)
	if err := windows.CreateSymbolicLink(srcPtr, targetPtr, flags); err != nil {
		return bundleerr.NewIOError("symlink", dst, err)
	}
	return nil
}
