// Package deb builds a Debian .deb package: a control-file tree staged
// under a package root, packed as an ar archive of debian-binary,
// control.tar.gz, and data.tar.gz, grounded on spec.md §4.6's Debian
// algorithm and the teacher's control/postinst/prerm staging shape from
// pkg/packaging/packaging_test.go's setupInit/setupPostinst/setupPrerm.
package deb

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/bundlekit"
	"github.com/crateforge/bundler/pkg/contexts/ctxlog"
	"github.com/crateforge/bundler/pkg/resources"
	"github.com/go-kit/kit/log/level"
)

// debArch maps Settings.Arch (the fixed x64/x86/arm64 table §4.7 uses)
// to Debian's own architecture names, the way fpmArch maps a target GOARCH
// to the fpm/rpm/deb-specific arch string in package_fpm_test.go.
var debArch = map[string]string{
	"x64":   "amd64",
	"x86":   "i386",
	"arm64": "arm64",
}

// BuildOptions carries the runner BuildPackage needs.
type BuildOptions struct {
	Runner *bundlekit.Runner
}

// BuildPackage stages a Debian package root (control files, binaries,
// resources, desktop file, icons) and packs it into a .deb archive.
// Returns the absolute path to the produced .deb.
func BuildPackage(ctx context.Context, settings *bundle.Settings, opts BuildOptions) (string, error) {
	logger := ctxlog.FromContext(ctx)

	arch, ok := debArch[settings.Arch]
	if !ok {
		return "", bundle.NewArchError(settings.Arch)
	}

	debDir := filepath.Join(settings.OutDir, "deb")
	if err := os.RemoveAll(debDir); err != nil {
		return "", bundle.NewIOError("remove stale deb output", debDir, err)
	}

	pkgRoot := filepath.Join(debDir, "pkgroot")
	binDir := filepath.Join(pkgRoot, "usr", "bin")
	shareDir := filepath.Join(pkgRoot, "usr", "share", bundle.KebabCase(settings.ProductName))
	appsDir := filepath.Join(pkgRoot, "usr", "share", "applications")
	for _, dir := range []string{binDir, shareDir, appsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", bundle.NewIOError("mkdir", dir, err)
		}
	}

	for _, b := range settings.Binaries {
		if err := bundlekit.CopyFile(b.Path, filepath.Join(binDir, b.Name)); err != nil {
			return "", err
		}
		if err := os.Chmod(filepath.Join(binDir, b.Name), 0o755); err != nil {
			return "", bundle.NewIOError("chmod", b.Name, err)
		}
	}

	for _, pattern := range settings.Resources {
		paths := resources.New([]string{pattern}, true)
		if err := paths.Each(func(path string) error {
			dst := filepath.Join(shareDir, resources.TargetRelPath(pattern, path))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return bundle.NewIOError("mkdir", filepath.Dir(dst), err)
			}
			return bundlekit.CopyFile(path, dst)
		}); err != nil {
			return "", err
		}
	}

	for _, iconPath := range settings.Icons {
		size := iconSizeHint(iconPath)
		iconDir := filepath.Join(pkgRoot, "usr", "share", "icons", "hicolor", fmt.Sprintf("%dx%d", size, size), "apps")
		if err := os.MkdirAll(iconDir, 0o755); err != nil {
			return "", bundle.NewIOError("mkdir", iconDir, err)
		}
		ext := filepath.Ext(iconPath)
		dst := filepath.Join(iconDir, bundle.KebabCase(settings.ProductName)+ext)
		if err := bundlekit.CopyFile(iconPath, dst); err != nil {
			return "", err
		}
	}

	desktopPath := filepath.Join(appsDir, bundle.KebabCase(settings.ProductName)+".desktop")
	if err := os.WriteFile(desktopPath, []byte(desktopEntry(settings)), 0o644); err != nil {
		return "", bundle.NewIOError("write", desktopPath, err)
	}

	installedSize, err := dirSizeKB(pkgRoot)
	if err != nil {
		return "", err
	}

	controlDir := filepath.Join(debDir, "control")
	if err := os.MkdirAll(controlDir, 0o755); err != nil {
		return "", bundle.NewIOError("mkdir", controlDir, err)
	}
	controlPath := filepath.Join(controlDir, "control")
	if err := os.WriteFile(controlPath, []byte(controlFile(settings, arch, installedSize)), 0o644); err != nil {
		return "", bundle.NewIOError("write", controlPath, err)
	}
	postinstPath := filepath.Join(controlDir, "postinst")
	if err := os.WriteFile(postinstPath, []byte(postinstScript()), 0o755); err != nil {
		return "", bundle.NewIOError("write", postinstPath, err)
	}
	prermPath := filepath.Join(controlDir, "prerm")
	if err := os.WriteFile(prermPath, []byte(prermScript()), 0o755); err != nil {
		return "", bundle.NewIOError("write", prermPath, err)
	}

	debName := fmt.Sprintf("%s_%s_%s.deb", bundle.KebabCase(settings.ProductName), settings.Version, arch)
	debPath := filepath.Join(debDir, debName)

	level.Debug(logger).Log("msg", "packing deb", "path", debPath)

	if err := packDeb(debPath, controlDir, pkgRoot); err != nil {
		return "", err
	}
	return debPath, nil
}

func iconSizeHint(path string) int {
	base := filepath.Base(path)
	for _, size := range []int{16, 32, 48, 64, 128, 256, 512} {
		if strings.Contains(base, fmt.Sprintf("%d", size)) {
			return size
		}
	}
	return 128
}

func desktopEntry(settings *bundle.Settings) string {
	main, _ := settings.MainBinary()
	execName := settings.ProductName
	if main != nil {
		execName = main.Name
	}
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	fmt.Fprintf(&b, "Name=%s\n", settings.ProductName)
	fmt.Fprintf(&b, "Comment=%s\n", settings.ShortDescription)
	fmt.Fprintf(&b, "Exec=%s\n", execName)
	fmt.Fprintf(&b, "Icon=%s\n", bundle.KebabCase(settings.ProductName))
	b.WriteString("Terminal=false\n")
	b.WriteString("Type=Application\n")
	if settings.Category != "" {
		fmt.Fprintf(&b, "Categories=%s;\n", settings.Category)
	}
	return b.String()
}

func controlFile(settings *bundle.Settings, arch string, installedSizeKB int64) string {
	depends := strings.Join(settings.Deb.Depends, ", ")
	section := settings.Deb.Section
	if section == "" {
		section = "misc"
	}
	priority := settings.Deb.Priority
	if priority == "" {
		priority = "optional"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", bundle.KebabCase(settings.ProductName))
	fmt.Fprintf(&b, "Version: %s\n", settings.Version)
	fmt.Fprintf(&b, "Architecture: %s\n", arch)
	fmt.Fprintf(&b, "Maintainer: %s\n", firstNonEmpty(settings.Copyright, settings.ProductName))
	fmt.Fprintf(&b, "Installed-Size: %d\n", installedSizeKB)
	fmt.Fprintf(&b, "Section: %s\n", section)
	fmt.Fprintf(&b, "Priority: %s\n", priority)
	if depends != "" {
		fmt.Fprintf(&b, "Depends: %s\n", depends)
	}
	description := settings.ShortDescription
	if description == "" {
		description = settings.ProductName
	}
	fmt.Fprintf(&b, "Description: %s\n", description)
	if settings.LongDescription != "" {
		for _, line := range strings.Split(settings.LongDescription, "\n") {
			if strings.TrimSpace(line) == "" {
				b.WriteString(" .\n")
			} else {
				fmt.Fprintf(&b, " %s\n", line)
			}
		}
	}
	return b.String()
}

func postinstScript() string {
	return "#!/bin/sh\nset -e\nupdate-desktop-database -q || true\n"
}

func prermScript() string {
	return "#!/bin/sh\nset -e\nupdate-desktop-database -q || true\n"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func dirSizeKB(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, bundle.NewIOError("walk", root, err)
	}
	return total / 1000, nil
}

// packDeb writes the classic ar archive deb format: the "!<arch>\n"
// magic, then three members (debian-binary, control.tar.gz,
// data.tar.gz), each preceded by a 60-byte ar header.
func packDeb(debPath, controlDir, dataDir string) error {
	controlTgz, err := tarGz(controlDir)
	if err != nil {
		return err
	}
	dataTgz, err := tarGz(dataDir)
	if err != nil {
		return err
	}

	f, err := os.Create(debPath)
	if err != nil {
		return bundle.NewIOError("create", debPath, err)
	}
	defer f.Close()

	if _, err := f.WriteString("!<arch>\n"); err != nil {
		return bundle.NewIOError("write", debPath, err)
	}
	if err := writeArMember(f, "debian-binary", []byte("2.0\n")); err != nil {
		return err
	}
	if err := writeArMember(f, "control.tar.gz", controlTgz); err != nil {
		return err
	}
	if err := writeArMember(f, "data.tar.gz", dataTgz); err != nil {
		return err
	}
	return nil
}

func writeArMember(f *os.File, name string, data []byte) error {
	header := fmt.Sprintf("%-16s%-12d%-6d%-6d%-8s%-10d`\n", name, time.Now().Unix(), 0, 0, "100644", len(data))
	if _, err := f.WriteString(header); err != nil {
		return bundle.NewIOError("write ar header", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return bundle.NewIOError("write ar member", name, err)
	}
	if len(data)%2 != 0 {
		if _, err := f.WriteString("\n"); err != nil {
			return bundle.NewIOError("write ar padding", name, err)
		}
	}
	return nil
}

// tarGz walks dir and produces a gzip-compressed tar archive of its
// contents with paths relative to dir.
func tarGz(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = "./" + filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		return nil, bundle.NewIOError("tar", dir, err)
	}
	if err := tw.Close(); err != nil {
		return nil, bundle.NewIOError("close tar", dir, err)
	}
	if err := gw.Close(); err != nil {
		return nil, bundle.NewIOError("close gzip", dir, err)
	}
	return buf.Bytes(), nil
}
