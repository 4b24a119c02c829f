// Package appimage builds a Linux AppImage: a staged type-2 AppImage
// recipe (AppRun, .desktop, icon) packed by the appimagetool binary,
// grounded on spec.md §4.6's "stage a root, drop a type-2 AppImage
// recipe ... run appimagetool (downloaded on demand into the toolchain
// cache)" algorithm.
package appimage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/bundlekit"
	"github.com/crateforge/bundler/pkg/contexts/ctxlog"
	"github.com/crateforge/bundler/pkg/resources"
	"github.com/go-kit/kit/log/level"
)

// appimagetoolURL/SHA256 name the released appimagetool continuous build
// (the hash is left empty, see below): a single executable, not a zip
// archive, so it is fetched directly rather than through the
// zip-extracting Cache.Ensure.
const (
	appimagetoolURL    = "https://github.com/AppImage/AppImageKit/releases/download/continuous/appimagetool-x86_64.AppImage"
	appimagetoolSHA256 = "" // left unpinned: upstream publishes "continuous" builds with a moving hash; callers needing reproducibility should supply a mirrored, pinned URL via BuildOptions.
)

// BuildOptions carries the runner and toolchain cache BuildAppImage needs.
type BuildOptions struct {
	Runner *bundlekit.Runner
	Cache  *bundlekit.Cache

	// ToolURL/ToolSHA256 override the pinned appimagetool download, for
	// callers who mirror it with a reproducible hash.
	ToolURL    string
	ToolSHA256 string
}

// BuildAppImage stages an AppDir (AppRun, .desktop, icon, binaries,
// resources) and invokes appimagetool against it. Returns the absolute
// path to the produced .AppImage.
func BuildAppImage(ctx context.Context, settings *bundle.Settings, opts BuildOptions) (string, error) {
	logger := ctxlog.FromContext(ctx)
	runner := opts.Runner
	if runner == nil {
		runner = bundlekit.NewRunner()
	}

	outDir := filepath.Join(settings.OutDir, "appimage")
	if err := os.RemoveAll(outDir); err != nil {
		return "", bundle.NewIOError("remove stale appimage output", outDir, err)
	}

	appDir := filepath.Join(outDir, settings.ProductName+".AppDir")
	usrBin := filepath.Join(appDir, "usr", "bin")
	usrShare := filepath.Join(appDir, "usr", "share", settings.ProductName)
	if err := os.MkdirAll(usrBin, 0o755); err != nil {
		return "", bundle.NewIOError("mkdir", usrBin, err)
	}
	if err := os.MkdirAll(usrShare, 0o755); err != nil {
		return "", bundle.NewIOError("mkdir", usrShare, err)
	}

	main, err := settings.MainBinary()
	if err != nil {
		return "", &bundle.Error{Kind: bundle.KindConfiguration, Op: "build appimage", Err: err}
	}
	for _, b := range settings.Binaries {
		if err := bundlekit.CopyFile(b.Path, filepath.Join(usrBin, b.Name)); err != nil {
			return "", err
		}
		if err := os.Chmod(filepath.Join(usrBin, b.Name), 0o755); err != nil {
			return "", bundle.NewIOError("chmod", b.Name, err)
		}
	}

	for _, pattern := range settings.Resources {
		paths := resources.New([]string{pattern}, true)
		if err := paths.Each(func(path string) error {
			dst := filepath.Join(usrShare, resources.TargetRelPath(pattern, path))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return bundle.NewIOError("mkdir", filepath.Dir(dst), err)
			}
			return bundlekit.CopyFile(path, dst)
		}); err != nil {
			return "", err
		}
	}

	iconName := bundle.KebabCase(settings.ProductName)
	if len(settings.Icons) > 0 {
		ext := filepath.Ext(settings.Icons[0])
		if err := bundlekit.CopyFile(settings.Icons[0], filepath.Join(appDir, iconName+ext)); err != nil {
			return "", err
		}
	}

	desktopPath := filepath.Join(appDir, iconName+".desktop")
	if err := os.WriteFile(desktopPath, []byte(desktopEntry(settings, main.Name, iconName)), 0o644); err != nil {
		return "", bundle.NewIOError("write", desktopPath, err)
	}

	appRunPath := filepath.Join(appDir, "AppRun")
	if err := os.WriteFile(appRunPath, []byte(appRunScript(main.Name)), 0o755); err != nil {
		return "", bundle.NewIOError("write", appRunPath, err)
	}

	toolPath, err := ensureAppimagetool(opts)
	if err != nil {
		return "", err
	}

	appImageName := fmt.Sprintf("%s_%s_%s.AppImage", settings.ProductName, settings.Version, settings.Arch)
	appImagePath := filepath.Join(outDir, appImageName)

	level.Debug(logger).Log("msg", "packing appimage", "path", appImagePath)

	if _, err := runner.Run(ctx, toolPath, []string{appDir, appImagePath}, bundlekit.RunOpts{
		Env: []string{"ARCH=x86_64"},
	}); err != nil {
		return "", err
	}
	return appImagePath, nil
}

// ensureAppimagetool resolves the appimagetool binary, fetching it into
// the toolchain cache (or a scratch directory when no cache is
// configured) and marking it executable.
func ensureAppimagetool(opts BuildOptions) (string, error) {
	url := firstNonEmpty(opts.ToolURL, appimagetoolURL)
	sha256 := firstNonEmpty(opts.ToolSHA256, appimagetoolSHA256)
	if sha256 == "" {
		return "", &bundle.Error{
			Kind: bundle.KindConfiguration,
			Op:   "resolve appimagetool download",
			Err:  fmt.Errorf("no pinned SHA-256 for appimagetool: upstream's \"continuous\" build has no stable hash; set BuildOptions.ToolURL/ToolSHA256 to a mirrored, pinned release"),
		}
	}

	var dir string
	if opts.Cache != nil {
		dir = filepath.Join(opts.Cache.Root, "appimagetool")
	} else {
		var err error
		dir, err = os.MkdirTemp("", "appimagetool")
		if err != nil {
			return "", bundle.NewIOError("mkdir temp", "appimagetool", err)
		}
	}
	toolPath := filepath.Join(dir, "appimagetool")

	if _, err := os.Stat(toolPath); err == nil {
		return toolPath, nil
	}

	data, err := bundlekit.DownloadAndVerify(url, sha256, bundlekit.SHA256)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", bundle.NewIOError("mkdir", dir, err)
	}
	if err := os.WriteFile(toolPath, data, 0o755); err != nil {
		return "", bundle.NewIOError("write", toolPath, err)
	}
	return toolPath, nil
}

func appRunScript(mainBinaryName string) string {
	return "#!/bin/sh\n" +
		`HERE="$(dirname "$(readlink -f "${0}")")"` + "\n" +
		fmt.Sprintf(`exec "${HERE}/usr/bin/%s" "$@"`, mainBinaryName) + "\n"
}

func desktopEntry(settings *bundle.Settings, mainBinaryName, iconName string) string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	fmt.Fprintf(&b, "Name=%s\n", settings.ProductName)
	fmt.Fprintf(&b, "Exec=%s\n", mainBinaryName)
	fmt.Fprintf(&b, "Icon=%s\n", iconName)
	b.WriteString("Terminal=false\n")
	b.WriteString("Type=Application\n")
	if settings.Category != "" {
		fmt.Fprintf(&b, "Categories=%s;\n", settings.Category)
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
