// Package dmg builds a macOS disk image around an already-built .app
// bundle: a staging directory holding the app plus an /Applications
// symlink, compressed into a UDZO .dmg via hdiutil, grounded on §4.6's
// "build the .app first, then invoke a scripted hdiutil flow" shape.
package dmg

import (
	"context"
	"os"
	"path/filepath"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/bundlekit"
	"github.com/crateforge/bundler/pkg/bundlekit/macos"
	"github.com/crateforge/bundler/pkg/contexts/ctxlog"
	"github.com/go-kit/kit/log/level"
)

// BuildOptions carries the collaborators BuildDiskImage needs beyond
// Settings: the runner (shared with the .app builder so both speak
// through the same injectable execCC in tests) and the app-builder's
// own options.
type BuildOptions struct {
	Runner  *bundlekit.Runner
	WorkDir string
}

// BuildDiskImage builds the .app bundle (reusing macos.BuildAppBundle),
// stages it alongside an /Applications symlink, and packs the staging
// directory into a compressed .dmg with hdiutil. Returns the absolute
// path to the produced disk image.
func BuildDiskImage(ctx context.Context, settings *bundle.Settings, opts BuildOptions) (string, error) {
	logger := ctxlog.FromContext(ctx)
	runner := opts.Runner
	if runner == nil {
		runner = bundlekit.NewRunner()
	}

	appPath, err := macos.BuildAppBundle(ctx, settings, macos.BuildOptions{Runner: runner, WorkDir: opts.WorkDir})
	if err != nil {
		return "", err
	}

	dmgDir := filepath.Join(settings.OutDir, "dmg")
	if err := os.RemoveAll(dmgDir); err != nil {
		return "", bundle.NewIOError("remove stale dmg output", dmgDir, err)
	}

	stagingDir := filepath.Join(dmgDir, "staging")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", bundle.NewIOError("mkdir", stagingDir, err)
	}

	stagedAppPath := filepath.Join(stagingDir, filepath.Base(appPath))
	if err := bundlekit.CopyDir(appPath, stagedAppPath); err != nil {
		return "", err
	}

	applicationsLink := filepath.Join(stagingDir, "Applications")
	if err := os.Symlink("/Applications", applicationsLink); err != nil {
		return "", bundle.NewIOError("symlink /Applications", applicationsLink, err)
	}

	dmgName := settings.ProductName + "_" + settings.Version + "_" + settings.Arch + ".dmg"
	dmgPath := filepath.Join(dmgDir, dmgName)

	level.Debug(logger).Log("msg", "packing disk image", "path", dmgPath)

	args := []string{
		"create",
		"-volname", settings.ProductName,
		"-srcfolder", stagingDir,
		"-ov",
		"-format", "UDZO",
		dmgPath,
	}
	if _, err := runner.Run(ctx, "hdiutil", args, bundlekit.RunOpts{}); err != nil {
		return "", err
	}

	return dmgPath, nil
}
