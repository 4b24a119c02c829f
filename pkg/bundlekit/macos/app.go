package macos

import (
	"context"
	"os"
	"path/filepath"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/bundlekit"
	"github.com/crateforge/bundler/pkg/bundlekit/notarization"
	"github.com/crateforge/bundler/pkg/contexts/ctxlog"
	"github.com/crateforge/bundler/pkg/resources"
	"github.com/go-kit/kit/log/level"
)

// BuildOptions carries the out-of-Settings collaborator state app.go
// needs: the runner (so tests can inject a fake execCC), and working
// directories for the keychain's decoded certificate.
type BuildOptions struct {
	Runner  *bundlekit.Runner
	WorkDir string
}

// BuildAppBundle implements §4.5's full macOS `.app` builder pipeline:
// clean output, synthesize the directory skeleton, copy the main binary
// (optionally installing a bootstrapper in its place), copy external
// binaries and frameworks, build the icon resource, copy resources,
// render Info.plist, optionally set up the CI signing keychain and
// codesign, and optionally submit for
// notarization. It
// returns the absolute path to the finished `.app`.
func BuildAppBundle(ctx context.Context, settings *bundle.Settings, opts BuildOptions) (string, error) {
	logger := ctxlog.FromContext(ctx)
	runner := opts.Runner
	if runner == nil {
		runner = bundlekit.NewRunner()
	}

	appName := settings.ProductName + ".app"
	appPath := filepath.Join(settings.OutDir, "macos", appName)

	if err := os.RemoveAll(appPath); err != nil {
		return "", bundle.NewIOError("remove stale app bundle", appPath, err)
	}

	contentsDir := filepath.Join(appPath, "Contents")
	macOSDir := filepath.Join(contentsDir, "MacOS")
	resourcesDir := filepath.Join(contentsDir, "Resources")
	frameworksDir := filepath.Join(contentsDir, "Frameworks")
	for _, dir := range []string{macOSDir, resourcesDir, frameworksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", bundle.NewIOError("mkdir", dir, err)
		}
	}

	main, err := settings.MainBinary()
	if err != nil {
		return "", &bundle.Error{Kind: bundle.KindConfiguration, Op: "build app bundle", Err: err}
	}

	realBinaryName := main.Name
	level.Debug(logger).Log("msg", "copying main binary", "name", realBinaryName)
	if settings.Mac.UseBootstrapper {
		realBinaryName = main.Name + "-bin"
	}
	if err := bundlekit.CopyFile(main.Path, filepath.Join(macOSDir, realBinaryName)); err != nil {
		return "", err
	}
	if err := os.Chmod(filepath.Join(macOSDir, realBinaryName), 0o755); err != nil {
		return "", bundle.NewIOError("chmod", realBinaryName, err)
	}

	if settings.Mac.UseBootstrapper {
		bootstrapperPath := filepath.Join(macOSDir, main.Name)
		if err := os.WriteFile(bootstrapperPath, []byte(BootstrapperScript(realBinaryName)), 0o755); err != nil {
			return "", bundle.NewIOError("write bootstrapper", bootstrapperPath, err)
		}
	}

	for _, bin := range settings.Binaries {
		if bin.Main {
			continue
		}
		dst := filepath.Join(macOSDir, filepath.Base(bin.Name))
		if err := bundlekit.CopyFile(bin.Path, dst); err != nil {
			return "", err
		}
		_ = os.Chmod(dst, 0o755)
	}

	for _, framework := range settings.Mac.Frameworks {
		dst := filepath.Join(frameworksDir, filepath.Base(framework))
		if err := copyTree(framework, dst); err != nil {
			return "", err
		}
	}

	if len(settings.Icons) > 0 {
		iconDest := filepath.Join(resourcesDir, "icon.icns")
		if err := BuildIconResource(settings.Icons, iconDest); err != nil {
			return "", &bundle.Error{Kind: bundle.KindIO, Op: "build icon resource", Err: err}
		}
	}

	if err := copyResources(settings.Resources, resourcesDir); err != nil {
		return "", err
	}

	info := BuildInfoPlist(settings, main.Name)
	plistPath := filepath.Join(contentsDir, "Info.plist")
	plistFile, err := os.Create(plistPath)
	if err != nil {
		return "", bundle.NewIOError("create", plistPath, err)
	}
	err = RenderInfoPlist(plistFile, info)
	plistFile.Close()
	if err != nil {
		return "", err
	}

	if settings.Mac.SigningIdentity != "" {
		level.Info(logger).Log("msg", "signing app bundle", "identity", settings.Mac.SigningIdentity)
		workDir := opts.WorkDir
		if workDir == "" {
			if workDir, err = os.MkdirTemp("", "keychain-*"); err != nil {
				return "", bundle.NewIOError("mkdir temp", "", err)
			}
			defer os.RemoveAll(workDir)
		}
		if _, err := SetupKeychainIfNeeded(ctx, runner, workDir); err != nil {
			return "", &bundle.Error{Kind: bundle.KindSigning, Op: "set up signing keychain", Err: err}
		}
		if err := Sign(ctx, runner, appPath, settings.Mac.SigningIdentity, settings.Mac.EntitlementsPath, true); err != nil {
			return "", err
		}

		if notarizationCredentialsPresent() {
			if err := notarize(ctx, runner, appPath, settings); err != nil {
				return "", err
			}
		} else {
			level.Info(logger).Log("msg", "skipping notarization, no APPLE_ID/APPLE_PASSWORD or API key credentials present")
		}
	}

	return appPath, nil
}

// notarize zips the signed app with ditto (matching the original
// source's "almost identical to Finder, avoids false alarms" comment),
// submits it, waits for a terminal status, and staples the ticket.
func notarize(ctx context.Context, runner *bundlekit.Runner, appPath string, settings *bundle.Settings) error {
	tmpDir, err := os.MkdirTemp("", "notarize-*")
	if err != nil {
		return bundle.NewIOError("mkdir temp", "", err)
	}
	defer os.RemoveAll(tmpDir)

	bundleStem := filepath.Base(appPath)
	zipPath := filepath.Join(tmpDir, bundleStem+".zip")
	if _, err := runner.Run(ctx, "ditto", []string{"-c", "-k", "--keepParent", "--sequesterRsrc", appPath, zipPath}, bundlekit.RunOpts{}); err != nil {
		return err
	}

	if settings.Mac.SigningIdentity != "" {
		if err := Sign(ctx, runner, zipPath, settings.Mac.SigningIdentity, "", false); err != nil {
			return err
		}
	}

	username := os.Getenv("APPLE_ID")
	password := os.Getenv("APPLE_PASSWORD")
	ascProvider := os.Getenv("APPLE_ASC_PROVIDER")
	n := notarization.New(username, password, ascProvider)

	uuid, err := n.Submit(ctx, zipPath, settings.Identifier)
	if err != nil {
		return &bundle.Error{Kind: bundle.KindSigning, Op: "submit for notarization", Err: err}
	}

	if err := n.Wait(ctx, uuid); err != nil {
		return &bundle.Error{Kind: bundle.KindSigning, Op: "wait for notarization", Err: err}
	}

	if _, err := runner.Run(ctx, "xcrun", []string{"stapler", "staple", "-v", bundleStem}, bundlekit.RunOpts{Dir: filepath.Dir(appPath)}); err != nil {
		return err
	}
	return nil
}

// copyResources walks the configured resource patterns one at a time
// (so each matched file can be mapped back to the pattern that produced
// it) and copies each to its target-relative path under resourcesDir,
// per §4.3's shared TargetRelPath rule.
func copyResources(patterns []string, resourcesDir string) error {
	for _, pattern := range patterns {
		p := resources.New([]string{pattern}, true)
		err := p.Each(func(path string) error {
			target := resources.TargetRelPath(pattern, path)
			dst := filepath.Join(resourcesDir, target)
			return bundlekit.CopyFile(path, dst)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return bundle.NewIOError("stat", src, err)
	}
	if info.IsDir() {
		return bundlekit.CopyDir(src, dst)
	}
	return bundlekit.CopyFile(src, dst)
}
