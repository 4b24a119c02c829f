package nsis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/bundlekit"
	"github.com/crateforge/bundler/pkg/resources"
)

// nsisVerbosity is the makensis -V level this builder always runs at.
// There is no log-level enum threaded into BuildInstaller yet to derive
// this from.
const nsisVerbosity = "-V3"

// nsisTauriUtilsURL/SHA1 is the one plugin DLL nsis.rs always fetches
// regardless of host OS (NSIS_REQUIRED_FILES_HASH); the NSIS toolset
// itself is assumed pre-installed here rather than downloaded, since
// §4.4's toolchain cache targets WiX/NSIS/appimagetool generically and
// this value is the one nsis.rs pins to a specific released artifact.
const (
	nsisTauriUtilsURL  = "https://github.com/tauri-apps/nsis-tauri-utils/releases/download/nsis_tauri_utils-v0.4.0/nsis_tauri_utils.dll"
	nsisTauriUtilsSHA1 = "e0fc0951deb0e5e741df10328f95c7d6678ad3aa"
)

// BuildOptions carries the runner and toolchain cache app.go-equivalent
// orchestration needs.
type BuildOptions struct {
	Runner *bundlekit.Runner
	Cache  *bundlekit.Cache
}

// BuildInstaller renders the .nsi script, writes it (and the required
// plugin DLL) into outDir as UTF-16LE with a BOM — the exact encoding
// NSIS requires and write_ut16_le_with_bom produces — then invokes
// makensis.exe, returning the produced installer's path.
func BuildInstaller(ctx context.Context, settings *bundle.Settings, outDir string, opts BuildOptions) (string, error) {
	runner := opts.Runner
	if runner == nil {
		runner = bundlekit.NewRunner()
	}

	if err := os.RemoveAll(outDir); err != nil {
		return "", bundle.NewIOError("remove stale nsis output", outDir, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", bundle.NewIOError("mkdir", outDir, err)
	}

	if opts.Cache != nil {
		pluginDir := filepath.Join(opts.Cache.Root, "nsis-tauri-utils")
		pluginFile := filepath.Join(pluginDir, "nsis_tauri_utils.dll")
		if _, err := os.Stat(pluginFile); err != nil {
			data, dlErr := bundlekit.DownloadAndVerify(nsisTauriUtilsURL, nsisTauriUtilsSHA1, bundlekit.SHA1)
			if dlErr != nil {
				return "", dlErr
			}
			if err := os.MkdirAll(pluginDir, 0o755); err != nil {
				return "", bundle.NewIOError("mkdir", pluginDir, err)
			}
			if err := os.WriteFile(pluginFile, data, 0o644); err != nil {
				return "", bundle.NewIOError("write", pluginFile, err)
			}
		}
		pluginsDir := filepath.Join(outDir, "Plugins", "x86-unicode")
		if err := os.MkdirAll(pluginsDir, 0o755); err != nil {
			return "", bundle.NewIOError("mkdir", pluginsDir, err)
		}
		if err := bundlekit.CopyFile(pluginFile, filepath.Join(pluginsDir, "nsis_tauri_utils.dll")); err != nil {
			return "", err
		}
	}

	estimatedSize, err := estimateInstalledSize(settings)
	if err != nil {
		return "", err
	}

	script, err := BuildInstallerScript(settings, estimatedSize)
	if err != nil {
		return "", err
	}

	scriptPath := filepath.Join(outDir, "installer.nsi")
	if err := writeUTF16LEWithBOM(scriptPath, script); err != nil {
		return "", err
	}

	// makensis picks up NSISDIR/NSISCONFDIR from the environment and lets
	// them override its own built-in script search path; strip both so a
	// stray value from the host environment can't shadow the toolchain
	// this builder resolved.
	env := os.Environ()
	filtered := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "NSISDIR=") || strings.HasPrefix(kv, "NSISCONFDIR=") {
			continue
		}
		filtered = append(filtered, kv)
	}

	if _, err := runner.Run(ctx, "makensis", []string{nsisVerbosity, scriptPath}, bundlekit.RunOpts{Dir: outDir, Env: filtered, ReplaceEnv: true}); err != nil {
		return "", err
	}

	producedPath := filepath.Join(outDir, "nsis-output.exe")
	finalName := fmt.Sprintf("%s_%s_%s-setup.exe", settings.ProductName, settings.Version, settings.Arch)
	finalPath := filepath.Join(outDir, finalName)
	if err := os.Rename(producedPath, finalPath); err != nil {
		return "", bundle.NewIOError("rename installer", producedPath, err)
	}
	return finalPath, nil
}

// writeUTF16LEWithBOM matches nsis.rs's write_ut16_le_with_bom exactly:
// a 0xFF 0xFE byte-order mark followed by the content's UTF-16LE code
// units, little-endian.
func writeUTF16LEWithBOM(path, content string) error {
	f, err := os.Create(path)
	if err != nil {
		return bundle.NewIOError("create", path, err)
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xFF, 0xFE}); err != nil {
		return bundle.NewIOError("write bom", path, err)
	}

	units := utf16.Encode([]rune(content))
	buf := make([]byte, 2*len(units))
	for i, u := range units {
		buf[2*i] = byte(u)
		buf[2*i+1] = byte(u >> 8)
	}
	if _, err := f.Write(buf); err != nil {
		return bundle.NewIOError("write content", path, err)
	}
	return nil
}

// estimateInstalledSize sums the main binary, external binaries, and
// resources' on-disk sizes into the zero-padded hex string
// generate_estimated_size produces (`format!("{size:#08x}")`), the form
// NSIS's AddSize/EstimatedSize directive expects.
func estimateInstalledSize(settings *bundle.Settings) (string, error) {
	var total int64
	for _, b := range settings.Binaries {
		info, err := os.Stat(b.Path)
		if err != nil {
			continue
		}
		total += info.Size()
	}

	for _, pattern := range settings.Resources {
		paths := resources.New([]string{pattern}, true)
		if err := paths.Each(func(path string) error {
			info, err := os.Stat(path)
			if err != nil {
				return nil
			}
			total += info.Size()
			return nil
		}); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("0x%06x", total/1000), nil
}
