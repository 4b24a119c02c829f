package appimage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crateforge/bundler/pkg/bundle"
)

func TestBuildAppImageFailsFastWithoutPinnedToolHash(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	mainBin := filepath.Join(work, "exampleapp")
	require.NoError(t, os.WriteFile(mainBin, []byte("#!/bin/sh\necho hi\n"), 0o755))

	outDir := t.TempDir()
	settings := &bundle.Settings{
		ProductName: "Example App",
		Identifier:  "com.example.app",
		Version:     "1.0.0",
		Arch:        "x64",
		OutDir:      outDir,
		Binaries: []bundle.BundleBinary{
			{Name: "exampleapp", Path: mainBin, Main: true},
		},
	}

	_, err := BuildAppImage(context.Background(), settings, BuildOptions{})
	require.Error(t, err)

	appDir := filepath.Join(outDir, "appimage", "Example App.AppDir")
	require.FileExists(t, filepath.Join(appDir, "AppRun"))
	require.FileExists(t, filepath.Join(appDir, "usr", "bin", "exampleapp"))
	require.FileExists(t, filepath.Join(appDir, "example-app.desktop"))
}

func TestAppRunScriptExecsMainBinary(t *testing.T) {
	t.Parallel()

	script := appRunScript("exampleapp")
	require.Contains(t, script, `usr/bin/exampleapp`)
}

func TestDesktopEntryIncludesCategory(t *testing.T) {
	t.Parallel()

	settings := &bundle.Settings{ProductName: "Example App", Category: "Utility"}
	entry := desktopEntry(settings, "exampleapp", "example-app")
	require.Contains(t, entry, "Name=Example App\n")
	require.Contains(t, entry, "Categories=Utility;\n")
}
