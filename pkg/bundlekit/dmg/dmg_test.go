package dmg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/bundlekit"
)

func TestBuildDiskImageStagesAppAndApplicationsSymlink(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	mainBin := filepath.Join(work, "mybin")
	require.NoError(t, os.WriteFile(mainBin, []byte("#!/bin/sh\necho hi\n"), 0o755))

	outDir := t.TempDir()
	settings := &bundle.Settings{
		ProductName: "ExampleApp",
		Identifier:  "com.example.app",
		Version:     "0.1.0",
		Arch:        "x64",
		OutDir:      outDir,
		Binaries: []bundle.BundleBinary{
			{Name: "exampleapp", Path: mainBin, Main: true},
		},
	}

	_, err := BuildDiskImage(context.Background(), settings, BuildOptions{Runner: bundlekit.NewRunner()})
	// hdiutil is not present on the test host, so the final packing step
	// fails, but everything leading up to it (app build + staging) must
	// have already happened.
	require.Error(t, err)

	stagingDir := filepath.Join(outDir, "dmg", "staging")
	require.FileExists(t, filepath.Join(stagingDir, "ExampleApp.app", "Contents", "Info.plist"))

	link := filepath.Join(stagingDir, "Applications")
	target, linkErr := os.Readlink(link)
	require.NoError(t, linkErr)
	require.Equal(t, "/Applications", target)
}
