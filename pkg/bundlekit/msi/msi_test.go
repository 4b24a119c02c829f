package msi

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/restree"
)

func TestBuildWxsSourceProducesWellFormedSkeleton(t *testing.T) {
	t.Parallel()

	tree := restree.New()
	binPath := filepath.Join(t.TempDir(), "exampleapp.exe")
	require.NoError(t, os.WriteFile(binPath, []byte("fake"), 0o755))
	tree.Add("exampleapp.exe", binPath)
	tree.Add("resources/readme.txt", binPath)

	settings := &bundle.Settings{
		ProductName: "ExampleApp",
		Identifier:  "com.example.app",
		Version:     "1.2.3",
		Arch:        "x64",
		Binaries: []bundle.BundleBinary{
			{Name: "exampleapp.exe", Path: binPath, Main: true},
		},
	}

	wxs, err := BuildWxsSource(settings, tree)
	require.NoError(t, err)
	require.Contains(t, wxs, "<Wix xmlns=")
	require.Contains(t, wxs, `Name="ExampleApp"`)
	require.Contains(t, wxs, "1.2.3.0")
	require.Contains(t, wxs, "readme.txt")
}

func helperCommandContext(ctx context.Context, command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

func TestWixToolPackageInvokesCandleThenLight(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var invoked []string

	w, err := New(root, []byte("<Wix></Wix>"), SkipValidation())
	require.NoError(t, err)
	w.execCC = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		invoked = append(invoked, name)
		return helperCommandContext(ctx, name, args...)
	}

	msiPath, err := w.Package(context.Background())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "out.msi"), msiPath)
	require.Len(t, invoked, 2)
	require.True(t, strings.HasSuffix(invoked[0], "candle.exe"))
	require.True(t, strings.HasSuffix(invoked[1], "light.exe"))
}

func TestWixToolPackageWrapsWithDocker(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var invoked []string

	w, err := New(root, []byte("<Wix></Wix>"), WithDocker("felfert/wix"), As32bit())
	require.NoError(t, err)
	w.execCC = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		invoked = append(invoked, name)
		return helperCommandContext(ctx, name, args...)
	}

	_, err = w.Package(context.Background())
	require.NoError(t, err)
	for _, name := range invoked {
		require.Equal(t, "docker", name)
	}
}

func TestValidateFragmentRejectsMalformedXML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.wxs")
	require.NoError(t, os.WriteFile(path, []byte("<Fragment><Unclosed></Fragment>"), 0o644))
	require.Error(t, ValidateFragment(path))
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)
	_ = strconv.Itoa(0)
}
