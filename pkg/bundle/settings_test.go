package bundle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crateforge/bundler/pkg/project"
)

func exampleConfig() *project.ProjectConfig {
	return &project.ProjectConfig{
		Package: project.PackageConfig{ProductName: "exampleapp", Version: "0.1.0"},
		Bundle: project.BundleConfig{
			Identifier: "com.example.app",
			Targets:    project.BundleTarget{All: true},
			Resources:  []string{"assets/logo.png"},
		},
	}
}

func TestBuildSelectsPlatformKinds(t *testing.T) {
	t.Parallel()

	settings, kinds, err := Build(BuildInput{
		Config:       exampleConfig(),
		HostOS:       Linux,
		TargetTriple: "x86_64-unknown-linux-gnu",
		OutDir:       "/tmp/out",
	})
	require.NoError(t, err)
	require.Equal(t, []PackageKind{Deb, AppImage}, kinds)
	require.Equal(t, "x64", settings.Arch)

	main, err := settings.MainBinary()
	require.NoError(t, err)
	require.Equal(t, "exampleapp", main.Name)
}

func TestBuildRequiresIdentifierWhenSelecting(t *testing.T) {
	t.Parallel()

	cfg := exampleConfig()
	cfg.Bundle.Identifier = ""

	_, _, err := Build(BuildInput{
		Config:       cfg,
		HostOS:       Linux,
		TargetTriple: "x86_64-unknown-linux-gnu",
	})
	require.Error(t, err)
	var bErr *Error
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, KindConfiguration, bErr.Kind)
}

func TestBuildFiltersByRequestedKinds(t *testing.T) {
	t.Parallel()

	settings, kinds, err := Build(BuildInput{
		Config:         exampleConfig(),
		HostOS:         Linux,
		TargetTriple:   "x86_64-unknown-linux-gnu",
		RequestedKinds: []PackageKind{Deb},
	})
	require.NoError(t, err)
	require.Equal(t, []PackageKind{Deb}, kinds)
	require.Equal(t, "exampleapp", settings.ProductName)
}

func TestKebabCase(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example-app", KebabCase("Example App"))
	require.Equal(t, "example-app", KebabCase("example_app"))
	require.Equal(t, "exampleapp", KebabCase("ExampleApp"))
}
