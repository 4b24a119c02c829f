package bundle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectKindsClosure(t *testing.T) {
	t.Parallel()

	kinds, err := SelectKinds(Linux, false, nil)
	require.NoError(t, err)
	require.Equal(t, []PackageKind{Deb, AppImage}, kinds)

	kinds, err = SelectKinds(Linux, true, nil)
	require.NoError(t, err)
	require.Equal(t, []PackageKind{Deb, AppImage, Updater}, kinds)

	kinds, err = SelectKinds(Linux, false, []PackageKind{AppImage})
	require.NoError(t, err)
	require.Equal(t, []PackageKind{AppImage}, kinds)
}

func TestSelectKindsEmptyIntersectionIsFatal(t *testing.T) {
	t.Parallel()

	_, err := SelectKinds(Linux, false, []PackageKind{Msi})
	require.Error(t, err)
	var bErr *Error
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, KindConfiguration, bErr.Kind)
}

func TestSelectKindsUnknownOS(t *testing.T) {
	t.Parallel()

	_, err := SelectKinds(HostOS("plan9"), false, nil)
	require.Error(t, err)
	var bErr *Error
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, KindArchUnsupported, bErr.Kind)
}

func TestMapArch(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		triple string
		out    string
	}{
		{"x86_64-apple-darwin", "x64"},
		{"i686-pc-windows-msvc", "x86"},
		{"aarch64-apple-ios", "arm64"},
	}
	for _, tt := range tests {
		arch, err := MapArch(tt.triple)
		require.NoError(t, err)
		require.Equal(t, tt.out, arch)
	}

	_, err := MapArch("riscv64-unknown-linux-gnu")
	require.Error(t, err)
}

func TestParsePackageKind(t *testing.T) {
	t.Parallel()

	k, err := ParsePackageKind("deb")
	require.NoError(t, err)
	require.Equal(t, Deb, k)

	_, err = ParsePackageKind("not-a-kind")
	require.Error(t, err)
}
