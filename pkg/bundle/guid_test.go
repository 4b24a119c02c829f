package bundle

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGUIDsAreDeterministic(t *testing.T) {
	t.Parallel()

	require.Equal(t, PackageGUID("com.example.app"), PackageGUID("com.example.app"))
	require.Equal(t, FileGUID("logo.png"), FileGUID("logo.png"))
	require.Equal(t, UpgradeCode("exampleapp"), UpgradeCode("exampleapp"))

	require.NotEqual(t, PackageGUID("com.example.app"), PackageGUID("com.example.other"))
	require.NotEqual(t, FileGUID("logo.png"), FileGUID("icon.png"))
}

func TestGUIDFormat(t *testing.T) {
	t.Parallel()

	guid := PackageGUID("com.example.app")
	require.Len(t, guid, len("XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX"))
	require.Equal(t, strings.ToUpper(guid), guid) // format is upper-cased at generation time
}

func TestUpgradeCodeKeyIsAlwaysX64(t *testing.T) {
	t.Parallel()

	// Per the pinned Open Question decision (DESIGN.md #3), the upgrade
	// code key hard-codes ".app.x64" regardless of the actual target
	// architecture, to preserve upgrade lineage.
	expected := strings.ToUpper(uuid.NewSHA1(uuid.NameSpaceDNS, []byte("exampleapp.app.x64")).String())
	require.Equal(t, expected, UpgradeCode("exampleapp"))
}
