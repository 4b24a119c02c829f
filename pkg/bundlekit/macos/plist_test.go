package macos

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	howett "howett.net/plist"

	"github.com/crateforge/bundler/pkg/bundle"
)

func TestRenderInfoPlistRoundTrips(t *testing.T) {
	t.Parallel()
	os.Setenv("SOURCE_DATE_EPOCH", "0")
	defer os.Unsetenv("SOURCE_DATE_EPOCH")

	settings := &bundle.Settings{
		ProductName: "ExampleApp",
		Identifier:  "com.example.app",
		Version:     "0.1.0",
		Copyright:   "2026 Example Co",
		Category:    "public.app-category.utilities",
	}
	info := BuildInfoPlist(settings, "exampleapp")

	var buf bytes.Buffer
	require.NoError(t, RenderInfoPlist(&buf, info))
	require.Contains(t, buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`)

	// Cross-check our encoder (groob/plist) against howett.net/plist's
	// decoder, the same oracle pattern the teacher uses for launchd
	// plists.
	var decoded map[string]any
	_, err := howett.Unmarshal(buf.Bytes(), &decoded)
	require.NoError(t, err)

	require.Equal(t, "com.example.app", decoded["CFBundleIdentifier"])
	require.Equal(t, "0.1.0", decoded["CFBundleShortVersionString"])
	require.Equal(t, "APPL", decoded["CFBundlePackageType"])
	require.Equal(t, true, decoded["NSHighResolutionCapable"])
}

func TestInfoPlistOmitsAppTransportSecurityWhenNoExceptionDomain(t *testing.T) {
	t.Parallel()

	settings := &bundle.Settings{ProductName: "ExampleApp", Identifier: "com.example.app", Version: "0.1.0"}
	info := BuildInfoPlist(settings, "exampleapp")
	require.Nil(t, info.NSAppTransportSecurity)
}

func TestInfoPlistIncludesExceptionDomain(t *testing.T) {
	t.Parallel()

	settings := &bundle.Settings{ProductName: "ExampleApp", Identifier: "com.example.app", Version: "0.1.0"}
	settings.Mac.ExceptionDomain = "example.com"
	info := BuildInfoPlist(settings, "exampleapp")
	require.NotNil(t, info.NSAppTransportSecurity)
	require.Contains(t, info.NSAppTransportSecurity.NSExceptionDomains, "example.com")
}
