// Package macos implements the macOS `.app` bundle builder (§4.5):
// icon-family generation, Info.plist synthesis, framework and resource
// copying, the optional bootstrapper script, code signing, and Apple
// notarization.
package macos

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/groob/plist"

	"github.com/crateforge/bundler/pkg/bundle"
)

// ExceptionDomain is one entry of NSAppTransportSecurity's
// NSExceptionDomains dictionary.
type ExceptionDomain struct {
	NSExceptionAllowsInsecureHTTPLoads bool `plist:"NSExceptionAllowsInsecureHTTPLoads"`
}

// AppTransportSecurity is the optional NSAppTransportSecurity block
// emitted only when an exception domain is configured, per §4.5 step 3.
type AppTransportSecurity struct {
	NSExceptionDomains map[string]ExceptionDomain `plist:"NSExceptionDomains"`
}

// InfoPlist is the fixed key set from §4.5 step 3, in the order the
// specification lists them.
type InfoPlist struct {
	CFBundleDevelopmentRegion     string                `plist:"CFBundleDevelopmentRegion"`
	CFBundleDisplayName           string                `plist:"CFBundleDisplayName"`
	CFBundleName                  string                `plist:"CFBundleName"`
	CFBundleExecutable            string                `plist:"CFBundleExecutable"`
	CFBundleIdentifier            string                `plist:"CFBundleIdentifier"`
	CFBundleShortVersionString    string                `plist:"CFBundleShortVersionString"`
	CFBundleVersion               string                `plist:"CFBundleVersion"`
	CFBundlePackageType           string                `plist:"CFBundlePackageType"`
	CFBundleInfoDictionaryVersion string                `plist:"CFBundleInfoDictionaryVersion"`
	CSResourcesFileMapped         bool                  `plist:"CSResourcesFileMapped"`
	LSRequiresCarbon              bool                  `plist:"LSRequiresCarbon"`
	NSHighResolutionCapable       bool                  `plist:"NSHighResolutionCapable"`
	LSApplicationCategoryType     string                `plist:"LSApplicationCategoryType,omitempty"`
	LSMinimumSystemVersion        string                `plist:"LSMinimumSystemVersion,omitempty"`
	NSHumanReadableCopyright      string                `plist:"NSHumanReadableCopyright,omitempty"`
	NSAppTransportSecurity        *AppTransportSecurity `plist:"NSAppTransportSecurity,omitempty"`
}

// BuildInfoPlist assembles the Info.plist value for settings. executable
// is the CFBundleExecutable value: the bootstrapper name when
// settings.Mac.UseBootstrapper is set, otherwise the main binary's name.
func BuildInfoPlist(settings *bundle.Settings, executable string) InfoPlist {
	info := InfoPlist{
		CFBundleDevelopmentRegion:     "English",
		CFBundleDisplayName:           settings.ProductName,
		CFBundleName:                  settings.ProductName,
		CFBundleExecutable:            executable,
		CFBundleIdentifier:            settings.Identifier,
		CFBundleShortVersionString:    settings.Version,
		CFBundleVersion:               bundleVersionTimestamp(),
		CFBundlePackageType:           "APPL",
		CFBundleInfoDictionaryVersion: "6.0",
		CSResourcesFileMapped:         true,
		LSRequiresCarbon:              true,
		NSHighResolutionCapable:       true,
		LSApplicationCategoryType:     settings.Category,
		LSMinimumSystemVersion:        settings.Mac.MinimumSystemVersion,
		NSHumanReadableCopyright:      settings.Copyright,
	}

	if settings.Mac.ExceptionDomain != "" {
		info.NSAppTransportSecurity = &AppTransportSecurity{
			NSExceptionDomains: map[string]ExceptionDomain{
				settings.Mac.ExceptionDomain: {NSExceptionAllowsInsecureHTTPLoads: true},
			},
		}
	}

	return info
}

// bundleVersionTimestamp implements the pinned Open Question decision
// (DESIGN.md #1): CFBundleVersion is a wall-clock timestamp by default,
// matching the historical behavior exactly, but callers that need
// reproducible builds can set SOURCE_DATE_EPOCH and get that instant
// used in its place.
func bundleVersionTimestamp() string {
	if v := os.Getenv("SOURCE_DATE_EPOCH"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(epoch, 0).UTC().Format("20060102.150405")
		}
	}
	return time.Now().UTC().Format("20060102.150405")
}

// RenderInfoPlist encodes info as an XML property list. Builder code
// writes the result to Contents/Info.plist.
func RenderInfoPlist(w io.Writer, info InfoPlist) error {
	enc := plist.NewEncoder(w)
	enc.Indent("  ")
	return enc.Encode(info)
}
