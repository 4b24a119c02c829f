// Package project defines the declarative project configuration schema
// (ProjectConfig) and its strict decode/validate pass: unknown fields at
// any nesting level are rejected, so a typo in a CLI-only project
// surfaces immediately instead of silently being ignored.
package project

import (
	"fmt"
	"strconv"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

// BundleTarget is the untagged polymorphic "target" field: either the
// literal string "all" or an explicit list of package kind names. Per
// the acceptance order pinned in DESIGN.md (string first, array second)
// rather than carrying over the source language's untagged-deserializer
// mechanism.
type BundleTarget struct {
	All   bool
	Kinds []string
}

func decodeBundleTarget(v any) (BundleTarget, error) {
	switch t := v.(type) {
	case string:
		if t == "all" {
			return BundleTarget{All: true}, nil
		}
		return BundleTarget{Kinds: []string{t}}, nil
	case []any:
		kinds := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return BundleTarget{}, fmt.Errorf("bundle.targets: array entries must be strings, got %T", item)
			}
			kinds = append(kinds, s)
		}
		return BundleTarget{Kinds: kinds}, nil
	case nil:
		return BundleTarget{All: true}, nil
	default:
		return BundleTarget{}, fmt.Errorf("bundle.targets: expected string or array, got %T", v)
	}
}

// AppUrl is the untagged polymorphic updater "endpoints" field: either a
// single URL string or an array of URL strings.
type AppUrl struct {
	URLs []string
}

func decodeAppURL(v any) (AppUrl, error) {
	switch t := v.(type) {
	case string:
		return AppUrl{URLs: []string{t}}, nil
	case []any:
		urls := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return AppUrl{}, fmt.Errorf("updater.endpoints: array entries must be strings, got %T", item)
			}
			urls = append(urls, s)
		}
		return AppUrl{URLs: urls}, nil
	default:
		return AppUrl{}, fmt.Errorf("updater.endpoints: expected string or array, got %T", v)
	}
}

// PackageConfig is the `package` section: product identity.
type PackageConfig struct {
	ProductName string
	Version     string
	DefaultRun  string
}

// MacOsConfig is the `bundle.macos` sub-block.
type MacOsConfig struct {
	Frameworks           []string
	MinimumSystemVersion string
	SigningIdentity      string
	EntitlementsPath     string
	UseBootstrapper      bool
	ExceptionDomain      string
}

// WixConfig is the `bundle.windows.wix` sub-block.
type WixConfig struct {
	TemplatePath    string
	FragmentPaths   []string
	Language        string
	BannerPath      string
	DialogImagePath string
}

// NsisConfig is the `bundle.windows.nsis` sub-block.
type NsisConfig struct {
	TemplatePath        string
	HeaderImage         string
	SidebarImage         string
	InstallerIcon       string
	InstallMode         string
	Languages           []string
	CustomLanguageFiles map[string]string
	DisplayLanguageSelector bool
	Compression         string // zlib, bzip2, lzma, none
	WebviewInstallMode  string
}

// WindowsConfig is the `bundle.windows` sub-block.
type WindowsConfig struct {
	DigestAlgorithm       string
	CertificateThumbprint string
	TimestampURL          string
	TSP                   bool
	Wix                   WixConfig
	Nsis                  NsisConfig
}

// DebianConfig is the `bundle.deb` sub-block.
type DebianConfig struct {
	Depends       []string
	Section       string
	Priority      string
	ChangelogPath string
}

// UpdaterConfig is the top-level `updater` section.
type UpdaterConfig struct {
	Active   bool
	Endpoints AppUrl
	Pubkey   string
	Dialog   bool
}

// BundleConfig is the `bundle` section.
type BundleConfig struct {
	Active              bool
	Targets             BundleTarget
	Identifier          string
	Icons               []string
	Resources           []string
	Copyright           string
	Category            string
	ShortDescription    string
	LongDescription     string
	ExternalBinaries    []string
	Deb                 DebianConfig
	MacOS               MacOsConfig
	Windows             WindowsConfig
}

// ProjectConfig is the fully deserialized, pre-normalization declarative
// configuration document (§3 "ProjectConfig" / §4.1 of the specification
// this module implements).
type ProjectConfig struct {
	Package PackageConfig
	Bundle  BundleConfig
	Updater UpdaterConfig

	DevPath         string
	DistDir         string
	Visible         bool
	Decorations     bool
	FileDropEnabled bool
	Focus           bool
}

// defaults applies §4.1's fixed default table before strict-decode
// validation runs, so a document that omits these fields is still valid.
func defaults() ProjectConfig {
	return ProjectConfig{
		DevPath:         "",
		DistDir:         "../dist",
		Visible:         true,
		Decorations:     true,
		FileDropEnabled: true,
		Focus:           true,
	}
}

// known field sets, one per nesting level, used by the strict decoder to
// reject typos instead of silently ignoring them.
var (
	knownTopFields = map[string]bool{
		"package": true, "bundle": true, "updater": true,
		"devPath": true, "distDir": true,
		"visible": true, "decorations": true, "fileDropEnabled": true, "focus": true,
	}
	knownPackageFields = map[string]bool{"productName": true, "version": true, "defaultRun": true}
	knownBundleFields  = map[string]bool{
		"active": true, "targets": true, "identifier": true, "icons": true,
		"resources": true, "copyright": true, "category": true,
		"shortDescription": true, "longDescription": true, "externalBin": true,
		"deb": true, "macOS": true, "windows": true,
	}
	knownUpdaterFields = map[string]bool{"active": true, "endpoints": true, "pubkey": true, "dialog": true}
	knownMacOSFields   = map[string]bool{
		"frameworks": true, "minimumSystemVersion": true, "signingIdentity": true,
		"entitlements": true, "useBootstrapper": true, "exceptionDomain": true,
	}
	knownDebFields     = map[string]bool{"depends": true, "section": true, "priority": true, "changelog": true}
	knownWindowsFields = map[string]bool{
		"digestAlgorithm": true, "certificateThumbprint": true, "timestampUrl": true,
		"tsp": true, "wix": true, "nsis": true,
	}
	knownWixFields  = map[string]bool{"template": true, "fragmentPaths": true, "language": true, "banner": true, "dialogImage": true}
	knownNsisFields = map[string]bool{
		"template": true, "headerImage": true, "sidebarImage": true, "installerIcon": true,
		"installMode": true, "languages": true, "customLanguageFiles": true,
		"displayLanguageSelector": true, "compression": true, "webviewInstallMode": true,
	}
)

func checkUnknown(path string, m map[string]any, known map[string]bool) error {
	for k := range m {
		if !known[k] {
			return fmt.Errorf("unknown field %q at %s", k, path)
		}
	}
	return nil
}

// Decode parses a raw configuration document, already unmarshaled into a
// generic map (the caller-supplied TOML/JSON decoder is expected to
// produce map[string]any for objects and []any for arrays — this is the
// shape github.com/pelletier/go-toml/v2 and encoding/json both produce
// via `any`). Decode applies defaults, rejects unknown fields at every
// nesting level, and normalizes the version string.
func Decode(raw map[string]any) (*ProjectConfig, error) {
	cfg := defaults()

	if err := checkUnknown("", raw, knownTopFields); err != nil {
		return nil, bundleerr.NewConfigError("", err)
	}

	if pkgRaw, ok := raw["package"].(map[string]any); ok {
		if err := checkUnknown("package", pkgRaw, knownPackageFields); err != nil {
			return nil, bundleerr.NewConfigError("package", err)
		}
		cfg.Package.ProductName, _ = pkgRaw["productName"].(string)
		cfg.Package.Version, _ = pkgRaw["version"].(string)
		cfg.Package.DefaultRun, _ = pkgRaw["defaultRun"].(string)
	}
	if cfg.Package.ProductName == "" {
		return nil, bundleerr.NewConfigError("package.productName", fmt.Errorf("required field is empty"))
	}
	normalizedVersion, err := NormalizeVersion(cfg.Package.Version)
	if err != nil {
		return nil, bundleerr.NewConfigError("package.version", err)
	}
	cfg.Package.Version = normalizedVersion

	if bundleRaw, ok := raw["bundle"].(map[string]any); ok {
		if err := decodeBundle(&cfg.Bundle, bundleRaw); err != nil {
			return nil, err
		}
	}

	if updaterRaw, ok := raw["updater"].(map[string]any); ok {
		if err := checkUnknown("updater", updaterRaw, knownUpdaterFields); err != nil {
			return nil, bundleerr.NewConfigError("updater", err)
		}
		cfg.Updater.Active, _ = updaterRaw["active"].(bool)
		cfg.Updater.Pubkey, _ = updaterRaw["pubkey"].(string)
		cfg.Updater.Dialog, _ = updaterRaw["dialog"].(bool)
		if endpoints, ok := updaterRaw["endpoints"]; ok {
			au, err := decodeAppURL(endpoints)
			if err != nil {
				return nil, bundleerr.NewConfigError("updater.endpoints", err)
			}
			cfg.Updater.Endpoints = au
		}
	}

	if v, ok := raw["devPath"].(string); ok {
		cfg.DevPath = v
	}
	if v, ok := raw["distDir"].(string); ok {
		cfg.DistDir = v
	}
	if v, ok := raw["visible"].(bool); ok {
		cfg.Visible = v
	}
	if v, ok := raw["decorations"].(bool); ok {
		cfg.Decorations = v
	}
	if v, ok := raw["fileDropEnabled"].(bool); ok {
		cfg.FileDropEnabled = v
	}
	if v, ok := raw["focus"].(bool); ok {
		cfg.Focus = v
	}

	return &cfg, nil
}

func decodeBundle(b *BundleConfig, raw map[string]any) error {
	if err := checkUnknown("bundle", raw, knownBundleFields); err != nil {
		return bundleerr.NewConfigError("bundle", err)
	}
	b.Active, _ = raw["active"].(bool)
	b.Identifier, _ = raw["identifier"].(string)
	b.Copyright, _ = raw["copyright"].(string)
	b.Category, _ = raw["category"].(string)
	b.ShortDescription, _ = raw["shortDescription"].(string)
	b.LongDescription, _ = raw["longDescription"].(string)
	b.Icons = stringSlice(raw["icons"])
	b.Resources = stringSlice(raw["resources"])
	b.ExternalBinaries = stringSlice(raw["externalBin"])

	if targets, ok := raw["targets"]; ok {
		bt, err := decodeBundleTarget(targets)
		if err != nil {
			return bundleerr.NewConfigError("bundle.targets", err)
		}
		b.Targets = bt
	} else {
		b.Targets = BundleTarget{All: true}
	}

	if debRaw, ok := raw["deb"].(map[string]any); ok {
		if err := checkUnknown("bundle.deb", debRaw, knownDebFields); err != nil {
			return bundleerr.NewConfigError("bundle.deb", err)
		}
		b.Deb.Depends = stringSlice(debRaw["depends"])
		b.Deb.Section, _ = debRaw["section"].(string)
		b.Deb.Priority, _ = debRaw["priority"].(string)
		b.Deb.ChangelogPath, _ = debRaw["changelog"].(string)
	}

	if macRaw, ok := raw["macOS"].(map[string]any); ok {
		if err := checkUnknown("bundle.macOS", macRaw, knownMacOSFields); err != nil {
			return bundleerr.NewConfigError("bundle.macOS", err)
		}
		b.MacOS.Frameworks = stringSlice(macRaw["frameworks"])
		b.MacOS.MinimumSystemVersion, _ = macRaw["minimumSystemVersion"].(string)
		b.MacOS.SigningIdentity, _ = macRaw["signingIdentity"].(string)
		b.MacOS.EntitlementsPath, _ = macRaw["entitlements"].(string)
		b.MacOS.UseBootstrapper, _ = macRaw["useBootstrapper"].(bool)
		b.MacOS.ExceptionDomain, _ = macRaw["exceptionDomain"].(string)
	}

	if winRaw, ok := raw["windows"].(map[string]any); ok {
		if err := decodeWindows(&b.Windows, winRaw); err != nil {
			return err
		}
	}

	return nil
}

func decodeWindows(w *WindowsConfig, raw map[string]any) error {
	if err := checkUnknown("bundle.windows", raw, knownWindowsFields); err != nil {
		return bundleerr.NewConfigError("bundle.windows", err)
	}
	w.DigestAlgorithm, _ = raw["digestAlgorithm"].(string)
	w.CertificateThumbprint, _ = raw["certificateThumbprint"].(string)
	w.TimestampURL, _ = raw["timestampUrl"].(string)
	w.TSP, _ = raw["tsp"].(bool)

	if wixRaw, ok := raw["wix"].(map[string]any); ok {
		if err := checkUnknown("bundle.windows.wix", wixRaw, knownWixFields); err != nil {
			return bundleerr.NewConfigError("bundle.windows.wix", err)
		}
		w.Wix.TemplatePath, _ = wixRaw["template"].(string)
		w.Wix.FragmentPaths = stringSlice(wixRaw["fragmentPaths"])
		w.Wix.Language, _ = wixRaw["language"].(string)
		w.Wix.BannerPath, _ = wixRaw["banner"].(string)
		w.Wix.DialogImagePath, _ = wixRaw["dialogImage"].(string)
	}

	if nsisRaw, ok := raw["nsis"].(map[string]any); ok {
		if err := checkUnknown("bundle.windows.nsis", nsisRaw, knownNsisFields); err != nil {
			return bundleerr.NewConfigError("bundle.windows.nsis", err)
		}
		w.Nsis.TemplatePath, _ = nsisRaw["template"].(string)
		w.Nsis.HeaderImage, _ = nsisRaw["headerImage"].(string)
		w.Nsis.SidebarImage, _ = nsisRaw["sidebarImage"].(string)
		w.Nsis.InstallerIcon, _ = nsisRaw["installerIcon"].(string)
		w.Nsis.InstallMode, _ = nsisRaw["installMode"].(string)
		w.Nsis.Languages = stringSlice(nsisRaw["languages"])
		w.Nsis.DisplayLanguageSelector, _ = nsisRaw["displayLanguageSelector"].(bool)
		w.Nsis.Compression, _ = nsisRaw["compression"].(string)
		w.Nsis.WebviewInstallMode, _ = nsisRaw["webviewInstallMode"].(string)
		if m, ok := nsisRaw["customLanguageFiles"].(map[string]any); ok {
			w.Nsis.CustomLanguageFiles = make(map[string]string, len(m))
			for k, v := range m {
				if s, ok := v.(string); ok {
					w.Nsis.CustomLanguageFiles[k] = s
				}
			}
		}
	}

	return nil
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// NormalizeVersion validates and normalizes a version string per §4.1:
// MAJOR.MINOR.PATCH, optionally with a single numeric build-metadata
// component (MAJOR.MINOR.PATCH+N). Non-semver input is a fatal
// Configuration error at this stage (not deferred to MSI/NSIS build
// time, unlike non-numeric build metadata which §4.1 explicitly defers).
func NormalizeVersion(v string) (string, error) {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return "", errors.Wrapf(err, "version %q is not valid semver", v)
	}
	return sv.String(), nil
}

// WindowsVersion renders the four-component Windows version string
// required by the MSI and NSIS builders: MAJOR.MINOR.PATCH.BUILD, where
// BUILD comes from a single numeric build-metadata component (or 0 when
// absent). Non-numeric build metadata is the fatal error §4.1 defers to
// this call site.
func WindowsVersion(v string) (string, error) {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return "", errors.Wrapf(err, "version %q is not valid semver", v)
	}
	meta := sv.Metadata()
	build := "0"
	if meta != "" {
		if _, err := strconv.Atoi(meta); err != nil {
			return "", fmt.Errorf("build metadata %q must be numeric-only for a Windows version", meta)
		}
		build = meta
	}
	return fmt.Sprintf("%d.%d.%d.%s", sv.Major(), sv.Minor(), sv.Patch(), build), nil
}
