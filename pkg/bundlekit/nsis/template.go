// Package nsis builds a Windows NSIS installer: it renders a .nsi
// script from the resolved Settings plus the resource tree and invokes
// makensis.exe, grounded step-for-step on
// _examples/original_source/tooling/bundler/src/bundle/windows/nsis.rs.
package nsis

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/project"
	"github.com/crateforge/bundler/pkg/resources"
)

// installerTemplate is a from-scratch Go text/template standing in for
// nsis.rs's handlebars installer.nsi, covering the same data keys
// (arch, bundle_id, manufacturer, product_name, version_with_build,
// install_mode, languages, main_binary_name, resources, binaries,
// estimated_size, webview2 install mode) the original populates via its
// BTreeMap<&str, Value> `data`.
const installerTemplate = `!define PRODUCT_NAME "{{.ProductName}}"
!define PRODUCT_VERSION "{{.VersionWithBuild}}"
!define PRODUCT_PUBLISHER "{{.Manufacturer}}"
!define PRODUCT_BUNDLE_ID "{{.BundleID}}"
!define ARCH "{{.Arch}}"
!define INSTALL_MODE "{{.InstallMode}}"
!define MAIN_BINARY_NAME "{{.MainBinaryName}}"
!define MAIN_BINARY_PATH "{{.MainBinaryPath}}"
!define OUT_FILE "{{.OutFile}}"
!define ESTIMATED_SIZE {{.EstimatedSize}}
!define COMPRESSION "{{.Compression}}"
!define WEBVIEW2_INSTALL_MODE "{{.Webview2InstallMode}}"

{{range .Languages}}!insertmacro MUI_LANGUAGE "{{.}}"
{{end}}
Section "MainSection" SEC01
  SetOutPath "$INSTDIR"
  File "${MAIN_BINARY_PATH}"
{{range .Binaries}}  File "{{.Source}}"
{{end}}{{range .Resources}}  SetOutPath "$INSTDIR\{{.TargetDir}}"
  File "{{.Source}}"
{{end}}
SectionEnd
`

type languageFile struct {
	Lang string
}

type binaryEntry struct {
	Source string
	Dest   string
}

type resourceEntry struct {
	Source    string
	TargetDir string
}

type installerData struct {
	ProductName         string
	VersionWithBuild     string
	Manufacturer        string
	BundleID            string
	Arch                string
	InstallMode         string
	MainBinaryName      string
	MainBinaryPath      string
	OutFile             string
	EstimatedSize       string
	Compression         string
	Webview2InstallMode string
	Languages           []string
	Binaries            []binaryEntry
	Resources           []resourceEntry
}

// nsisEscape mirrors nsis.rs's register_escape_fn: NSIS treats `"`, `$`,
// and backtick specially, and needs explicit escapes for newline/tab/CR
// inside quoted strings.
func nsisEscape(s string) string {
	replacer := strings.NewReplacer(
		`"`, `$\"`,
		"$", "$$",
		"`", "$\\`",
		"\n", "$\\n",
		"\t", "$\\t",
		"\r", "$\\r",
	)
	return replacer.Replace(s)
}

// or mirrors the handlebars_or helper: returns the first non-empty
// argument.
func or(a, b string) string {
	if a == "" {
		return b
	}
	return a
}

// associationDescription mirrors the association_description helper:
// falls back to "<EXT> File" in upper-case when no description was
// configured.
func associationDescription(description, ext string) string {
	if description == "" {
		return strings.ToUpper(ext) + " File"
	}
	return description
}

// BuildInstallerScript renders the .nsi script text for settings.
func BuildInstallerScript(settings *bundle.Settings, estimatedSize string) (string, error) {
	main, err := settings.MainBinary()
	if err != nil {
		return "", err
	}

	versionWithBuild, err := project.WindowsVersion(settings.Version)
	if err != nil {
		return "", fmt.Errorf("derive windows version: %w", err)
	}

	languages := settings.Windows.Nsis.Languages
	if len(languages) == 0 {
		languages = []string{"English"}
	}

	binaries := make([]binaryEntry, 0, len(settings.Binaries))
	for _, b := range settings.Binaries {
		if b.Main {
			continue
		}
		binaries = append(binaries, binaryEntry{Source: nsisEscape(b.Path), Dest: nsisEscape(b.Name)})
	}

	installMode := settings.Windows.Nsis.InstallMode
	if installMode == "" {
		installMode = "currentUser"
	}
	compression := settings.Windows.Nsis.Compression
	if compression == "" {
		compression = "lzma"
	}

	var resourceEntries []resourceEntry
	for _, pattern := range settings.Resources {
		paths := resources.New([]string{pattern}, true)
		if err := paths.Each(func(path string) error {
			targetDir := filepath.Dir(resources.TargetRelPath(pattern, path))
			if targetDir == "." {
				targetDir = ""
			}
			resourceEntries = append(resourceEntries, resourceEntry{
				Source:    nsisEscape(path),
				TargetDir: nsisEscape(filepath.FromSlash(targetDir)),
			})
			return nil
		}); err != nil {
			return "", err
		}
	}

	data := installerData{
		ProductName:         nsisEscape(settings.ProductName),
		VersionWithBuild:     versionWithBuild,
		Manufacturer:        nsisEscape(or(settings.Copyright, settings.ProductName)),
		BundleID:            settings.Identifier,
		Arch:                settings.Arch,
		InstallMode:         installMode,
		MainBinaryName:      strings.TrimSuffix(main.Name, ".exe"),
		MainBinaryPath:      main.Path,
		OutFile:             "nsis-output.exe",
		EstimatedSize:       estimatedSize,
		Compression:         compression,
		Webview2InstallMode: or(settings.Windows.Nsis.WebviewInstallMode, "downloadBootstrapper"),
		Languages:           languages,
		Binaries:            binaries,
		Resources:           resourceEntries,
	}

	tmpl, err := template.New("installer.nsi").Parse(installerTemplate)
	if err != nil {
		return "", fmt.Errorf("parse nsis template: %w", err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render nsis template: %w", err)
	}
	return out.String(), nil
}
