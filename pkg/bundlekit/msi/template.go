package msi

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/project"
	"github.com/crateforge/bundler/pkg/restree"
)

// productTemplate is the top-level .wxs skeleton. Directory/Component/
// File fragments are rendered separately (directory nesting needs
// recursion text/template can't express directly) and spliced in via
// {{.DirectoryXML}}/{{.ComponentRefsXML}}.
const productTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<Wix xmlns="http://schemas.microsoft.com/wix/2006/wi">
  <Product Id="{{.ProductCode}}" Name="{{.ProductName}}" Language="1033"
           Version="{{.Version}}" Manufacturer="{{.Manufacturer}}"
           UpgradeCode="{{.UpgradeCode}}">
    <Package InstallerVersion="500" Compressed="yes" InstallScope="perMachine" />
    <MajorUpgrade DowngradeErrorMessage="A newer version of [ProductName] is already installed." />
    <MediaTemplate EmbedCab="yes" />

    <Directory Id="TARGETDIR" Name="SourceDir">
      <Directory Id="ProgramFilesFolder">
        <Directory Id="INSTALLDIR" Name="{{.ProductName}}">
{{.DirectoryXML}}
        </Directory>
      </Directory>
    </Directory>

    <Feature Id="MainFeature" Title="{{.ProductName}}" Level="1">
{{.ComponentRefsXML}}
    </Feature>
  </Product>
</Wix>
`

// productData carries the values productTemplate substitutes.
type productData struct {
	ProductCode  string
	ProductName  string
	Version      string
	Manufacturer string
	UpgradeCode  string

	DirectoryXML     string
	ComponentRefsXML string
}

// BuildWxsSource renders a complete .wxs document for settings, with
// every resource/external-binary/main-binary file from tree placed
// under INSTALLDIR per its restree path, one Component holding exactly
// one File per file (mirroring the original source's
// ResourceDirectory::get_wix_data in bundle/wix.rs, which emits
// `<Component Guid=".." Win64="$(var.Win64)" KeyPath="yes"><File .../>
// </Component>` per file rather than grouping a directory's files into a
// shared component).
func BuildWxsSource(settings *bundle.Settings, tree *restree.Tree) (string, error) {
	var dirBuf, refBuf bytes.Buffer
	componentIDs := renderDirectory(&dirBuf, tree.Root, 4)
	for _, id := range componentIDs {
		fmt.Fprintf(&refBuf, "      <ComponentRef Id=\"%s\" />\n", id)
	}

	main, err := settings.MainBinary()
	if err != nil {
		return "", err
	}
	winVersion, err := project.WindowsVersion(settings.Version)
	if err != nil {
		return "", fmt.Errorf("derive windows version: %w", err)
	}

	data := productData{
		ProductCode:      bundle.PackageGUID(settings.Identifier),
		ProductName:      settings.ProductName,
		Version:          winVersion,
		Manufacturer:     firstNonEmpty(settings.Copyright, settings.ProductName),
		UpgradeCode:      bundle.UpgradeCode(strings.ToLower(strings.TrimSuffix(main.Name, ".exe"))),
		DirectoryXML:     dirBuf.String(),
		ComponentRefsXML: refBuf.String(),
	}

	tmpl, err := template.New("product.wxs").Parse(productTemplate)
	if err != nil {
		return "", fmt.Errorf("parse wxs template: %w", err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render wxs template: %w", err)
	}
	return out.String(), nil
}

// renderDirectory recursively writes WiX <Directory>/<Component>/<File>
// elements for d and its children at the given indent depth, returning
// every Component Id it emitted (for the Feature's ComponentRef list).
func renderDirectory(buf *bytes.Buffer, d *restree.Directory, depth int) []string {
	indent := strings.Repeat("  ", depth)
	var ids []string

	for _, f := range d.Files {
		componentID := sanitizeID("Cmp_" + f.ID)
		fmt.Fprintf(buf, "%s<Component Id=\"%s\" Guid=\"%s\" Win64=\"$(var.Win64)\" KeyPath=\"yes\">\n", indent, componentID, f.GUID)
		fmt.Fprintf(buf, "%s  <File Id=\"PathFile_%s\" Source=\"%s\" Name=\"%s\" />\n", indent, f.ID, f.Source, f.Name)
		fmt.Fprintf(buf, "%s</Component>\n", indent)
		ids = append(ids, componentID)
	}

	for _, child := range d.Directories {
		dirID := "Dir_" + child.Name
		fmt.Fprintf(buf, "%s<Directory Id=\"%s\" Name=\"%s\">\n", indent, sanitizeID(dirID), child.Name)
		ids = append(ids, renderDirectory(buf, child, depth+1)...)
		fmt.Fprintf(buf, "%s</Directory>\n", indent)
	}

	return ids
}

func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
