// Package msi builds Windows Installer packages by rendering a WiX
// source (.wxs) document from the resolved Settings and resource tree,
// then invoking the WiX toolset's candle/light compiler-linker pair.
package msi

import "encoding/xml"

// The XML element types below mirror the tree WiX's own `heat.exe`
// harvester produces and that candle.exe/light.exe consume, grounded on
// the teacher's pkg/packagekit/wix/schema_test.go (TestSchemaFromHeat),
// which unmarshals a harvested AppFiles.wxs into exactly this shape.
// template.go renders its .wxs text directly rather than encoding these
// types, using the same element/attribute names; no test in this package
// decodes through them. The harvested structure is Fragments ->
// DirectoryRefs -> Directories (nested) -> Components -> Files.
type Wix struct {
	XMLName   xml.Name   `xml:"Wix"`
	Fragments []Fragment `xml:"Fragment"`
}

type Fragment struct {
	DirectoryRefs []DirectoryRef `xml:"DirectoryRef"`
	ComponentGroups []ComponentGroup `xml:"ComponentGroup"`
}

type DirectoryRef struct {
	Id          string      `xml:"Id,attr"`
	Directories []Directory `xml:"Directory"`
}

type Directory struct {
	Id          string      `xml:"Id,attr"`
	Name        string      `xml:"Name,attr"`
	Directories []Directory `xml:"Directory"`
	Components  []Component `xml:"Component"`
}

type Component struct {
	Id    string `xml:"Id,attr"`
	Guid  string `xml:"Guid,attr"`
	Files []File `xml:"File"`
}

type File struct {
	Id     string `xml:"Id,attr"`
	Source string `xml:"Source,attr"`
	Name   string `xml:"Name,attr"`
}

type ComponentGroup struct {
	Id         string   `xml:"Id,attr"`
	ComponentRefs []ComponentRef `xml:"ComponentRef"`
}

type ComponentRef struct {
	Id string `xml:"Id,attr"`
}

// RetFiles walks every Fragment/DirectoryRef/Directory (recursively) and
// returns every File leaf, matching the teacher test's `RetFiles()`
// flattening helper.
func (w *Wix) RetFiles() []File {
	var out []File
	for _, frag := range w.Fragments {
		for _, ref := range frag.DirectoryRefs {
			for _, dir := range ref.Directories {
				out = append(out, retFilesDir(dir)...)
			}
		}
	}
	return out
}

func retFilesDir(d Directory) []File {
	out := make([]File, 0, len(d.Components))
	for _, c := range d.Components {
		out = append(out, c.Files...)
	}
	for _, child := range d.Directories {
		out = append(out, retFilesDir(child)...)
	}
	return out
}
