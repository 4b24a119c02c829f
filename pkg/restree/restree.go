// Package restree builds the ResourceDirectory tree shared by the MSI
// and NSIS builders: a recursively nested {name, files[], directories[]}
// structure built by splitting each source file's installer-relative
// path into components, with intermediate directories accumulating into
// the tree and each leaf tagged with a stable GUID.
package restree

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/crateforge/bundler/pkg/bundle"
)

// File is one leaf in the tree: a resource or external binary, tagged
// with a hash-free, stable component/file ID and a deterministic GUID.
type File struct {
	Name   string // base filename
	Source string // absolute path on disk
	ID     string
	GUID   string
}

// Directory is one node in the tree.
type Directory struct {
	Name        string
	Files       []File
	Directories []*Directory
}

// Tree is the constructed ResourceDirectory, plus the id-disambiguation
// state needed to keep adding files to it.
type Tree struct {
	Root     *Directory
	idCounts map[string]int
}

func New() *Tree {
	return &Tree{Root: &Directory{Name: ""}, idCounts: make(map[string]int)}
}

var nonWord = regexp.MustCompile(`\W+`)

// stableID implements the "hash-free function of the filename, with a
// fallback disambiguation counter when filename collisions occur across
// directories" invariant from §4.7.
func (t *Tree) stableID(name string) string {
	base := nonWord.ReplaceAllString(name, "_")
	if base == "" {
		base = "_"
	}
	n := t.idCounts[base]
	t.idCounts[base] = n + 1
	if n == 0 {
		return base
	}
	return base + "_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Add inserts one source file at relPath (installer-relative, forward- or
// OS-separator) into the tree, creating intermediate directories as
// needed.
func (t *Tree) Add(relPath, sourceAbsPath string) {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	dir := t.Root
	for _, part := range parts[:len(parts)-1] {
		dir = dir.child(part)
	}
	name := parts[len(parts)-1]
	dir.Files = append(dir.Files, File{
		Name:   name,
		Source: sourceAbsPath,
		ID:     t.stableID(name),
		GUID:   bundle.FileGUID(name),
	})
}

func (d *Directory) child(name string) *Directory {
	for _, c := range d.Directories {
		if c.Name == name {
			return c
		}
	}
	c := &Directory{Name: name}
	d.Directories = append(d.Directories, c)
	return c
}

// FlattenDepthDescending returns every directory in the tree (including
// the root) ordered by path depth descending: the deepest directories
// first and the root last. Directories of equal depth keep the order of a
// depth-first walk of the tree.
func FlattenDepthDescending(root *Directory) []*Directory {
	type entry struct {
		dir   *Directory
		depth int
		path  string
	}
	var all []entry
	var walk func(d *Directory, depth int, path string)
	walk = func(d *Directory, depth int, path string) {
		all = append(all, entry{dir: d, depth: depth, path: path})
		for _, c := range d.Directories {
			walk(c, depth+1, path+"/"+c.Name)
		}
	}
	walk(root, 0, "")

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].depth > all[j].depth
	})

	out := make([]*Directory, len(all))
	for i, e := range all {
		out[i] = e.dir
	}
	return out
}
