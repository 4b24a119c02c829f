// Package resources implements the lazy glob+walk resource enumeration
// described as "ResourcePaths" in the specification this module
// implements: for each configured pattern, glob-expand in lexicographic
// order, then optionally walk matched directories depth-first in
// lexicographic order, producing a deterministic, de-duplicated sequence
// of concrete file paths.
package resources

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

// Paths is a restartable sequence over (pattern -> glob-matches ->
// directory-walk). Construct a fresh Paths from the same pattern list to
// restart iteration; there is no cursor to reset.
type Paths struct {
	Patterns  []string
	AllowWalk bool
}

func New(patterns []string, allowWalk bool) *Paths {
	return &Paths{Patterns: patterns, AllowWalk: allowWalk}
}

// Visitor receives every concrete file path produced by iteration; a
// non-nil return stops iteration. It is passed paths only, never errors:
// a match that cannot be stat'ed is passed to it as a plain path.
type Visitor func(path string) error

// Each runs the full iteration described in §4.3. A pattern whose glob
// matches nothing, or whose matched directory yields no files when
// walked, ends iteration with a terminal ResourceNotFound error naming
// the pattern. Each path is passed to fn at most once per call, even when
// several patterns match it. The first error, terminal or returned by
// fn, stops iteration and is returned.
func (p *Paths) Each(fn Visitor) error {
	seen := make(map[string]bool)
	yield := fn
	fn = func(path string) error {
		if seen[path] {
			return nil
		}
		seen[path] = true
		return yield(path)
	}
	for _, pattern := range p.Patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return bundleerr.NewConfigError(pattern, err)
		}
		sort.Strings(matches)

		if len(matches) == 0 {
			return bundleerr.NewResourceNotFoundError(pattern)
		}

		for _, match := range matches {
			info, err := os.Lstat(match)
			if err != nil {
				if walkErr := fn(match); walkErr != nil {
					return walkErr
				}
				continue
			}

			if info.Mode()&os.ModeSymlink != 0 {
				target, err := os.Stat(match)
				if err == nil && target.IsDir() {
					// Symlinks to directories are recorded for later
					// reproduction rather than walked here.
					if err := fn(match); err != nil {
						return err
					}
					continue
				}
				// Symlinks to regular files are followed.
				if err := fn(match); err != nil {
					return err
				}
				continue
			}

			if !info.IsDir() {
				if err := fn(match); err != nil {
					return err
				}
				continue
			}

			if !p.AllowWalk {
				return bundleerr.NewIOError("walk resource directory", match, os.ErrInvalid)
			}

			found := false
			if err := walkDir(match, func(path string) error {
				found = true
				return fn(path)
			}); err != nil {
				return err
			}
			if !found {
				return bundleerr.NewResourceNotFoundError(pattern)
			}
		}
	}
	return nil
}

// walkDir enumerates regular files under root depth-first in
// lexicographic order.
func walkDir(root string, fn Visitor) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return bundleerr.NewIOError("read directory", root, err)
	}
	names := make([]string, 0, len(entries))
	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	sort.Strings(names)

	for _, name := range names {
		entry := byName[name]
		full := filepath.Join(root, name)
		if entry.IsDir() {
			if err := walkDir(full, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(full); err != nil {
			return err
		}
	}
	return nil
}

// TargetRelPath implements the "target relative path" rule from §4.3:
// given a source path matched by pattern, its path under the installer
// root is computed by stripping the longest non-glob *directory* prefix
// of pattern, preserving directory structure below the first wildcard
// component. A pattern with no wildcard at all names the file directly
// (not a directory to strip down to), so it contributes no prefix and
// the matched path is preserved in full — e.g. the literal resource
// "assets/logo.png" lands at "assets/logo.png", not "logo.png". This
// must be applied identically by every format-specific builder, so it
// lives here as the one shared helper.
func TargetRelPath(pattern, path string) string {
	prefix := nonGlobPrefix(pattern)
	rel, err := filepath.Rel(prefix, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return rel
}

// nonGlobPrefix returns the longest prefix of pattern, split on path
// separators, that contains no glob meta-characters and is followed by a
// wildcard component. A pattern containing no wildcard at all is entirely
// literal, so it has no prefix to strip ("." — nothing is stripped).
func nonGlobPrefix(pattern string) string {
	parts := strings.Split(filepath.ToSlash(pattern), "/")
	kept := make([]string, 0, len(parts))
	sawGlob := false
	for _, part := range parts {
		if strings.ContainsAny(part, "*?[") {
			sawGlob = true
			break
		}
		kept = append(kept, part)
	}
	if !sawGlob || len(kept) == 0 {
		return "."
	}
	return filepath.FromSlash(strings.Join(kept, "/"))
}
