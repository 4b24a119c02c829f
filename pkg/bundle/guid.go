package bundle

import (
	"strings"

	"github.com/google/uuid"
)

// bundlerNamespace is the fixed namespace UUID pinned by this bundler for
// every UUIDv5 GUID it derives except the upgrade code, which uses the
// DNS namespace per §4.7's literal contract. Once published this value
// must never change: it is exactly what makes GUIDs reproducible across
// runs and across bundler versions.
var bundlerNamespace = uuid.MustParse("c7b3c6b0-7c2e-5f2a-9a0f-9d1d9b9b5f10")

// generateProductCode joins ident1 and any additional key components with
// "-" and derives a stable UUIDv5 GUID from the bundler namespace,
// formatted the way Windows expects GUID attributes: upper-case,
// hyphenated, no braces. This mirrors the teacher's
// generateMicrosoftProductCode shape (ident1 plus variadic identN).
func generateProductCode(ident1 string, identN ...string) string {
	key := ident1
	if len(identN) > 0 {
		key = strings.Join(append([]string{ident1}, identN...), "-")
	}
	return strings.ToUpper(uuid.NewSHA1(bundlerNamespace, []byte(key)).String())
}

// PackageGUID derives the MSI package GUID from the bundle identifier.
func PackageGUID(identifier string) string {
	return generateProductCode(identifier)
}

// PathComponentGUID and ShortcutGUID both derive from the bundle
// identifier per §4.7 ("path_component_guid, shortcut_guid: UUIDv5
// (bundler namespace, bundle identifier)") — same input, so both return
// the same value; kept as distinct names because the WiX template
// addresses them as separate named values.
func PathComponentGUID(identifier string) string { return generateProductCode(identifier) }
func ShortcutGUID(identifier string) string       { return generateProductCode(identifier) }

// FileGUID derives a stable per-file GUID from a resource or
// external-binary filename.
func FileGUID(filename string) string {
	return generateProductCode(filename)
}

// UpgradeCode derives the MSI upgrade code. Per the pinned Open Question
// decision in DESIGN.md, the key is always "<mainBinary>.app.x64"
// regardless of actual target architecture, and it uses the DNS
// namespace (not the bundler namespace) to match the historical tauri
// lineage this bundler's upgrade codes must stay compatible with.
func UpgradeCode(mainBinaryName string) string {
	key := mainBinaryName + ".app.x64"
	return strings.ToUpper(uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String())
}
