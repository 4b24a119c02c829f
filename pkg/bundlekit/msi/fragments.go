package msi

import (
	"fmt"
	"os"

	"github.com/clbanning/mxj"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

// ValidateFragment checks that a caller-supplied .wxs fragment file is
// well-formed XML before candle.exe ever sees it, so a malformed
// fragment surfaces as a typed Configuration error instead of an opaque
// WiX toolchain failure. Uses clbanning/mxj (the teacher's own XML→map
// dependency, used elsewhere in the pack for generic-XML parsing) rather
// than the full WiX schema, since a fragment's element vocabulary is
// open-ended.
func ValidateFragment(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fragment %s: %w", path, err)
	}
	if _, err := mxj.NewMapXml(data); err != nil {
		return bundleerr.NewConfigError(path, fmt.Errorf("fragment is not well-formed XML: %w", err))
	}
	return nil
}
