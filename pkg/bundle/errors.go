package bundle

import "github.com/crateforge/bundler/pkg/bundleerr"

// Error and Kind are aliased from pkg/bundleerr so existing call sites in
// this package can keep writing bundle.Error / bundle.KindX while the
// underlying type lives in a package with no dependency on pkg/project,
// breaking what would otherwise be an import cycle (bundle needs
// project.ProjectConfig; project needs the error type).
type Error = bundleerr.Error
type Kind = bundleerr.Kind

const (
	KindConfiguration    = bundleerr.KindConfiguration
	KindArchUnsupported  = bundleerr.KindArchUnsupported
	KindResourceNotFound = bundleerr.KindResourceNotFound
	KindToolMissing      = bundleerr.KindToolMissing
	KindToolFailure      = bundleerr.KindToolFailure
	KindHash             = bundleerr.KindHash
	KindIO               = bundleerr.KindIO
	KindSigning          = bundleerr.KindSigning
)

var (
	NewConfigError           = bundleerr.NewConfigError
	NewArchError             = bundleerr.NewArchError
	NewResourceNotFoundError = bundleerr.NewResourceNotFoundError
	NewToolMissingError      = bundleerr.NewToolMissingError
	NewToolFailureError      = bundleerr.NewToolFailureError
	NewHashError             = bundleerr.NewHashError
	NewIOError               = bundleerr.NewIOError
	NewSigningError          = bundleerr.NewSigningError
)
