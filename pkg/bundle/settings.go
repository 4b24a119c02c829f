package bundle

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crateforge/bundler/pkg/project"
)

// BundleBinary is one executable the bundler ships: the main binary or
// one of the external-binary sidecars. Exactly one BundleBinary in a
// Settings value has Main set.
type BundleBinary struct {
	Name string
	Path string
	Main bool
}

// MacSettings carries the macOS `.app`-builder-specific resolved config.
type MacSettings struct {
	Frameworks           []string
	MinimumSystemVersion string
	SigningIdentity      string
	EntitlementsPath     string
	UseBootstrapper      bool
	ExceptionDomain      string
}

// WixSettings carries the MSI-builder-specific resolved config.
type WixSettings struct {
	TemplatePath    string
	FragmentPaths   []string
	Language        string
	BannerPath      string
	DialogImagePath string
}

// NsisSettings carries the NSIS-builder-specific resolved config.
type NsisSettings struct {
	TemplatePath            string
	HeaderImage             string
	SidebarImage            string
	InstallerIcon           string
	InstallMode             string
	Languages               []string
	CustomLanguageFiles     map[string]string
	DisplayLanguageSelector bool
	Compression             string
	WebviewInstallMode      string
}

// WindowsSettings carries the shared Windows signing parameters plus the
// WiX and NSIS sub-settings.
type WindowsSettings struct {
	DigestAlgorithm       string
	CertificateThumbprint string
	TimestampURL          string
	TSP                   bool
	Wix                   WixSettings
	Nsis                  NsisSettings
}

// DebSettings carries the Debian-builder-specific resolved config.
type DebSettings struct {
	Depends       []string
	Section       string
	Priority      string
	ChangelogPath string
}

// UpdaterSettings carries the updater-variant resolved config.
type UpdaterSettings struct {
	Active    bool
	Endpoints []string
	Pubkey    string
	Dialog    bool
}

// Settings is the canonical, fully-resolved input to every builder,
// immutable once constructed by Build.
type Settings struct {
	ProductName      string
	Version          string
	Identifier       string
	Copyright        string
	Category         string
	ShortDescription string
	LongDescription  string

	OutDir       string
	TargetTriple string
	Arch         string

	Binaries         []BundleBinary
	Resources        []string
	ExternalBinaries []string
	Icons            []string

	Mac     MacSettings
	Windows WindowsSettings
	Deb     DebSettings
	Updater UpdaterSettings
}

// MainBinary returns the single BundleBinary with Main set, satisfying
// the "exactly one main" invariant from §3.
func (s *Settings) MainBinary() (*BundleBinary, error) {
	for i := range s.Binaries {
		if s.Binaries[i].Main {
			return &s.Binaries[i], nil
		}
	}
	return nil, fmt.Errorf("settings: no main binary among %d binaries", len(s.Binaries))
}

// BuildInput carries everything Build needs beyond the ProjectConfig:
// host/target facts and the caller's output directory and binary
// locations, which in the original source come from the compiler-driver
// collaborator (out of scope here, per spec.md's Non-goals).
type BuildInput struct {
	Config          *project.ProjectConfig
	HostOS          HostOS
	TargetTriple    string // empty means "use host"
	RequestedKinds  []PackageKind
	OutDir          string
	MainBinaryPath  string
	ExternalBinDirs map[string]string // prefix -> source path, pre-resolved by the caller
}

// Build implements §4.2's algorithm: binary enumeration, external-binary
// expansion, platform selection, caller filter intersection, and
// invariant checks. It returns the resolved Settings plus the ordered
// list of PackageKind to build.
func Build(in BuildInput) (*Settings, []PackageKind, error) {
	cfg := in.Config
	if cfg == nil {
		return nil, nil, &Error{Kind: KindConfiguration, Op: "build settings", Err: fmt.Errorf("nil ProjectConfig")}
	}

	triple := in.TargetTriple
	if triple == "" {
		triple = hostTriple(in.HostOS)
	}
	arch, err := BinaryArch(triple)
	if err != nil {
		return nil, nil, err
	}

	// Step 1: binary enumeration. The "main" flag goes to default_run,
	// falling back to the package name — kebab/lowercased, since there is
	// no separate crate/package-name field and a product name like
	// "ExampleApp" must still produce the lowercase binary "exampleapp";
	// Windows appends .exe.
	mainName := cfg.Package.DefaultRun
	if mainName == "" {
		mainName = KebabCase(cfg.Package.ProductName)
	}
	if in.HostOS == Windows {
		mainName += ".exe"
	}
	binaries := []BundleBinary{{Name: mainName, Path: in.MainBinaryPath, Main: true}}

	// Step 2: external-binary expansion. The target triple is baked into
	// the filename here and nowhere else.
	externalBinaries := make([]string, 0, len(cfg.Bundle.ExternalBinaries))
	for _, prefix := range cfg.Bundle.ExternalBinaries {
		name := prefix + "-" + triple
		if in.HostOS == Windows {
			name += ".exe"
		}
		externalBinaries = append(externalBinaries, name)
		path := ""
		if in.ExternalBinDirs != nil {
			path = in.ExternalBinDirs[prefix]
		}
		binaries = append(binaries, BundleBinary{Name: name, Path: path, Main: false})
	}

	// Step 3-4: platform selection and caller filter intersection.
	filter, err := requestedFilter(cfg)
	if err != nil {
		return nil, nil, err
	}
	if len(in.RequestedKinds) > 0 {
		filter = intersectFilters(filter, in.RequestedKinds)
	}
	selected, err := SelectKinds(in.HostOS, cfg.Updater.Active, filter)
	if err != nil {
		return nil, nil, err
	}

	// Step 5: invariant checks. Identifier non-empty unless the selection
	// is a degenerate no-op build (none of Deb/AppBundle/Msi/etc selected,
	// which SelectKinds already prevents from being empty, so we simply
	// require it whenever anything is selected).
	if cfg.Bundle.Identifier == "" && len(selected) > 0 {
		return nil, nil, &Error{Kind: KindConfiguration, Op: "build settings", Field: "bundle.identifier", Err: fmt.Errorf("required when any package kind is selected")}
	}

	entitlements := cfg.Bundle.MacOS.EntitlementsPath
	if entitlements != "" && !filepath.IsAbs(entitlements) {
		abs, absErr := filepath.Abs(entitlements)
		if absErr == nil {
			entitlements = abs
		}
	}

	settings := &Settings{
		ProductName:      cfg.Package.ProductName,
		Version:          cfg.Package.Version,
		Identifier:       cfg.Bundle.Identifier,
		Copyright:        cfg.Bundle.Copyright,
		Category:         cfg.Bundle.Category,
		ShortDescription: cfg.Bundle.ShortDescription,
		LongDescription:  cfg.Bundle.LongDescription,

		OutDir:       in.OutDir,
		TargetTriple: triple,
		Arch:         arch,

		Binaries:         binaries,
		Resources:        cfg.Bundle.Resources,
		ExternalBinaries: externalBinaries,
		Icons:            cfg.Bundle.Icons,

		Mac: MacSettings{
			Frameworks:           cfg.Bundle.MacOS.Frameworks,
			MinimumSystemVersion: cfg.Bundle.MacOS.MinimumSystemVersion,
			SigningIdentity:      cfg.Bundle.MacOS.SigningIdentity,
			EntitlementsPath:     entitlements,
			UseBootstrapper:      cfg.Bundle.MacOS.UseBootstrapper,
			ExceptionDomain:      cfg.Bundle.MacOS.ExceptionDomain,
		},
		Windows: WindowsSettings{
			DigestAlgorithm:       cfg.Bundle.Windows.DigestAlgorithm,
			CertificateThumbprint: cfg.Bundle.Windows.CertificateThumbprint,
			TimestampURL:          cfg.Bundle.Windows.TimestampURL,
			TSP:                   cfg.Bundle.Windows.TSP,
			Wix: WixSettings{
				TemplatePath:    cfg.Bundle.Windows.Wix.TemplatePath,
				FragmentPaths:   cfg.Bundle.Windows.Wix.FragmentPaths,
				Language:        cfg.Bundle.Windows.Wix.Language,
				BannerPath:      cfg.Bundle.Windows.Wix.BannerPath,
				DialogImagePath: cfg.Bundle.Windows.Wix.DialogImagePath,
			},
			Nsis: NsisSettings{
				TemplatePath:            cfg.Bundle.Windows.Nsis.TemplatePath,
				HeaderImage:             cfg.Bundle.Windows.Nsis.HeaderImage,
				SidebarImage:            cfg.Bundle.Windows.Nsis.SidebarImage,
				InstallerIcon:           cfg.Bundle.Windows.Nsis.InstallerIcon,
				InstallMode:             cfg.Bundle.Windows.Nsis.InstallMode,
				Languages:               cfg.Bundle.Windows.Nsis.Languages,
				CustomLanguageFiles:     cfg.Bundle.Windows.Nsis.CustomLanguageFiles,
				DisplayLanguageSelector: cfg.Bundle.Windows.Nsis.DisplayLanguageSelector,
				Compression:             cfg.Bundle.Windows.Nsis.Compression,
				WebviewInstallMode:      cfg.Bundle.Windows.Nsis.WebviewInstallMode,
			},
		},
		Deb: DebSettings{
			Depends:       cfg.Bundle.Deb.Depends,
			Section:       cfg.Bundle.Deb.Section,
			Priority:      cfg.Bundle.Deb.Priority,
			ChangelogPath: cfg.Bundle.Deb.ChangelogPath,
		},
		Updater: UpdaterSettings{
			Active:    cfg.Updater.Active,
			Endpoints: cfg.Updater.Endpoints.URLs,
			Pubkey:    cfg.Updater.Pubkey,
			Dialog:    cfg.Updater.Dialog,
		},
	}

	return settings, selected, nil
}

// requestedFilter turns the ProjectConfig's bundle.targets field into a
// []PackageKind filter, or nil for "no filtering" when targets is "all".
func requestedFilter(cfg *project.ProjectConfig) ([]PackageKind, error) {
	if cfg.Bundle.Targets.All {
		return nil, nil
	}
	kinds := make([]PackageKind, 0, len(cfg.Bundle.Targets.Kinds))
	for _, k := range cfg.Bundle.Targets.Kinds {
		kind, err := ParsePackageKind(k)
		if err != nil {
			return nil, &Error{Kind: KindConfiguration, Op: "parse bundle.targets", Field: k, Err: err}
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// intersectFilters combines a config-level filter with a caller-supplied
// filter; nil means "no restriction" for either side.
func intersectFilters(a, b []PackageKind) []PackageKind {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	bSet := make(map[PackageKind]bool, len(b))
	for _, k := range b {
		bSet[k] = true
	}
	out := make([]PackageKind, 0, len(a))
	for _, k := range a {
		if bSet[k] {
			out = append(out, k)
		}
	}
	return out
}

func hostTriple(os HostOS) string {
	switch os {
	case Darwin:
		return "x86_64-apple-darwin"
	case Linux:
		return "x86_64-unknown-linux-gnu"
	case Windows:
		return "x86_64-pc-windows-msvc"
	case IOS:
		return "aarch64-apple-ios"
	default:
		return ""
	}
}

// KebabCase renders a product name as Debian expects it: lower-cased,
// spaces and underscores collapsed to single hyphens.
func KebabCase(name string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r == ' ' || r == '_' || r == '-':
			if !prevDash && b.Len() > 0 {
				b.WriteByte('-')
				prevDash = true
			}
		default:
			b.WriteRune(r)
			prevDash = false
		}
	}
	return strings.Trim(b.String(), "-")
}
