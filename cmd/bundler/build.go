package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/kit/env"

	"github.com/crateforge/bundler/pkg/bundle"
	"github.com/crateforge/bundler/pkg/bundlekit"
	"github.com/crateforge/bundler/pkg/bundlekit/appimage"
	"github.com/crateforge/bundler/pkg/bundlekit/authenticode"
	"github.com/crateforge/bundler/pkg/bundlekit/deb"
	"github.com/crateforge/bundler/pkg/bundlekit/dmg"
	"github.com/crateforge/bundler/pkg/bundlekit/macos"
	"github.com/crateforge/bundler/pkg/bundlekit/msi"
	"github.com/crateforge/bundler/pkg/bundlekit/nsis"
	"github.com/crateforge/bundler/pkg/bundlekit/updater"
	"github.com/crateforge/bundler/pkg/contexts/ctxlog"
	"github.com/crateforge/bundler/pkg/project"
	"github.com/crateforge/bundler/pkg/resources"
	"github.com/crateforge/bundler/pkg/restree"
)

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func runBuild(args []string) error {
	flagset := flag.NewFlagSet("build", flag.ExitOnError)
	var (
		flConfig = flagset.String(
			"config",
			env.String("BUNDLER_CONFIG", "bundler.toml"),
			"path to the project's TOML configuration document",
		)
		flDebug = flagset.Bool(
			"debug",
			env.Bool("BUNDLER_DEBUG", false),
			"enable debug logging",
		)
		flOutputDir = flagset.String(
			"output_dir",
			env.String("OUTPUT_DIR", ""),
			"directory to write finished packages to (default: random temp dir)",
		)
		flCacheDir = flagset.String(
			"cache_dir",
			env.String("CACHE_DIR", ""),
			"directory to cache toolchain downloads in (default: random temp dir)",
		)
		flMainBinary = flagset.String(
			"main_binary",
			env.String("MAIN_BINARY_PATH", ""),
			"path of the already-built main binary to package",
		)
		flHost = flagset.String(
			"host",
			env.String("BUNDLER_HOST_OS", runtime.GOOS),
			"host/target OS to build for (darwin, linux, windows, ios)",
		)
		flTargetTriple = flagset.String(
			"target_triple",
			env.String("TARGET_TRIPLE", ""),
			"Rust-style target triple to derive arch from (default: host's native triple)",
		)
		flTargets = flagset.String(
			"targets",
			env.String("TARGETS", "all"),
			"comma-separated package kinds to build, or \"all\"",
		)
		flWixPath = flagset.String(
			"wix_path",
			env.String("WIX_PATH", ""),
			"location of the WiX candle.exe/light.exe binaries",
		)
		flWixDocker = flagset.String(
			"wix_docker_image",
			env.String("WIX_DOCKER_IMAGE", ""),
			"docker image to run candle.exe/light.exe under (wine cross-compile), empty to run natively",
		)
		flUpdaterKeyPath = flagset.String(
			"updater_private_key",
			env.String("UPDATER_PRIVATE_KEY", ""),
			"path to a raw ed25519 private key used to sign produced artifacts when the updater is active",
		)
	)
	flagset.Usage = usageFor(flagset, "bundler build [flags]")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	logger := log.NewJSONLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)
	if *flDebug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	ctx := context.Background()
	ctx = ctxlog.NewContext(ctx, logger)

	cfg, err := project.LoadFile(*flConfig)
	if err != nil {
		return fmt.Errorf("loading project config %s: %w", *flConfig, err)
	}

	hostOS, err := bundle.ParseHostOS(*flHost)
	if err != nil {
		return fmt.Errorf("resolving host OS: %w", err)
	}

	var requestedKinds []bundle.PackageKind
	if strings.ToLower(strings.TrimSpace(*flTargets)) != "all" {
		for _, tok := range strings.Split(*flTargets, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			kind, err := bundle.ParsePackageKind(tok)
			if err != nil {
				return fmt.Errorf("parsing -targets: %w", err)
			}
			requestedKinds = append(requestedKinds, kind)
		}
	}

	outputDir := *flOutputDir
	if outputDir == "" {
		outputDir, err = os.MkdirTemp("", "bundler-out")
		if err != nil {
			return fmt.Errorf("making output dir: %w", err)
		}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("mkdir output dir: %w", err)
	}

	cacheDir := *flCacheDir
	if cacheDir == "" {
		cacheDir, err = os.MkdirTemp("", "bundler-cache")
		if err != nil {
			return fmt.Errorf("making cache dir: %w", err)
		}
		defer os.RemoveAll(cacheDir)
	}
	cache, err := bundlekit.OpenCache(cacheDir)
	if err != nil {
		return fmt.Errorf("opening toolchain cache: %w", err)
	}
	defer cache.Close()

	settings, kinds, err := bundle.Build(bundle.BuildInput{
		Config:         cfg,
		HostOS:         hostOS,
		TargetTriple:   *flTargetTriple,
		RequestedKinds: requestedKinds,
		OutDir:         outputDir,
		MainBinaryPath: *flMainBinary,
	})
	if err != nil {
		return fmt.Errorf("resolving build settings: %w", err)
	}

	runner := bundlekit.NewRunner()
	var produced []string

	for _, kind := range kinds {
		level.Info(logger).Log("msg", "building package", "kind", kind.String())

		var path string
		var buildErr error

		switch kind {
		case bundle.AppBundle:
			path, buildErr = macos.BuildAppBundle(ctx, settings, macos.BuildOptions{Runner: runner})
		case bundle.Dmg:
			path, buildErr = dmg.BuildDiskImage(ctx, settings, dmg.BuildOptions{Runner: runner})
		case bundle.Deb:
			path, buildErr = deb.BuildPackage(ctx, settings, deb.BuildOptions{Runner: runner})
		case bundle.AppImage:
			path, buildErr = appimage.BuildAppImage(ctx, settings, appimage.BuildOptions{Runner: runner, Cache: cache})
		case bundle.Msi:
			path, buildErr = buildMsi(ctx, settings, *flWixPath, *flWixDocker)
		case bundle.Nsis:
			nsisOutDir := filepath.Join(outputDir, "nsis")
			path, buildErr = nsis.BuildInstaller(ctx, settings, nsisOutDir, nsis.BuildOptions{Runner: runner, Cache: cache})
		case bundle.Updater:
			buildErr = signForUpdater(produced, *flUpdaterKeyPath, logger)
		case bundle.Rpm, bundle.IosBundle:
			level.Info(logger).Log("msg", "package kind has no builder in this module, skipping", "kind", kind.String())
			continue
		default:
			buildErr = fmt.Errorf("no builder wired for package kind %q", kind.String())
		}

		if buildErr != nil {
			return fmt.Errorf("building %s: %w", kind.String(), buildErr)
		}
		if path != "" {
			if err := signWindowsArtifact(ctx, settings, path); err != nil {
				return fmt.Errorf("signing %s: %w", kind.String(), err)
			}
			produced = append(produced, path)
			level.Info(logger).Log("msg", "built package", "kind", kind.String(), "path", path)
		}
	}

	fmt.Printf("Built packages in %s\n", outputDir)
	return nil
}

// buildMsi assembles the restree.Tree of installed files (main binary,
// external binaries, resources) the same way macos.copyResources maps
// patterns to target-relative paths, renders the .wxs source, and drives
// candle.exe/light.exe against it.
func buildMsi(ctx context.Context, settings *bundle.Settings, wixPath, dockerImage string) (string, error) {
	tree := restree.New()
	for _, b := range settings.Binaries {
		if b.Path == "" {
			continue
		}
		tree.Add(b.Name, b.Path)
	}
	for _, pattern := range settings.Resources {
		paths := resources.New([]string{pattern}, true)
		if err := paths.Each(func(path string) error {
			tree.Add(resources.TargetRelPath(pattern, path), path)
			return nil
		}); err != nil {
			return "", err
		}
	}

	wxs, err := msi.BuildWxsSource(settings, tree)
	if err != nil {
		return "", err
	}

	packageRoot := filepath.Join(settings.OutDir, "msi")
	if err := os.MkdirAll(packageRoot, 0o755); err != nil {
		return "", bundle.NewIOError("mkdir", packageRoot, err)
	}

	opts := []msi.Option{msi.WithWix(wixPath), msi.WithFragments(settings.Windows.Wix.FragmentPaths)}
	if settings.Arch == "x86" {
		opts = append(opts, msi.As32bit())
	}
	if dockerImage != "" {
		opts = append(opts, msi.WithDocker(dockerImage))
	}

	tool, err := msi.New(packageRoot, []byte(wxs), opts...)
	if err != nil {
		return "", err
	}
	return tool.Package(ctx)
}

// signWindowsArtifact applies an Authenticode signature to MSI/NSIS
// output; Sign itself is a no-op when no certificate thumbprint is
// configured, so this is safe to call unconditionally.
func signWindowsArtifact(ctx context.Context, settings *bundle.Settings, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".msi" && ext != ".exe" {
		return nil
	}
	return authenticode.Sign(ctx, path,
		authenticode.WithDigestAlgorithm(settings.Windows.DigestAlgorithm),
		authenticode.WithCertificateThumbprint(settings.Windows.CertificateThumbprint),
		authenticode.WithTimestampURL(settings.Windows.TimestampURL, settings.Windows.TSP),
	)
}

// signForUpdater ed25519-signs every artifact built so far in this run,
// writing a <artifact>.sig file beside each. Without a configured private
// key there is nothing to sign with, so it logs and returns rather than
// failing the whole build over a missing updater secret.
func signForUpdater(produced []string, keyPath string, logger log.Logger) error {
	if keyPath == "" {
		level.Info(logger).Log("msg", "updater active but no -updater_private_key configured, skipping artifact signing")
		return nil
	}
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("reading updater private key: %w", err)
	}
	keys, err := updater.KeyPairFromPrivateKey(raw)
	if err != nil {
		return fmt.Errorf("parsing updater private key: %w", err)
	}
	for _, artifact := range produced {
		sigPath, err := updater.SignArtifact(artifact, keys)
		if err != nil {
			return fmt.Errorf("signing %s: %w", artifact, err)
		}
		level.Info(logger).Log("msg", "signed artifact for updater", "artifact", artifact, "signature", sigPath)
	}
	return nil
}
