package macos

import (
	"context"
	"os"

	"github.com/crateforge/bundler/pkg/bundlekit"
)

// Sign invokes codesign per §4.5 step 7. deep is appended only when
// signing a directory (the app bundle itself); it must be false when
// re-signing a zipped artifact ahead of notarization.
func Sign(ctx context.Context, runner *bundlekit.Runner, path, identity, entitlementsPath string, deep bool) error {
	args := []string{"--force", "-s", identity}
	if entitlementsPath != "" {
		args = append(args, "--entitlements", entitlementsPath)
	}
	args = append(args, "--options", "runtime")
	if deep {
		args = append(args, "--deep")
	}
	args = append(args, path)

	_, err := runner.Run(ctx, "codesign", args, bundlekit.RunOpts{})
	return err
}

// notarizationCredentialsPresent reports whether either Apple-ID or
// API-key notarization credentials are present in the process
// environment, per §4.5 step 8.
func notarizationCredentialsPresent() bool {
	appleID := os.Getenv("APPLE_ID") != "" && os.Getenv("APPLE_PASSWORD") != ""
	apiKey := os.Getenv("APPLE_API_KEY") != "" && os.Getenv("APPLE_API_ISSUER") != ""
	return appleID || apiKey
}
