package macos

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crateforge/bundler/pkg/bundlekit"
)

const keychainName = "tauri-build.keychain"

// KeychainCredentials are the CI-only environment inputs for importing a
// signing certificate into a dedicated temporary keychain, per §4.5's
// "Keychain setup" paragraph.
type KeychainCredentials struct {
	CertificateBase64 string // APPLE_CERTIFICATE
	CertificatePass   string // APPLE_CERTIFICATE_PASSWORD
}

// CredentialsFromEnv reads APPLE_CERTIFICATE / APPLE_CERTIFICATE_PASSWORD
// and reports whether both are present.
func CredentialsFromEnv() (KeychainCredentials, bool) {
	cert := os.Getenv("APPLE_CERTIFICATE")
	pass := os.Getenv("APPLE_CERTIFICATE_PASSWORD")
	if cert == "" || pass == "" {
		return KeychainCredentials{}, false
	}
	return KeychainCredentials{CertificateBase64: cert, CertificatePass: pass}, true
}

// SetupKeychain reproduces the exact sequence from §4.5/original_source:
// delete any previous keychain with this name, create a new one, set it
// default, unlock it, decode the certificate with the OS `base64` tool
// (to avoid whitespace sensitivity in a language-native base64 decoder),
// import it with trust for codesign/pkgbuild/productbuild, set its
// settings timeout, and set the key partition list. Teardown is
// deliberately not automatic — see DESIGN.md Open Question #2.
func SetupKeychain(ctx context.Context, runner *bundlekit.Runner, creds KeychainCredentials, workDir string) error {
	deleteKeychain(ctx, runner)

	if _, err := runner.Run(ctx, "security", []string{"create-keychain", "-p", "", keychainName}, bundlekit.RunOpts{}); err != nil {
		return err
	}
	if _, err := runner.Run(ctx, "security", []string{"default-keychain", "-s", keychainName}, bundlekit.RunOpts{}); err != nil {
		return err
	}
	if _, err := runner.Run(ctx, "security", []string{"unlock-keychain", "-p", "", keychainName}, bundlekit.RunOpts{}); err != nil {
		return err
	}

	encodedPath := filepath.Join(workDir, "certificate.p12.base64")
	if err := os.WriteFile(encodedPath, []byte(creds.CertificateBase64), 0o600); err != nil {
		return fmt.Errorf("write encoded certificate: %w", err)
	}
	certPath := filepath.Join(workDir, "certificate.p12")
	if _, err := runner.Run(ctx, "base64", []string{"--decode", "-i", encodedPath, "-o", certPath}, bundlekit.RunOpts{}); err != nil {
		return err
	}

	if err := ValidateCertificate(certPath, creds.CertificatePass); err != nil {
		return err
	}

	if _, err := runner.Run(ctx, "security", []string{
		"import", certPath,
		"-k", keychainName,
		"-P", creds.CertificatePass,
		"-T", "/usr/bin/codesign",
		"-T", "/usr/bin/pkgbuild",
		"-T", "/usr/bin/productbuild",
	}, bundlekit.RunOpts{}); err != nil {
		return err
	}

	if _, err := runner.Run(ctx, "security", []string{
		"set-keychain-settings", "-t", "3600", "-u", keychainName,
	}, bundlekit.RunOpts{}); err != nil {
		return err
	}

	if _, err := runner.Run(ctx, "security", []string{
		"set-key-partition-list", "-S", "apple-tool:,apple:,codesign:", "-s", "-k", "", keychainName,
	}, bundlekit.RunOpts{}); err != nil {
		return err
	}

	return nil
}

func deleteKeychain(ctx context.Context, runner *bundlekit.Runner) {
	_, _ = runner.Run(ctx, "security", []string{"delete-keychain", keychainName}, bundlekit.RunOpts{})
}

// SetupKeychainIfNeeded calls SetupKeychain only when both CI credential
// env vars are present, mirroring setup_keychain_if_needed from the
// original source.
func SetupKeychainIfNeeded(ctx context.Context, runner *bundlekit.Runner, workDir string) (bool, error) {
	creds, ok := CredentialsFromEnv()
	if !ok {
		return false, nil
	}
	if err := SetupKeychain(ctx, runner, creds, workDir); err != nil {
		return false, fmt.Errorf("setup keychain: %w", err)
	}
	return true, nil
}
