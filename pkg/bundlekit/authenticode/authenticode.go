// Package authenticode signs Windows MSI/NSIS installer artifacts with
// signtool.exe, applying a dual sha1/sha256 Authenticode signature when
// a certificate thumbprint is configured, per §4.6/§4.8's shared
// Windows signing step and the original source's sign_command/TSP
// handling in windows/nsis.rs and settings.rs.
package authenticode

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

type execCCFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// signtoolOptions bundles the injectable exec hook with signing
// parameters, mirroring the teacher's authenticode_test.go's
// signtoolOptions{execCC} shape.
type signtoolOptions struct {
	execCC       execCCFunc
	signtoolPath string

	digestAlgorithm string
	thumbprint      string
	timestampURL    string
	tsp             bool
}

// Option configures a signing invocation.
type Option func(*signtoolOptions)

func WithSigntoolPath(path string) Option {
	return func(o *signtoolOptions) { o.signtoolPath = path }
}

func WithDigestAlgorithm(alg string) Option {
	return func(o *signtoolOptions) { o.digestAlgorithm = alg }
}

func WithCertificateThumbprint(thumbprint string) Option {
	return func(o *signtoolOptions) { o.thumbprint = thumbprint }
}

func WithTimestampURL(url string, tsp bool) Option {
	return func(o *signtoolOptions) { o.timestampURL = url; o.tsp = tsp }
}

func defaultOptions() *signtoolOptions {
	return &signtoolOptions{
		execCC:          exec.CommandContext,
		signtoolPath:    "signtool.exe",
		digestAlgorithm: "sha256",
	}
}

// Sign applies an Authenticode signature to path. When a certificate
// thumbprint is configured it signs twice: once with sha1 for legacy
// Windows compatibility, and again appended (/as) with sha256, matching
// the dual-signature scheme the original source's nsis.rs sign_command
// produces. When a timestamp URL is set, each pass is timestamped: RFC3161
// (/tr, /td) when TSP is set, legacy Authenticode (/t) otherwise. The
// digest algorithm option is not consulted; the two passes always use
// sha1 and sha256.
func Sign(ctx context.Context, path string, opts ...Option) error {
	o := defaultOptions()
	for _, apply := range opts {
		apply(o)
	}
	if o.thumbprint == "" {
		return nil
	}

	if err := o.signOnce(ctx, path, "sha1", false); err != nil {
		return err
	}
	if err := o.signOnce(ctx, path, "sha256", true); err != nil {
		return err
	}
	return nil
}

func (o *signtoolOptions) signOnce(ctx context.Context, path, digest string, appendSig bool) error {
	args := []string{"sign", "/sha1", o.thumbprint, "/fd", digest}
	if appendSig {
		args = append(args, "/as")
	}
	if o.timestampURL != "" {
		if o.tsp {
			args = append(args, "/tr", o.timestampURL, "/td", digest)
		} else {
			args = append(args, "/t", o.timestampURL)
		}
	}
	args = append(args, path)

	stdout, stderr, err := o.execOut(ctx, o.signtoolPath, args...)
	if err != nil {
		return bundleerr.NewToolFailureError("signtool.exe", exitCode(err), stdout+stderr, err)
	}
	return nil
}

// execOut runs name with args via the injectable execCC, capturing
// stdout and stderr separately — authenticode_test.go's verify step
// inspects stdout text directly ("No signature found", "sha1", ...).
func (o *signtoolOptions) execOut(ctx context.Context, name string, args ...string) (stdout, stderr string, err error) {
	cmd := o.execCC(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
