// Package notarization drives Apple's altool notarization workflow:
// submitting a zipped app bundle and polling notarization-info until
// Apple reaches a terminal status, per §4.5 step 8.
package notarization

import (
	"context"
	"fmt"
	"time"

	howett "howett.net/plist"

	"github.com/crateforge/bundler/pkg/bundlekit"
)

// pollInterval is the delay between notarization-info polls, matching
// the original source's 10-second sleep in get_notarization_status.
var pollInterval = 10 * time.Second

// Notarizer submits app bundles to Apple's notarization service using
// xcrun altool and polls for the resulting status.
type Notarizer struct {
	username    string
	password    string
	ascProvider string
	runner      *bundlekit.Runner

	// fakeResponse, when non-empty, is returned in place of actually
	// invoking xcrun altool. Test-only hook, named and shaped after
	// applenotarization_test.go's identical field.
	fakeResponse string
}

// New returns a Notarizer authenticating as username/password against
// the given App Store Connect provider short name.
func New(username, password, ascProvider string) *Notarizer {
	return &Notarizer{
		username:    username,
		password:    password,
		ascProvider: ascProvider,
		runner:      bundlekit.NewRunner(),
	}
}

type notarizationInfoResponse struct {
	NotarizationInfo struct {
		RequestUUID string `plist:"RequestUUID"`
		Status      string `plist:"Status"`
		StatusCode  int    `plist:"Status Code"`
		StatusMsg   string `plist:"Status Message"`
	} `plist:"notarization-info"`
}

type notarizationUploadResponse struct {
	NotarizationUpload struct {
		RequestUUID string `plist:"RequestUUID"`
	} `plist:"notarization-upload"`
}

func (n *Notarizer) authArgs() []string {
	return []string{"-u", n.username, "-p", n.password, "--asc-provider", n.ascProvider}
}

// Submit uploads zipPath (already produced by the caller via
// ditto) under bundleID, returning Apple's RequestUUID.
func (n *Notarizer) Submit(ctx context.Context, zipPath, bundleID string) (string, error) {
	stdout, err := n.invoke(ctx, append([]string{
		"altool", "--notarize-app",
		"-f", zipPath,
		"--primary-bundle-id", bundleID,
		"--output-format", "xml",
	}, n.authArgs()...))
	if err != nil {
		return "", fmt.Errorf("upload to notarization service: %w", err)
	}

	var resp notarizationUploadResponse
	if _, err := howett.Unmarshal([]byte(stdout), &resp); err != nil {
		return "", fmt.Errorf("parse notarization upload response: %w", err)
	}
	if resp.NotarizationUpload.RequestUUID == "" {
		return "", fmt.Errorf("no RequestUUID in notarization upload response: %s", stdout)
	}
	return resp.NotarizationUpload.RequestUUID, nil
}

// Check queries notarization-info for uuid once and returns its
// reported status ("success", "in progress", "invalid", ...). It does
// not poll; callers loop via Wait.
func (n *Notarizer) Check(ctx context.Context, uuid string) (string, error) {
	stdout, err := n.invoke(ctx, append([]string{
		"altool", "--notarization-info", uuid,
		"--output-format", "xml",
	}, n.authArgs()...))
	if err != nil {
		return "", fmt.Errorf("check notarization status: %w", err)
	}

	var resp notarizationInfoResponse
	if _, err := howett.Unmarshal([]byte(stdout), &resp); err != nil {
		return "", fmt.Errorf("parse notarization info response: %w", err)
	}
	if resp.NotarizationInfo.RequestUUID != uuid {
		return "", fmt.Errorf("notarization info response uuid %q does not match requested %q",
			resp.NotarizationInfo.RequestUUID, uuid)
	}
	return resp.NotarizationInfo.Status, nil
}

// Wait polls Check every pollInterval until Apple reaches a terminal
// status, mirroring get_notarization_status's recursive retry.
func (n *Notarizer) Wait(ctx context.Context, uuid string) error {
	for {
		status, err := n.Check(ctx, uuid)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
			continue
		}

		switch status {
		case "success":
			return nil
		case "in progress":
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
		case "invalid":
			return fmt.Errorf("Apple failed to notarize the app (status: invalid)")
		default:
			return fmt.Errorf("unknown notarization status %q", status)
		}
	}
}

func (n *Notarizer) invoke(ctx context.Context, args []string) (string, error) {
	if n.fakeResponse != "" {
		return n.fakeResponse, nil
	}
	return n.runner.Run(ctx, "xcrun", args, bundlekit.RunOpts{})
}
