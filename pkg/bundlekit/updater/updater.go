// Package updater implements the auto-update artifact variant from
// spec.md §4.9: after a platform builder produces its primary artifact,
// the same artifact is additionally signed with the updater's own
// asymmetric key (separate from OS code signing) using the ed25519-based
// Tauri updater signature format, with the signature written alongside
// the artifact as a ".sig" file.
package updater

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/theupdateframework/notary/tuf/data"

	"github.com/crateforge/bundler/pkg/bundle"
)

// KeyPair is an updater signing identity: an ed25519 private key plus its
// derived public key, the pair §4.9 calls "the updater's own asymmetric
// key".
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair produces a fresh ed25519 updater signing identity.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, &bundle.Error{Kind: bundle.KindIO, Op: "generate updater key pair", Err: err}
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// KeyPairFromPrivateKey reconstructs a KeyPair from a raw 64-byte
// ed25519 private key (ed25519.PrivateKey's own seed+public-key
// encoding), the format a key saved via os.WriteFile(path,
// []byte(keys.Private), ...) round-trips through.
func KeyPairFromPrivateKey(raw []byte) (*KeyPair, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, &bundle.Error{
			Kind: bundle.KindConfiguration,
			Op:   "load updater private key",
			Err:  fmt.Errorf("expected %d raw bytes, got %d", ed25519.PrivateKeySize, len(raw)),
		}
	}
	priv := ed25519.PrivateKey(raw)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, &bundle.Error{Kind: bundle.KindConfiguration, Op: "load updater private key", Err: fmt.Errorf("derive public key")}
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// PublicKeyMetadata wraps the raw ed25519 public key bytes in the same
// typed, TUF-flavored envelope (algorithm name plus key ID) the
// notary/tuf/data package gives every root/targets key, rather than
// publishing the bare key bytes with no algorithm tag.
func (k *KeyPair) PublicKeyMetadata() data.PublicKey {
	return data.NewPublicKey(data.ED25519Key, []byte(k.Public))
}

// PublicKeyMetadataJSON renders PublicKeyMetadata as the JSON document
// the project configuration's updater.pubkey field stores.
func (k *KeyPair) PublicKeyMetadataJSON() ([]byte, error) {
	out, err := json.Marshal(k.PublicKeyMetadata())
	if err != nil {
		return nil, fmt.Errorf("marshal updater public key metadata: %w", err)
	}
	return out, nil
}

// SignArtifact signs artifactPath's bytes with the updater key and writes
// the base64-encoded ed25519 signature to artifactPath+".sig", returning
// the signature file's path.
func SignArtifact(artifactPath string, keys *KeyPair) (string, error) {
	contents, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", bundle.NewIOError("read", artifactPath, err)
	}

	sig := ed25519.Sign(keys.Private, contents)
	encoded := base64.StdEncoding.EncodeToString(sig)

	sigPath := artifactPath + ".sig"
	if err := os.WriteFile(sigPath, []byte(encoded), 0o644); err != nil {
		return "", bundle.NewIOError("write", sigPath, err)
	}
	return sigPath, nil
}

// VerifyArtifact checks a previously-written .sig file against
// artifactPath's current bytes, for test round-tripping and for the
// updater client-side verification step §4.9 implies but leaves to the
// runtime updater (out of this bundler's scope to re-implement).
func VerifyArtifact(artifactPath, sigPath string, public ed25519.PublicKey) (bool, error) {
	contents, err := os.ReadFile(artifactPath)
	if err != nil {
		return false, bundle.NewIOError("read", artifactPath, err)
	}
	encoded, err := os.ReadFile(sigPath)
	if err != nil {
		return false, bundle.NewIOError("read", sigPath, err)
	}
	sig, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return false, fmt.Errorf("decode signature: %w", err)
	}
	return ed25519.Verify(public, contents, sig), nil
}
