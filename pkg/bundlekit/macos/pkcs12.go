package macos

import (
	"os"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/crateforge/bundler/pkg/bundle"
)

// ValidateCertificate decodes a decoded-from-base64 PKCS#12 blob with
// its password before handing it to `security import`, so a bad
// password or corrupt certificate fails fast with a typed Signing error
// instead of surfacing only as opaque `security` stderr.
func ValidateCertificate(certPath, password string) error {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return bundle.NewIOError("read", certPath, err)
	}
	if _, _, err := pkcs12.Decode(data, password); err != nil {
		return &bundle.Error{Kind: bundle.KindSigning, Op: "decode signing certificate", Path: certPath, Err: err}
	}
	return nil
}
