package macos

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"
)

func generateTestCertificate(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Test Developer ID"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}

func TestValidateCertificateAcceptsMatchingPassword(t *testing.T) {
	t.Parallel()

	key, cert := generateTestCertificate(t)
	pfx, err := pkcs12.Encode(rand.Reader, key, cert, nil, "correct-horse")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "certificate.p12")
	require.NoError(t, os.WriteFile(path, pfx, 0o600))

	require.NoError(t, ValidateCertificate(path, "correct-horse"))
}

func TestValidateCertificateRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	key, cert := generateTestCertificate(t)
	pfx, err := pkcs12.Encode(rand.Reader, key, cert, nil, "correct-horse")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "certificate.p12")
	require.NoError(t, os.WriteFile(path, pfx, 0o600))

	err = ValidateCertificate(path, "wrong-password")
	require.Error(t, err)
}
