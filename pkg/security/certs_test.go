package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// selfSignedCert writes a self-signed cert/key pair (signed by itself,
// acting as its own CA for test purposes) to dir and returns the DER
// bytes of the certificate.
func selfSignedCert(t *testing.T, dir, cn string, notAfter time.Time) (certPath, keyPath string, der []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		IsCA:         true,
	}

	der, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, cn+".crt")
	keyPath = filepath.Join(dir, cn+".key")

	require.NoError(t, os.WriteFile(certPath, PEMEncodeCert(der), 0o600))
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))

	return certPath, keyPath, der
}

func TestLoadServerCert(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath, _ := selfSignedCert(t, dir, "server", time.Now().Add(365*24*time.Hour))

	cert, err := LoadServerCert(certPath, keyPath)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	require.Equal(t, "server", cert.Leaf.Subject.CommonName)
}

func TestLoadClientCA(t *testing.T) {
	dir := t.TempDir()
	certPath, _, _ := selfSignedCert(t, dir, "ca", time.Now().Add(365*24*time.Hour))

	pool, err := LoadClientCA(certPath)
	require.NoError(t, err)
	require.NotNil(t, pool)
}

func TestServerTLSConfigRejectsNearExpiry(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath, _ := selfSignedCert(t, dir, "server", time.Now().Add(time.Hour))
	caPath, _, _ := selfSignedCert(t, dir, "ca", time.Now().Add(365*24*time.Hour))

	_, err := ServerTLSConfig(certPath, keyPath, caPath)
	require.Error(t, err)
}

func TestServerTLSConfigAcceptsFreshCert(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath, _ := selfSignedCert(t, dir, "server", time.Now().Add(365*24*time.Hour))
	caPath, _, _ := selfSignedCert(t, dir, "ca", time.Now().Add(365*24*time.Hour))

	cfg, err := ServerTLSConfig(certPath, keyPath, caPath)
	require.NoError(t, err)
	require.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)
}

func TestClientCNExtractsCommonName(t *testing.T) {
	dir := t.TempDir()
	_, _, der := selfSignedCert(t, dir, "operator-alice", time.Now().Add(365*24*time.Hour))

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	cn, err := ClientCN([][]*x509.Certificate{{cert}})
	require.NoError(t, err)
	require.Equal(t, "operator-alice", cn)
}

func TestClientCNRejectsEmptyChain(t *testing.T) {
	_, err := ClientCN(nil)
	require.Error(t, err)
}

func TestCertNeedsRotation(t *testing.T) {
	soon := &x509.Certificate{NotAfter: time.Now().Add(time.Hour)}
	require.True(t, CertNeedsRotation(soon))

	later := &x509.Certificate{NotAfter: time.Now().Add(365 * 24 * time.Hour)}
	require.False(t, CertNeedsRotation(later))

	require.True(t, CertNeedsRotation(nil))
}
