package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/procmgr/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	c, err := Setup(config.TLSConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSetupAutoGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tls")
	c, err := Setup(config.TLSConfig{Enabled: true, Dir: dir, AutoGenerate: true, MinVersion: "1.3"})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, uint16(tls.VersionTLS13), c.MinVersion)

	cert, err := c.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "localhost", leaf.Subject.CommonName)
	assert.Contains(t, leaf.DNSNames, "localhost")

	caPEM, err := os.ReadFile(CACertPath(dir))
	require.NoError(t, err)
	block, _ := pem.Decode(caPEM)
	require.NotNil(t, block)
	assert.Equal(t, cert.Certificate[0], block.Bytes)

	info, err := os.Stat(filepath.Join(dir, tlsKey))
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	// An existing pair is reused rather than regenerated.
	before, err := os.ReadFile(filepath.Join(dir, tlsCrt))
	require.NoError(t, err)
	_, err = Setup(config.TLSConfig{Enabled: true, Dir: dir, AutoGenerate: true})
	require.NoError(t, err)
	after, err := os.ReadFile(filepath.Join(dir, tlsCrt))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetupExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCertificate(dir))

	c, err := Setup(config.TLSConfig{Enabled: true, CertFile: filepath.Join(dir, tlsCrt), KeyFile: filepath.Join(dir, tlsKey)})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), c.MinVersion)
	_, err = c.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
}

func TestSetupErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Setup(config.TLSConfig{Enabled: true})
	assert.Error(t, err)

	_, err = Setup(config.TLSConfig{Enabled: true, Dir: dir})
	assert.Error(t, err, "missing pair without auto_generate")

	_, err = Setup(config.TLSConfig{Enabled: true, CertFile: filepath.Join(dir, "a.crt"), KeyFile: filepath.Join(dir, "a.key")})
	assert.Error(t, err)

	_, err = Setup(config.TLSConfig{Enabled: true, Dir: dir, AutoGenerate: true, MinVersion: "1.0"})
	assert.Error(t, err)
}

func TestSafeReadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))

	b, err := safeReadFile(dir, p)
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))

	_, err = safeReadFile(dir, filepath.Join(dir, "..", "elsewhere"))
	assert.Error(t, err)
}
