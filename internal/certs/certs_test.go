package certs

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return x509Cert
}

func TestFileManager_GetOrCreateCertificate(t *testing.T) {
	tests := []struct {
		setup    func(t *testing.T, certDir string)
		validate func(t *testing.T, certDir string, cert *x509.Certificate)
		name     string
	}{
		{
			name:  "creates new certificate when none exists",
			setup: func(_ *testing.T, _ string) {},
			validate: func(t *testing.T, _ string, cert *x509.Certificate) {
				t.Helper()
				assert.Equal(t, "whereabouts", cert.Subject.Organization[0])
				assert.Contains(t, cert.DNSNames, "localhost")
				assert.True(t, cert.NotAfter.After(time.Now().Add(364*24*time.Hour)))
				assert.NoError(t, cert.VerifyHostname("127.0.0.1"))
			},
		},
		{
			name: "reuses existing valid certificate",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				_, err := NewFileManager(certDir).GetOrCreateCertificate()
				require.NoError(t, err)
				// Remember the serial for comparison.
				data, err := os.ReadFile(filepath.Join(certDir, "whereabouts.crt"))
				require.NoError(t, err)
				require.NoError(t, os.WriteFile(filepath.Join(certDir, "serial"), data, 0600))
			},
			validate: func(t *testing.T, certDir string, _ *x509.Certificate) {
				t.Helper()
				before, err := os.ReadFile(filepath.Join(certDir, "serial"))
				require.NoError(t, err)
				after, err := os.ReadFile(filepath.Join(certDir, "whereabouts.crt"))
				require.NoError(t, err)
				assert.Equal(t, before, after)
			},
		},
		{
			name: "regenerates unreadable certificate",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				require.NoError(t, os.MkdirAll(certDir, 0700))
				require.NoError(t, os.WriteFile(filepath.Join(certDir, "whereabouts.crt"), []byte("garbage"), 0600))
				require.NoError(t, os.WriteFile(filepath.Join(certDir, "whereabouts.key"), []byte("garbage"), 0600))
			},
			validate: func(t *testing.T, _ string, cert *x509.Certificate) {
				t.Helper()
				assert.NoError(t, cert.VerifyHostname("localhost"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certDir := filepath.Join(t.TempDir(), "certs")
			tt.setup(t, certDir)

			cert, err := NewFileManager(certDir).GetOrCreateCertificate()
			require.NoError(t, err)
			tt.validate(t, certDir, leaf(t, cert))
		})
	}
}

func TestFileManager_ExtraHosts(t *testing.T) {
	certDir := t.TempDir()

	cert, err := NewFileManager(certDir, "phone-bridge.lan", "192.168.1.20").GetOrCreateCertificate()
	require.NoError(t, err)

	x509Cert := leaf(t, cert)
	assert.Contains(t, x509Cert.DNSNames, "phone-bridge.lan")
	assert.True(t, containsIP(x509Cert.IPAddresses, net.ParseIP("192.168.1.20")))
}

func TestFileManager_RegeneratesWhenHostsChange(t *testing.T) {
	certDir := t.TempDir()

	_, err := NewFileManager(certDir).GetOrCreateCertificate()
	require.NoError(t, err)

	cert, err := NewFileManager(certDir, "bridge.lan").GetOrCreateCertificate()
	require.NoError(t, err)
	assert.Contains(t, leaf(t, cert).DNSNames, "bridge.lan")
}

func TestFileManager_RenewsNearExpiry(t *testing.T) {
	certDir := t.TempDir()
	m := NewFileManager(certDir)

	first, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(Validity - 24*time.Hour) }
	second, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	assert.NotEqual(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
}

func TestFileManager_CertificateExists(t *testing.T) {
	certDir := t.TempDir()
	m := NewFileManager(certDir)

	exists, err := m.CertificateExists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(filepath.Join(certDir, "whereabouts.crt"), []byte("x"), 0600))
	exists, err = m.CertificateExists()
	require.NoError(t, err)
	assert.False(t, exists, "key file is still missing")

	require.NoError(t, os.WriteFile(filepath.Join(certDir, "whereabouts.key"), []byte("x"), 0600))
	exists, err = m.CertificateExists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileManager_TLSConfig(t *testing.T) {
	cfg, err := NewFileManager(t.TempDir()).TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func containsIP(ips []net.IP, want net.IP) bool {
	for _, ip := range ips {
		if ip.Equal(want) {
			return true
		}
	}
	return false
}
