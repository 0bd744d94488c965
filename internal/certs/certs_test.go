package certs

import (
	"crypto/tls"
	"crypto/x509"
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
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestFileManager_GetOrCreateCertificate(t *testing.T) {
	tests := []struct {
		setup     func(t *testing.T, m *FileManager)
		name      string
		hosts     []string
		wantReuse bool
	}{
		{
			name:  "creates certificate when none exists",
			setup: func(_ *testing.T, _ *FileManager) {},
		},
		{
			name: "reuses a valid certificate",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				_, err := m.GetOrCreateCertificate()
				require.NoError(t, err)
			},
			wantReuse: true,
		},
		{
			name: "replaces garbage files",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				require.NoError(t, os.MkdirAll(m.certDir, 0o700))
				require.NoError(t, os.WriteFile(m.certFile, []byte("not a cert"), 0o600))
				require.NoError(t, os.WriteFile(m.keyFile, []byte("not a key"), 0o600))
			},
		},
		{
			name:  "covers extra hosts",
			hosts: []string{"bankrules.lan", "10.0.0.5"},
			setup: func(_ *testing.T, _ *FileManager) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "certs")
			m := NewFileManager(dir, tt.hosts...)
			tt.setup(t, m)

			var before []byte
			if tt.wantReuse {
				var err error
				before, err = os.ReadFile(m.certFile)
				require.NoError(t, err)
			}

			cert, err := m.GetOrCreateCertificate()
			require.NoError(t, err)

			x509Cert := leaf(t, cert)
			assert.Equal(t, "bankrules", x509Cert.Subject.Organization[0])
			assert.NoError(t, x509Cert.VerifyHostname("localhost"))
			assert.NoError(t, x509Cert.VerifyHostname("127.0.0.1"))
			for _, h := range tt.hosts {
				assert.NoError(t, x509Cert.VerifyHostname(h))
			}

			if tt.wantReuse {
				after, readErr := os.ReadFile(m.certFile)
				require.NoError(t, readErr)
				assert.Equal(t, before, after)
			}

			info, err := os.Stat(m.keyFile)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		})
	}
}

func TestFileManager_RenewsNearExpiry(t *testing.T) {
	dir := t.TempDir()
	m := NewFileManager(dir)
	first, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(validFor - 24*time.Hour) }
	second, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	assert.NotEqual(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
}

func TestFileManager_NewHostForcesNewCertificate(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileManager(dir).GetOrCreateCertificate()
	require.NoError(t, err)

	cert, err := NewFileManager(dir, "bankrules.lan").GetOrCreateCertificate()
	require.NoError(t, err)
	assert.NoError(t, leaf(t, cert).VerifyHostname("bankrules.lan"))
}

func TestTLSConfig(t *testing.T) {
	cert, err := NewFileManager(t.TempDir()).GetOrCreateCertificate()
	require.NoError(t, err)

	cfg := TLSConfig(cert)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}
