package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dalemusser/customform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsValidHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"example.com", true},
		{"example.com:8080", true},
		{"[::1]:8080", true},
		{"[fe80::1%25eth0]:80", true},
		{"", false},
		{"http://evil.com", false},
		{"/evil", false},
		{"example.com:0", false},
		{"example.com:70000", false},
		{"exa mple.com", false},
		{"[zz::1]", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isValidHost(tt.host), tt.host)
	}
}

func TestHTTPRedirectHandler(t *testing.T) {
	tests := []struct {
		port       int
		host, path string
		want       string
	}{
		{443, "example.com", "/forms/custom_form_config?x=1", "https://example.com/forms/custom_form_config?x=1"},
		{443, "example.com:80", "/hello", "https://example.com/hello"},
		{8443, "example.com:8080", "/hello", "https://example.com:8443/hello"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Host = tt.host
		rec := httptest.NewRecorder()
		httpRedirectHandler(tt.port).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMovedPermanently, rec.Code)
		assert.Equal(t, tt.want, rec.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Host = "http://evil.com"
	rec := httptest.NewRecorder()
	httpRedirectHandler(443).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func testConfig() *config.CoreConfig {
	return &config.CoreConfig{
		Env: "dev",
		HTTP: config.HTTPConfig{
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
	}
}

func TestListenAndServe_HTTPShutdown(t *testing.T) {
	cfg := testConfig()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- listenAndServe(ctx, cfg, handler, zap.NewNop(), func(a net.Addr) { addrCh <- a })
	}()

	addr := <-addrCh
	resp, err := http.Get("http://" + loopback(addr) + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenAndServe_RequiresCertPair(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.UseHTTPS = true
	err := ListenAndServeWithContext(context.Background(), cfg, http.NotFoundHandler(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cert_file")

	assert.Error(t, ListenAndServeWithContext(context.Background(), nil, http.NotFoundHandler(), nil))
}

func TestListenAndServe_HTTPS(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "localhost")

	cfg := testConfig()
	cfg.HTTP.UseHTTPS = true
	cfg.TLS.CertFile = certFile
	cfg.TLS.KeyFile = keyFile

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- listenAndServe(ctx, cfg, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), zap.NewNop(), func(a net.Addr) { addrCh <- a })
	}()

	addr := <-addrCh
	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}}
	resp, err := client.Get("https://" + loopback(addr) + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)
}

func TestValidateTLSFiles(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "localhost")

	assert.NoError(t, validateTLSFiles(certFile, keyFile))
	assert.Error(t, validateTLSFiles(filepath.Join(dir, "missing.pem"), keyFile))
	assert.Error(t, validateTLSFiles(dir, keyFile))

	require.NoError(t, os.Chmod(keyFile, 0o644))
	err := validateTLSFiles(certFile, keyFile)
	var perm *keyPermissionError
	if assert.ErrorAs(t, err, &perm) {
		assert.Equal(t, keyFile, perm.path)
	}
}

func TestCertReloader(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "old.example.com")

	r, err := newCertReloader(certFile, keyFile, zap.NewNop())
	require.NoError(t, err)
	now := time.Now()
	r.now = func() time.Time { return now }

	cert, err := r.GetCertificate(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.example.com"}, cert.Leaf.DNSNames)

	writeCert(t, dir, "new.example.com")
	later := now.Add(time.Hour)
	require.NoError(t, os.Chtimes(certFile, later, later))

	// Not yet due for a check.
	cert, _ = r.GetCertificate(nil)
	assert.Equal(t, []string{"old.example.com"}, cert.Leaf.DNSNames)

	now = now.Add(certCheckInterval)
	cert, _ = r.GetCertificate(nil)
	assert.Equal(t, []string{"new.example.com"}, cert.Leaf.DNSNames)

	// A broken pair keeps the loaded one.
	require.NoError(t, os.WriteFile(certFile, []byte("garbage"), 0o600))
	evenLater := later.Add(time.Hour)
	require.NoError(t, os.Chtimes(certFile, evenLater, evenLater))
	now = now.Add(certCheckInterval)
	cert, _ = r.GetCertificate(nil)
	assert.Equal(t, []string{"new.example.com"}, cert.Leaf.DNSNames)
}

func loopback(a net.Addr) string {
	_, port, _ := net.SplitHostPort(a.String())
	return net.JoinHostPort("127.0.0.1", port)
}

// writeCert writes a self-signed pair for name into dir and returns the
// file paths.
func writeCert(t *testing.T, dir, name string) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: name},
		DNSNames:     []string{name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}
