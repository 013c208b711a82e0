// server/certreloader.go
package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// certCheckInterval bounds how often the pair's modification times are
// looked at during handshakes.
const certCheckInterval = 30 * time.Second

// certReloader serves a certificate pair from disk and picks up a renewed
// pair without a restart. A pair that fails to load keeps the previous one.
type certReloader struct {
	certFile, keyFile string
	logger            *zap.Logger
	now               func() time.Time

	mu        sync.RWMutex
	cert      *tls.Certificate
	modTime   time.Time
	checkedAt time.Time
}

func newCertReloader(certFile, keyFile string, logger *zap.Logger) (*certReloader, error) {
	r := &certReloader{certFile: certFile, keyFile: keyFile, logger: logger, now: time.Now}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// load reads the pair and records its leaf expiry.
func (r *certReloader) load() error {
	mod, err := r.latestModTime()
	if err != nil {
		return err
	}
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load TLS key pair: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = leaf
		}
	}

	r.mu.Lock()
	r.cert = &cert
	r.modTime = mod
	r.checkedAt = r.now()
	r.mu.Unlock()

	if cert.Leaf != nil {
		r.logger.Info("TLS certificate loaded",
			zap.String("cert_file", r.certFile),
			zap.Strings("dns_names", cert.Leaf.DNSNames),
			zap.Time("not_after", cert.Leaf.NotAfter))
	}
	return nil
}

func (r *certReloader) latestModTime() (time.Time, error) {
	var latest time.Time
	for _, p := range []string{r.certFile, r.keyFile} {
		info, err := os.Stat(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, nil
}

// maybeReload reloads the pair when either file changed since the last load.
func (r *certReloader) maybeReload() {
	r.mu.RLock()
	due := r.now().Sub(r.checkedAt) >= certCheckInterval
	loaded := r.modTime
	r.mu.RUnlock()
	if !due {
		return
	}

	mod, err := r.latestModTime()
	r.mu.Lock()
	r.checkedAt = r.now()
	r.mu.Unlock()
	if err != nil {
		r.logger.Warn("TLS certificate check failed", zap.Error(err))
		return
	}
	if !mod.After(loaded) {
		return
	}
	if err := r.load(); err != nil {
		r.logger.Error("TLS certificate reload failed, keeping previous", zap.Error(err))
	}
}

// GetCertificate is used as tls.Config.GetCertificate.
func (r *certReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.maybeReload()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}
