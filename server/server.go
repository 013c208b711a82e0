// server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/dalemusser/customform/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WithShutdownSignals returns a context that is canceled when the process
// receives SIGINT or SIGTERM. The returned cancel function also stops the
// signal handler.
func WithShutdownSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			if logger != nil {
				logger.Info("shutdown signal received", zap.Any("signal", sig))
			}
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// ListenAndServeWithContext serves handler over HTTP, or over HTTPS with the
// configured certificate pair, and blocks until ctx is canceled or a
// listener fails. With use_https and redirect_http set, http_port answers
// every request with a redirect to the HTTPS listener.
func ListenAndServeWithContext(ctx context.Context, cfg *config.CoreConfig, handler http.Handler, logger *zap.Logger) error {
	return listenAndServe(ctx, cfg, handler, logger, nil)
}

// listenAndServe is ListenAndServeWithContext with a hook that receives the
// bound primary address, used by tests that listen on port 0.
func listenAndServe(ctx context.Context, cfg *config.CoreConfig, handler http.Handler, logger *zap.Logger, bound func(net.Addr)) error {
	if cfg == nil {
		return errors.New("server: cfg is nil")
	}
	if handler == nil {
		return errors.New("server: handler is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := newHTTPServer(cfg, handler, logger)

	var (
		ln     net.Listener
		auxSrv *http.Server
		auxErr chan error // stays nil without an aux server, which disables its select case
		err    error
	)

	if !cfg.HTTP.UseHTTPS {
		addr := ":" + strconv.Itoa(cfg.HTTP.HTTPPort)
		if ln, err = net.Listen("tcp", addr); err != nil {
			return fmt.Errorf("listen http %s: %w", addr, err)
		}
		logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	} else {
		tlsCfg, err := manualTLS(cfg, logger)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsCfg

		addr := ":" + strconv.Itoa(cfg.HTTP.HTTPSPort)
		base, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen https %s: %w", addr, err)
		}
		ln = tls.NewListener(base, tlsCfg)
		logger.Info("HTTPS server listening",
			zap.String("addr", base.Addr().String()),
			zap.String("cert_file", cfg.TLS.CertFile))

		if cfg.TLS.RedirectHTTP {
			auxSrv = newHTTPServer(cfg, httpRedirectHandler(cfg.HTTP.HTTPSPort), logger)
			auxSrv.Addr = ":" + strconv.Itoa(cfg.HTTP.HTTPPort)
			auxErr = make(chan error, 1)
			go serve(auxErr, func() error { return auxSrv.ListenAndServe() })
			logger.Info("HTTP → HTTPS redirect server listening", zap.String("addr", auxSrv.Addr))
		}
	}

	if bound != nil {
		bound(ln.Addr())
	}
	serveErr := make(chan error, 1)
	go serve(serveErr, func() error { return srv.Serve(ln) })

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down server…")
			// ctx is already done; shutdown gets its own window.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			shutdownAux(shutdownCtx, auxSrv)
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = ln.Close()
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("server stopped gracefully")
			return nil

		case err := <-serveErr:
			shutdownAux(context.Background(), auxSrv)
			_ = ln.Close()
			if err != nil {
				return fmt.Errorf("primary server error: %w", err)
			}
			return nil

		case err := <-auxErr:
			if err != nil {
				_ = srv.Close()
				_ = ln.Close()
				return fmt.Errorf("redirect server error: %w", err)
			}
			auxSrv, auxErr = nil, nil
		}
	}
}

func newHTTPServer(cfg *config.CoreConfig, handler http.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	if stdlog, err := zap.NewStdLogAt(logger, zapcore.WarnLevel); err == nil {
		srv.ErrorLog = stdlog
	}
	return srv
}

// serve runs fn and reports its terminal error; a clean close reports nil.
func serve(ch chan<- error, fn func() error) {
	if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		ch <- err
		return
	}
	ch <- nil
}

func shutdownAux(ctx context.Context, auxSrv *http.Server) {
	if auxSrv != nil {
		_ = auxSrv.Shutdown(ctx)
	}
}

// manualTLS loads the configured certificate pair. Group- or world-readable
// key files are refused in prod and logged elsewhere.
func manualTLS(cfg *config.CoreConfig, logger *zap.Logger) (*tls.Config, error) {
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return nil, errors.New("server: use_https requires cert_file and key_file")
	}
	if err := validateTLSFiles(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
		var perm *keyPermissionError
		if !errors.As(err, &perm) {
			return nil, err
		}
		if cfg.Env == "prod" {
			return nil, fmt.Errorf("production security: %w", err)
		}
		logger.Warn("TLS key file security warning (would block in prod)", zap.Error(err))
	}

	reloader, err := newCertReloader(cfg.TLS.CertFile, cfg.TLS.KeyFile, logger)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: reloader.GetCertificate,
	}, nil
}

// httpRedirectHandler redirects every request to the HTTPS listener,
// keeping host and request URI. Hosts and URIs that could smuggle headers
// are refused.
func httpRedirectHandler(httpsPort int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isValidHost(r.Host) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		reqURI := r.URL.RequestURI()
		if !isValidRequestURI(reqURI) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
			if strings.Contains(host, ":") {
				host = "[" + host + "]"
			}
		}
		if httpsPort != 443 && httpsPort != 0 {
			host += ":" + strconv.Itoa(httpsPort)
		}
		http.Redirect(w, r, "https://"+host+reqURI, http.StatusMovedPermanently)
	})
}

func isValidRequestURI(uri string) bool {
	for _, c := range uri {
		if (c < 0x20 && c != '\t') || c == 0x7f {
			return false
		}
	}
	return true
}

// isValidHost reports whether a Host header is safe to echo into a
// Location header.
func isValidHost(host string) bool {
	if host == "" || strings.Contains(host, "://") || strings.HasPrefix(host, "/") {
		return false
	}

	hostPart := host
	if h, portStr, err := net.SplitHostPort(host); err == nil {
		hostPart = h
		if portStr != "" {
			port, perr := strconv.Atoi(portStr)
			if perr != nil || port <= 0 || port > 65535 {
				return false
			}
		}
		if strings.Contains(hostPart, ":") {
			hostPart = "[" + hostPart + "]"
		}
	}
	if hostPart == "" {
		return false
	}

	if strings.HasPrefix(hostPart, "[") && strings.HasSuffix(hostPart, "]") {
		ip := hostPart[1 : len(hostPart)-1]
		if i := strings.IndexByte(ip, '%'); i >= 0 {
			ip = ip[:i]
		}
		if net.ParseIP(ip) == nil {
			return false
		}
	}

	for _, c := range hostPart {
		if c <= 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}

// keyPermissionError reports a private key readable by group or others.
type keyPermissionError struct {
	path string
	perm os.FileMode
}

func (e *keyPermissionError) Error() string {
	return fmt.Sprintf("TLS key file %s has overly permissive permissions %o (recommended: 0600)", e.path, e.perm)
}

func validateTLSFiles(certFile, keyFile string) error {
	for _, f := range []struct{ kind, path string }{{"certificate", certFile}, {"key", keyFile}} {
		info, err := os.Stat(f.path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("TLS %s file does not exist: %s", f.kind, f.path)
			}
			return fmt.Errorf("cannot access TLS %s file %s: %w", f.kind, f.path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("TLS %s path is a directory, not a file: %s", f.kind, f.path)
		}
		// Unix permission bits mean nothing on Windows.
		if f.kind == "key" && runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
			return &keyPermissionError{path: f.path, perm: info.Mode().Perm()}
		}
	}
	return nil
}
