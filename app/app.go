// app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/customform/config"
	"github.com/dalemusser/customform/logging"
	"github.com/dalemusser/customform/metrics"
	"github.com/dalemusser/customform/server"
	"github.com/dalemusser/customform/version"
	"go.uber.org/zap"
)

// Hooks are the steps a service plugs into Run. C is the service's own
// config and D whatever bundle of backends ConnectDB returns.
type Hooks[C any, D any] struct {
	// Name is used only in log lines.
	Name string

	// LoadConfig returns the core and service config. The logger is the
	// bootstrap logger.
	LoadConfig func(logger *zap.Logger) (*config.CoreConfig, C, error)

	// ConnectDB opens the backends. ctx carries db_connect_timeout.
	ConnectDB func(ctx context.Context, core *config.CoreConfig, appCfg C, logger *zap.Logger) (D, error)

	// EnsureSchema is optional.
	EnsureSchema func(ctx context.Context, core *config.CoreConfig, appCfg C, db D, logger *zap.Logger) error

	// BuildHandler returns the root handler with all routes mounted.
	BuildHandler func(core *config.CoreConfig, appCfg C, db D, logger *zap.Logger) (http.Handler, error)

	// Shutdown is optional and runs after the server has stopped.
	Shutdown func(ctx context.Context, db D, logger *zap.Logger) error

	// Logger, when set, replaces the logger built from core config.
	Logger *zap.Logger
}

// Run loads config, builds the logger, connects backends, builds the
// handler and serves until ctx is canceled or SIGINT/SIGTERM arrives.
func Run[C any, D any](ctx context.Context, hooks Hooks[C, D]) error {
	if hooks.LoadConfig == nil || hooks.ConnectDB == nil || hooks.BuildHandler == nil {
		return errors.New("app: LoadConfig, ConnectDB and BuildHandler are required")
	}

	bootstrap := logging.BootstrapLogger()
	defer func() { _ = bootstrap.Sync() }()

	coreCfg, appCfg, err := hooks.LoadConfig(bootstrap)
	if err != nil {
		bootstrap.Error("config load failed", zap.Error(err))
		return fmt.Errorf("load config: %w", err)
	}
	bootstrap.Info("config loaded",
		zap.String("app", hooks.Name),
		zap.String("env", coreCfg.Env),
		zap.String("log_level", coreCfg.LogLevel),
	)

	logger := hooks.Logger
	if logger == nil {
		if logger, err = logging.BuildLogger(coreCfg.LogLevel, coreCfg.Env); err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}
	logger = logger.With(zap.String("app", hooks.Name))
	logger.Info("starting", zap.String("version", version.String()))

	metrics.RegisterDefault(logger)

	connectCtx, cancelConnect := context.WithTimeout(ctx, coreCfg.DBConnectTimeout)
	db, err := hooks.ConnectDB(connectCtx, coreCfg, appCfg, logger)
	cancelConnect()
	if err != nil {
		logger.Error("backend connect failed", zap.Error(err))
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if hooks.Shutdown == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), coreCfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := hooks.Shutdown(shutdownCtx, db, logger); err != nil {
			logger.Warn("backend shutdown failed", zap.Error(err))
		}
	}()

	if hooks.EnsureSchema != nil {
		schemaCtx, cancel := context.WithTimeout(ctx, coreCfg.DBConnectTimeout)
		err := hooks.EnsureSchema(schemaCtx, coreCfg, appCfg, db, logger)
		cancel()
		if err != nil {
			logger.Error("schema ensure failed", zap.Error(err))
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	handler, err := hooks.BuildHandler(coreCfg, appCfg, db, logger)
	if err != nil {
		logger.Error("handler build failed", zap.Error(err))
		return fmt.Errorf("build handler: %w", err)
	}

	if err := server.ListenAndServeWithContext(ctx, coreCfg, handler, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
