package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/customform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type appCfg struct{ greeting string }

type backends struct{ closed bool }

func coreConfig() *config.CoreConfig {
	return &config.CoreConfig{
		Env:              "dev",
		LogLevel:         "info",
		DBConnectTimeout: time.Second,
		HTTP:             config.HTTPConfig{ShutdownTimeout: time.Second},
	}
}

func TestRun_Lifecycle(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var steps []string
	db := &backends{}

	ctx, cancel := context.WithCancel(context.Background())
	hooks := Hooks[appCfg, *backends]{
		Name:   "customform-test",
		Logger: zap.New(core),
		LoadConfig: func(*zap.Logger) (*config.CoreConfig, appCfg, error) {
			steps = append(steps, "config")
			return coreConfig(), appCfg{greeting: "Hello"}, nil
		},
		ConnectDB: func(ctx context.Context, _ *config.CoreConfig, c appCfg, _ *zap.Logger) (*backends, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			assert.Equal(t, "Hello", c.greeting)
			steps = append(steps, "connect")
			return db, nil
		},
		EnsureSchema: func(context.Context, *config.CoreConfig, appCfg, *backends, *zap.Logger) error {
			steps = append(steps, "schema")
			return nil
		},
		BuildHandler: func(*config.CoreConfig, appCfg, *backends, *zap.Logger) (http.Handler, error) {
			steps = append(steps, "handler")
			// Stop as soon as the server is about to start.
			cancel()
			return http.NotFoundHandler(), nil
		},
		Shutdown: func(_ context.Context, b *backends, _ *zap.Logger) error {
			steps = append(steps, "shutdown")
			b.closed = true
			return nil
		},
	}

	require.NoError(t, Run(ctx, hooks))
	assert.Equal(t, []string{"config", "connect", "schema", "handler", "shutdown"}, steps)
	assert.True(t, db.closed)
	assert.Equal(t, 1, logs.FilterMessage("server stopped").Len())
}

func TestRun_StepErrors(t *testing.T) {
	boom := errors.New("boom")
	base := func() Hooks[appCfg, *backends] {
		return Hooks[appCfg, *backends]{
			Logger: zap.NewNop(),
			LoadConfig: func(*zap.Logger) (*config.CoreConfig, appCfg, error) {
				return coreConfig(), appCfg{}, nil
			},
			ConnectDB: func(context.Context, *config.CoreConfig, appCfg, *zap.Logger) (*backends, error) {
				return &backends{}, nil
			},
			BuildHandler: func(*config.CoreConfig, appCfg, *backends, *zap.Logger) (http.Handler, error) {
				return nil, boom
			},
		}
	}

	h := base()
	err := Run(context.Background(), h)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "build handler")

	h = base()
	h.ConnectDB = func(context.Context, *config.CoreConfig, appCfg, *zap.Logger) (*backends, error) {
		return nil, boom
	}
	err = Run(context.Background(), h)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "connect")

	h = base()
	h.LoadConfig = func(*zap.Logger) (*config.CoreConfig, appCfg, error) { return nil, appCfg{}, boom }
	assert.ErrorIs(t, Run(context.Background(), h), boom)

	h = base()
	h.EnsureSchema = func(context.Context, *config.CoreConfig, appCfg, *backends, *zap.Logger) error { return boom }
	assert.ErrorIs(t, Run(context.Background(), h), boom)

	assert.Error(t, Run(context.Background(), Hooks[appCfg, *backends]{}))
}
