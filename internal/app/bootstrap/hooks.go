package bootstrap

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dalemusser/customform/accounts"
	"github.com/dalemusser/customform/app"
	"github.com/dalemusser/customform/auth/apikey"
	"github.com/dalemusser/customform/config"
	"github.com/dalemusser/customform/configstore"
	"github.com/dalemusser/customform/forms"
	"github.com/dalemusser/customform/handlers"
	"github.com/dalemusser/customform/health"
	"github.com/dalemusser/customform/httputil"
	"github.com/dalemusser/customform/loginlink"
	"github.com/dalemusser/customform/mailer"
	"github.com/dalemusser/customform/metrics"
	"github.com/dalemusser/customform/middleware"
	"github.com/dalemusser/customform/profiling"
	"github.com/dalemusser/customform/router"
	"github.com/dalemusser/customform/session"
	"github.com/dalemusser/customform/validation"
	"github.com/dalemusser/customform/version"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoadConfig loads core config and the service keys.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, values, err := config.Load(logger, appKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}
	appCfg := appConfigFrom(coreCfg, values)
	if err := validateAppConfig(coreCfg, &appCfg, logger); err != nil {
		return nil, AppConfig{}, err
	}
	return coreCfg, appCfg, nil
}

func validateAppConfig(core *config.CoreConfig, c *AppConfig, logger *zap.Logger) error {
	var problems []string

	if b := strings.ToLower(strings.TrimSpace(c.Store.Backend)); b != "" && !slices.Contains(configstore.Backends, b) {
		problems = append(problems, fmt.Sprintf("store_backend must be one of %s", strings.Join(configstore.Backends, ", ")))
	} else if b != "" && b != "memory" && strings.TrimSpace(c.Store.DSN) == "" {
		problems = append(problems, "store_dsn is required for store_backend="+b)
	}

	switch c.SessionBackend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			problems = append(problems, "redis_addr is required for session_backend=redis")
		}
	default:
		problems = append(problems, `session_backend must be "memory" or "redis"`)
	}

	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		problems = append(problems, "rate_limit_rps and rate_limit_burst must be >= 0")
	}
	if c.EnablePprof && c.AdminAPIKey == "" {
		problems = append(problems, "enable_pprof requires admin_api_key")
	}
	if len(c.AllowedEmailDomains) == 0 {
		problems = append(problems, "allowed_email_domains must list at least one domain")
	}
	if c.SMTP.Host != "" && c.SMTP.FromAddress == "" {
		problems = append(problems, "smtp_from is required when smtp_host is set")
	}

	if len(c.LoginLink.Secret) == 0 {
		if core.Env == "prod" {
			problems = append(problems, "login_link_secret is required in prod")
		} else {
			secret := make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return fmt.Errorf("generate login link secret: %w", err)
			}
			c.LoginLink.Secret = secret
			logger.Warn("login_link_secret not set; using a per-process secret, links die on restart")
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// ConnectDB opens the settings store, the session store and the user
// directory.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	var deps DBDeps

	users := accounts.NewMemoryDirectory(accounts.User{ID: 1, Name: "admin", Status: accounts.StatusActive})
	if appCfg.UsersFile != "" {
		loaded, err := accounts.LoadYAMLFile(appCfg.UsersFile)
		if err != nil {
			return deps, err
		}
		users = loaded
	}
	deps.Users = users
	logger.Info("user directory loaded", zap.Int("users", users.Len()), zap.String("file", appCfg.UsersFile))

	store, err := configstore.Open(ctx, appCfg.Store)
	if err != nil {
		return deps, err
	}
	deps.Store = store
	logger.Info("settings store connected", zap.String("backend", appCfg.Store.Backend))

	if appCfg.SessionBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: appCfg.RedisAddr, Password: appCfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = store.Close()
			return DBDeps{}, fmt.Errorf("session redis ping: %w", err)
		}
		deps.redis = client
		deps.Sessions = session.NewRedisStore(client)
		logger.Info("session store connected", zap.String("backend", "redis"), zap.String("addr", appCfg.RedisAddr))
	} else {
		deps.Sessions = session.NewMemoryStore(0)
	}
	return deps, nil
}

// EnsureSchema checks the settings store answers; SQL and Mongo backends
// create their tables and indexes while connecting.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := deps.Store.Ping(ctx); err != nil {
		return fmt.Errorf("settings store: %w", err)
	}
	return nil
}

// BuildHandler constructs the HTTP handler for the service.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	httputil.SetLogger(logger)

	svc := forms.NewService(deps.Store, logger,
		forms.WithDomains(validation.NewDomainSet(appCfg.AllowedEmailDomains...)))

	links, err := loginlink.New(appCfg.LoginLink, deps.Users, logger)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(deps.Sessions, session.Config{Secure: appCfg.SessionSecure})

	hd := handlers.Deps{
		Forms:         svc,
		Links:         links,
		Users:         deps.Users,
		Sessions:      sessions,
		AdminKey:      appCfg.AdminAPIKey,
		SecureCookies: appCfg.SessionSecure,
		WSOrigins:     appCfg.WSOrigins,
		Logger:        logger,
	}
	if appCfg.RateLimitRPS > 0 {
		hd.Limiter = middleware.NewRateLimiter(float64(appCfg.RateLimitRPS), appCfg.RateLimitBurst, time.Hour)
	}
	if appCfg.SMTP.Enabled() {
		hd.Mailer = mailer.New(appCfg.SMTP, logger)
	}
	h, err := handlers.New(hd)
	if err != nil {
		return nil, err
	}

	r := router.New(coreCfg, logger)

	checks := map[string]health.Check{"store": deps.Store.Ping}
	if deps.redis != nil {
		client := deps.redis
		checks["sessions"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	health.Mount(r, checks, logger)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	version.Mount(r)
	if appCfg.EnablePprof {
		r.Group(func(r chi.Router) {
			r.Use(apikey.Require(appCfg.AdminAPIKey, apikey.Options{CookieName: "customform_admin", CookieSecure: appCfg.SessionSecure}, logger))
			profiling.Mount(r)
		})
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/forms/"+forms.StandardFormID, http.StatusFound)
	})
	h.Routes(r)

	return r, nil
}

// Shutdown closes the backends once the server has drained.
func Shutdown(ctx context.Context, deps DBDeps, logger *zap.Logger) error {
	var errs []error
	if deps.Sessions != nil {
		errs = append(errs, deps.Sessions.Close())
	}
	if deps.redis != nil {
		errs = append(errs, deps.redis.Close())
	}
	if deps.Store != nil {
		errs = append(errs, deps.Store.Close())
	}
	return errors.Join(errs...)
}

// Hooks wires the service into the app lifecycle.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:         "customform",
	LoadConfig:   LoadConfig,
	ConnectDB:    ConnectDB,
	EnsureSchema: EnsureSchema,
	BuildHandler: BuildHandler,
	Shutdown:     Shutdown,
}
