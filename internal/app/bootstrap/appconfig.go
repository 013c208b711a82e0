package bootstrap

import (
	"time"

	"github.com/dalemusser/customform/config"
	"github.com/dalemusser/customform/configstore"
	"github.com/dalemusser/customform/loginlink"
	"github.com/dalemusser/customform/mailer"
	"github.com/dalemusser/customform/validation"
)

// AppConfig holds the service settings that sit beside the core config.
type AppConfig struct {
	Store configstore.Options

	SessionBackend string // memory | redis
	RedisAddr      string
	RedisPassword  string
	SessionSecure  bool

	UsersFile string

	LoginLink loginlink.Config
	SMTP      mailer.Config

	AdminAPIKey         string
	AllowedEmailDomains []string
	WSOrigins           []string

	// RateLimitRPS of 0 disables throttling.
	RateLimitRPS   int
	RateLimitBurst int

	// EnablePprof mounts /debug/pprof behind the admin key.
	EnablePprof bool
}

// appKeys are registered as flags, CUSTOMFORM_* env vars and config file
// keys.
var appKeys = []config.AppKey{
	{Name: "store_backend", Default: "memory", Desc: "Settings store: memory, redis, sqlite, mysql, postgres or mongo"},
	{Name: "store_dsn", Default: "", Desc: "Settings store connection string (file path for sqlite)", Secret: true},
	{Name: "session_backend", Default: "memory", Desc: "Session store: memory or redis"},
	{Name: "redis_addr", Default: "localhost:6379", Desc: "Redis address for sessions"},
	{Name: "redis_password", Default: "", Desc: "Redis password for sessions", Secret: true},
	{Name: "session_secure", Default: true, Desc: "Mark session cookies Secure"},
	{Name: "users_file", Default: "", Desc: "YAML file with the user directory"},
	{Name: "login_link_secret", Default: "", Desc: "HMAC secret for one-time login links", Secret: true},
	{Name: "login_link_ttl", Default: "24h", Desc: "Lifetime of one-time login links"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL used in login links"},
	{Name: "smtp_host", Default: "", Desc: "SMTP host; empty disables mailing links"},
	{Name: "smtp_port", Default: 587, Desc: "SMTP port"},
	{Name: "smtp_username", Default: "", Desc: "SMTP username"},
	{Name: "smtp_password", Default: "", Desc: "SMTP password", Secret: true},
	{Name: "smtp_from", Default: "", Desc: "From address for mailed links"},
	{Name: "smtp_from_name", Default: "customform", Desc: "From display name for mailed links"},
	{Name: "smtp_ssl", Default: false, Desc: "Use implicit TLS instead of STARTTLS"},
	{Name: "admin_api_key", Default: "", Desc: "Key for link generation and stored settings; empty disables them", Secret: true},
	{Name: "allowed_email_domains", Default: validation.AllowedEmailDomains.List(), Desc: "Email domains accepted by the forms"},
	{Name: "ws_origins", Default: []string{}, Desc: "Extra origins allowed to open the live validation socket"},
	{Name: "rate_limit_rps", Default: 10, Desc: "Requests per second per client on form, API and login link routes; 0 disables"},
	{Name: "rate_limit_burst", Default: 30, Desc: "Burst size for rate_limit_rps"},
	{Name: "enable_pprof", Default: false, Desc: "Serve /debug/pprof behind the admin key"},
}

func appConfigFrom(core *config.CoreConfig, v config.AppConfigValues) AppConfig {
	return AppConfig{
		Store: configstore.Options{
			Backend:        v.String("store_backend"),
			DSN:            v.String("store_dsn"),
			RedisPassword:  v.String("redis_password"),
			ConnectTimeout: core.DBConnectTimeout,
		},
		SessionBackend: v.String("session_backend"),
		RedisAddr:      v.String("redis_addr"),
		RedisPassword:  v.String("redis_password"),
		SessionSecure:  v.Bool("session_secure"),
		UsersFile:      v.String("users_file"),
		LoginLink: loginlink.Config{
			Secret:  []byte(v.String("login_link_secret")),
			BaseURL: v.String("base_url"),
			TTL:     v.Duration("login_link_ttl", loginlink.DefaultTTL),
		},
		SMTP: mailer.Config{
			Host:        v.String("smtp_host"),
			Port:        v.Int("smtp_port"),
			Username:    v.String("smtp_username"),
			Password:    v.String("smtp_password"),
			FromAddress: v.String("smtp_from"),
			FromName:    v.String("smtp_from_name"),
			UseSSL:      v.Bool("smtp_ssl"),
			Timeout:     30 * time.Second,
		},
		AdminAPIKey:         v.String("admin_api_key"),
		AllowedEmailDomains: v.StringSlice("allowed_email_domains"),
		WSOrigins:           v.StringSlice("ws_origins"),
		RateLimitRPS:        v.Int("rate_limit_rps"),
		RateLimitBurst:      v.Int("rate_limit_burst"),
		EnablePprof:         v.Bool("enable_pprof"),
	}
}
