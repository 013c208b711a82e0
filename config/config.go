// config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment variable, e.g. CUSTOMFORM_HTTP_PORT.
const EnvPrefix = "CUSTOMFORM"

// HTTPConfig groups listener ports and server timeouts.
type HTTPConfig struct {
	HTTPPort  int  `mapstructure:"http_port"`
	HTTPSPort int  `mapstructure:"https_port"`
	UseHTTPS  bool `mapstructure:"use_https"`

	// Timeouts are parsed separately (see durationKeys) so that "90s",
	// "2m" and plain seconds are all accepted.
	ReadTimeout       time.Duration `mapstructure:"-"`
	ReadHeaderTimeout time.Duration `mapstructure:"-"`
	WriteTimeout      time.Duration `mapstructure:"-"`
	IdleTimeout       time.Duration `mapstructure:"-"`
	ShutdownTimeout   time.Duration `mapstructure:"-"`
}

// TLSConfig holds manually provisioned certificate paths.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`

	// RedirectHTTP serves a :http_port → https redirect next to the TLS
	// listener when use_https is on.
	RedirectHTTP bool `mapstructure:"redirect_http"`
}

// CORSConfig groups all CORS behavior and lists.
type CORSConfig struct {
	EnableCORS           bool     `mapstructure:"enable_cors"`
	CORSAllowedOrigins   []string `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string `mapstructure:"cors_allowed_headers"`
	CORSExposedHeaders   []string `mapstructure:"cors_exposed_headers"`
	CORSAllowCredentials bool     `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int      `mapstructure:"cors_max_age"`
}

// CoreConfig holds the service-wide settings every deployment needs.
type CoreConfig struct {
	// runtime
	Env      string `mapstructure:"env"`       // "dev" | "prod"
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error …

	// grouped config
	HTTP HTTPConfig `mapstructure:",squash"`
	TLS  TLSConfig  `mapstructure:",squash"`
	CORS CORSConfig `mapstructure:",squash"`

	// Startup timeout for store/redis connections.
	DBConnectTimeout time.Duration `mapstructure:"-"`

	// HTTP behavior
	MaxRequestBodyBytes int64 `mapstructure:"max_request_body_bytes"`
	EnableCompression   bool  `mapstructure:"enable_compression"`
}

// Dump returns an indented JSON rendering of the config for debug logs.
// CoreConfig carries no secrets; app secrets live in AppConfigValues and
// are redacted by loadAppConfig.
func (c CoreConfig) Dump() string {
	b, _ := json.MarshalIndent(c, "", "  ")
	return string(b)
}

// durationKeys lists every duration-valued core key with its default and
// the field it fills.
var durationKeys = []struct {
	key string
	def time.Duration
	dst func(*CoreConfig) *time.Duration
}{
	{"read_timeout", 15 * time.Second, func(c *CoreConfig) *time.Duration { return &c.HTTP.ReadTimeout }},
	{"read_header_timeout", 10 * time.Second, func(c *CoreConfig) *time.Duration { return &c.HTTP.ReadHeaderTimeout }},
	{"write_timeout", 60 * time.Second, func(c *CoreConfig) *time.Duration { return &c.HTTP.WriteTimeout }},
	{"idle_timeout", 120 * time.Second, func(c *CoreConfig) *time.Duration { return &c.HTTP.IdleTimeout }},
	{"shutdown_timeout", 15 * time.Second, func(c *CoreConfig) *time.Duration { return &c.HTTP.ShutdownTimeout }},
	{"db_connect_timeout", 10 * time.Second, func(c *CoreConfig) *time.Duration { return &c.DBConnectTimeout }},
}

// Load merges defaults → config.* file(s) → env vars → explicit flags into
// the core config plus the values of the given app keys.
// Final precedence (highest wins): flags(explicit) > env > config > defaults.
func Load(logger *zap.Logger, keys []AppKey) (*CoreConfig, AppConfigValues, error) {
	return load(logger, pflag.CommandLine, os.Args[1:], ".", keys)
}

func load(logger *zap.Logger, fs *pflag.FlagSet, args []string, dir string, keys []AppKey) (*CoreConfig, AppConfigValues, error) {
	// 0) Optionally load .env (real env still wins over .env)
	if err := godotenv.Load(dir + "/.env"); err == nil && logger != nil {
		logger.Info("Loaded .env file")
	}

	// 1) Define flags (only *explicitly set* flags will override)
	registerCoreFlags(fs)
	if err := registerAppFlags(fs, keys); err != nil {
		return nil, nil, err
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// 2) Viper + env
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}

	// 3) Optional config.* files (yaml|yml|json|toml)
	mergeConfigFiles(logger, v, dir)

	// 4) Defaults (lowest precedence)
	setDefaults(v)

	// 5) Apply *explicit* flags (highest precedence)
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	// 6) Normalize list keys (accept JSON strings → []string)
	if err := normalizeListKeys(logger, v,
		"cors_allowed_origins",
		"cors_allowed_methods",
		"cors_allowed_headers",
		"cors_exposed_headers",
	); err != nil {
		return nil, nil, err
	}

	// 7) Build struct
	var cfg CoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unable to decode core config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	var invalid []string
	for _, d := range durationKeys {
		dur, err := parseDurationFlexible(v.Get(d.key), d.def)
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("%s: %v", d.key, err))
		}
		*d.dst(&cfg) = dur
	}

	// 8) Validate
	if err := validateCoreConfig(cfg, invalid); err != nil {
		return nil, nil, err
	}

	appVals := loadAppConfig(logger, v, fs, EnvPrefix, keys)
	return &cfg, appVals, nil
}

func registerCoreFlags(fs *pflag.FlagSet) {
	fs.String("env", "dev", `Runtime environment "dev"|"prod"`)
	fs.String("log_level", "debug", "Log level")

	fs.Int("http_port", 8080, "HTTP port")
	fs.Int("https_port", 8443, "HTTPS port")
	fs.Bool("use_https", false, "Serve HTTPS")
	fs.String("cert_file", "", "TLS cert file")
	fs.String("key_file", "", "TLS key file")
	fs.Bool("redirect_http", true, "With use_https, redirect http_port to HTTPS")

	for _, d := range durationKeys {
		fs.String(d.key, d.def.String(), fmt.Sprintf("Duration, e.g. \"%s\"", d.def))
	}

	fs.Bool("enable_compression", true, "Enable HTTP compression")
	fs.Bool("enable_cors", false, "Enable CORS")
	fs.String("cors_allowed_origins", "", `JSON array of origins, e.g. '["https://a.example"]'`)
	fs.String("cors_allowed_methods", "", `JSON array of methods, e.g. '["GET","POST"]'`)
	fs.String("cors_allowed_headers", "", `JSON array of headers, e.g. '["Accept","Content-Type"]'`)
	fs.String("cors_exposed_headers", "", `JSON array of headers, e.g. '["Link"]'`)
	fs.Bool("cors_allow_credentials", false, "CORS: allow credentials")
	fs.Int("cors_max_age", 0, "CORS: max age seconds (0 disables cache)")

	fs.Int64("max_request_body_bytes", 1<<20, "Max HTTP request body size in bytes (0 = unlimited)")
}

func allKeys() []string {
	keys := []string{
		"env", "log_level",
		"http_port", "https_port", "use_https",
		"cert_file", "key_file", "redirect_http",
		"enable_compression",
		"enable_cors",
		"cors_allowed_origins", "cors_allowed_methods", "cors_allowed_headers",
		"cors_exposed_headers", "cors_allow_credentials", "cors_max_age",
		"max_request_body_bytes",
	}
	for _, d := range durationKeys {
		keys = append(keys, d.key)
	}
	return keys
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "debug")

	v.SetDefault("http_port", 8080)
	v.SetDefault("https_port", 8443)
	v.SetDefault("use_https", false)
	v.SetDefault("cert_file", "")
	v.SetDefault("key_file", "")
	v.SetDefault("redirect_http", true)

	for _, d := range durationKeys {
		v.SetDefault(d.key, d.def.String())
	}

	v.SetDefault("enable_compression", true)

	v.SetDefault("enable_cors", false)
	v.SetDefault("cors_allowed_origins", []string{})
	v.SetDefault("cors_allowed_methods", []string{})
	v.SetDefault("cors_allowed_headers", []string{})
	v.SetDefault("cors_exposed_headers", []string{})
	v.SetDefault("cors_allow_credentials", false)
	v.SetDefault("cors_max_age", 0)

	v.SetDefault("max_request_body_bytes", int64(1<<20))
}

func mergeConfigFiles(logger *zap.Logger, v *viper.Viper, dir string) {
	for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
		file := dir + "/config." + ext
		b, err := os.ReadFile(file)
		if err != nil {
			if !os.IsNotExist(err) && logger != nil {
				logger.Warn("cannot read config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			if logger != nil {
				logger.Warn("cannot decode config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Info("Loaded config file", zap.String("file", file))
		}
	}
}

// normalizeListKeys coerces JSON-string values into []string for the given keys.
func normalizeListKeys(logger *zap.Logger, v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		switch t := v.Get(key).(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				continue
			}
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return fmt.Errorf("config key %q expects a JSON array string, got %q: %w", key, s, err)
			}
			v.Set(key, arr)
		case []any:
			arr := make([]string, 0, len(t))
			for _, e := range t {
				arr = append(arr, fmt.Sprint(e))
			}
			v.Set(key, arr)
		case []string, nil:
		default:
			if logger != nil {
				logger.Warn("unexpected type for list key; expected JSON array/string",
					zap.String("key", key), zap.Any("value", t))
			}
		}
	}
	return nil
}

func validateCoreConfig(cfg CoreConfig, invalid []string) error {
	var missing []string

	switch cfg.Env {
	case "dev", "prod":
	default:
		invalid = append(invalid, `env must be "dev" or "prod"`)
	}

	if cfg.HTTP.UseHTTPS {
		if strings.TrimSpace(cfg.TLS.CertFile) == "" || strings.TrimSpace(cfg.TLS.KeyFile) == "" {
			missing = append(missing, EnvPrefix+"_CERT_FILE and "+EnvPrefix+"_KEY_FILE (or --cert_file/--key_file) for use_https")
		}
		if cfg.HTTP.HTTPPort == cfg.HTTP.HTTPSPort {
			invalid = append(invalid, "http_port and https_port cannot be equal when use_https=true")
		}
	}

	if cfg.HTTP.HTTPPort <= 0 || cfg.HTTP.HTTPPort > 65535 {
		invalid = append(invalid, "http_port must be in 1..65535")
	}
	if cfg.HTTP.HTTPSPort <= 0 || cfg.HTTP.HTTPSPort > 65535 {
		invalid = append(invalid, "https_port must be in 1..65535")
	}

	if cfg.CORS.EnableCORS {
		if len(cfg.CORS.CORSAllowedOrigins) == 0 {
			missing = append(missing, "CORS: cors_allowed_origins (JSON array) required when enable_cors=true")
		}
		if len(cfg.CORS.CORSAllowedMethods) == 0 {
			missing = append(missing, "CORS: cors_allowed_methods (JSON array) required when enable_cors=true")
		}
		for _, o := range cfg.CORS.CORSAllowedOrigins {
			if o == "*" && cfg.CORS.CORSAllowCredentials {
				invalid = append(invalid, `CORS: cannot use "*" in cors_allowed_origins when cors_allow_credentials=true`)
				break
			}
		}
		if cfg.CORS.CORSMaxAge < 0 {
			invalid = append(invalid, "CORS: cors_max_age must be >= 0")
		}
	}

	if cfg.MaxRequestBodyBytes < 0 {
		invalid = append(invalid, "max_request_body_bytes must be >= 0")
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("core configuration errors: %s", strings.Join(parts, " | "))
}
