// config/appconfig.go
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AppKey declares an application configuration key. It is loaded with the
// same precedence as the core keys: flags > env > config file > Default.
type AppKey struct {
	// Name is used as-is for config files and flags. The env var is the
	// upper-cased name with EnvPrefix, e.g. CUSTOMFORM_STORE_BACKEND.
	Name string

	// Default also fixes the value's type: string, int, int64, bool or
	// []string. Durations are declared as strings ("24h").
	Default any

	// Desc is shown in --help output.
	Desc string

	// Secret values are redacted from the load log.
	Secret bool
}

// AppConfigValues holds loaded app values keyed by AppKey.Name.
type AppConfigValues map[string]any

// String returns a string value or "".
func (a AppConfigValues) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Int returns an int value or 0.
func (a AppConfigValues) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Int64 returns an int64 value or 0.
func (a AppConfigValues) Int64(key string) int64 {
	switch v := a[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Bool returns a bool value or false.
func (a AppConfigValues) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

// StringSlice returns a []string value or nil.
func (a AppConfigValues) StringSlice(key string) []string {
	v, _ := a[key].([]string)
	return v
}

// Duration parses a duration value ("10m", "1h30m", or plain seconds).
// It returns def when the key is unset, empty, or invalid.
func (a AppConfigValues) Duration(key string, def time.Duration) time.Duration {
	raw := a[key]
	if raw == nil {
		return def
	}
	dur, err := parseDurationFlexible(raw, def)
	if err != nil {
		return def
	}
	return dur
}

// loadAppConfig resolves each key against a child viper that shares the
// config-file values of v and reads its own env vars, then converts every
// value to the type of its Default.
func loadAppConfig(logger *zap.Logger, v *viper.Viper, fs *pflag.FlagSet, envPrefix string, keys []AppKey) AppConfigValues {
	result := make(AppConfigValues, len(keys))
	if len(keys) == 0 {
		return result
	}

	appV := viper.New()
	appV.SetEnvPrefix(envPrefix)
	appV.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	appV.AutomaticEnv()

	for _, key := range keys {
		// A config-file value takes the default's slot so env and flags
		// still override it.
		if v.InConfig(key.Name) {
			appV.SetDefault(key.Name, v.Get(key.Name))
		} else {
			appV.SetDefault(key.Name, key.Default)
		}
		_ = appV.BindEnv(key.Name)
		if f := fs.Lookup(key.Name); f != nil && f.Changed {
			_ = appV.BindPFlag(key.Name, f)
		}
	}

	for _, key := range keys {
		switch key.Default.(type) {
		case string:
			result[key.Name] = appV.GetString(key.Name)
		case int:
			result[key.Name] = appV.GetInt(key.Name)
		case int64:
			result[key.Name] = appV.GetInt64(key.Name)
		case bool:
			result[key.Name] = appV.GetBool(key.Name)
		case []string:
			result[key.Name] = stringSlice(appV.Get(key.Name))
		default:
			result[key.Name] = appV.Get(key.Name)
		}
	}

	if logger != nil {
		fields := make([]zap.Field, 0, len(keys))
		for _, key := range keys {
			if key.Secret {
				fields = append(fields, zap.String(key.Name, "[REDACTED]"))
				continue
			}
			fields = append(fields, zap.Any(key.Name, result[key.Name]))
		}
		logger.Info("app config loaded", fields...)
	}
	return result
}

// stringSlice accepts a JSON array string, a comma separated string, or a
// decoded list.
func stringSlice(raw any) []string {
	switch t := raw.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		var arr []string
		if strings.HasPrefix(s, "[") && json.Unmarshal([]byte(s), &arr) == nil {
			return arr
		}
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				arr = append(arr, p)
			}
		}
		return arr
	}
	return nil
}

// registerAppFlags registers one flag per app key. Must run before Parse.
func registerAppFlags(fs *pflag.FlagSet, keys []AppKey) error {
	for _, key := range keys {
		if fs.Lookup(key.Name) != nil {
			return fmt.Errorf("config key %q conflicts with existing flag", key.Name)
		}
		switch d := key.Default.(type) {
		case string:
			fs.String(key.Name, d, key.Desc)
		case int:
			fs.Int(key.Name, d, key.Desc)
		case int64:
			fs.Int64(key.Name, d, key.Desc)
		case bool:
			fs.Bool(key.Name, d, key.Desc)
		case []string:
			fs.String(key.Name, "", key.Desc+" (JSON array)")
		default:
			return fmt.Errorf("config key %q has unsupported default type %T", key.Name, key.Default)
		}
	}
	return nil
}
