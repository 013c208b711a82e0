// Package configstore persists named configuration objects such as
// "custom_form.settings". Each name holds a flat set of string keys; saving
// a name replaces all of its keys.
//
// Backends:
//
//	memory   - process-local map (default; lost on restart)
//	redis    - one hash per name
//	sqlite   - database/sql with mattn/go-sqlite3
//	mysql    - database/sql with go-sql-driver/mysql
//	postgres - pgx connection pool
//	mongo    - one document per name
package configstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Load when nothing has been saved under a name.
var ErrNotFound = errors.New("configstore: not found")

// Store saves and loads named configuration.
type Store interface {
	// Save replaces the values stored under name. Saving no values removes
	// the name, so a later Load returns ErrNotFound on every backend.
	Save(ctx context.Context, name string, values map[string]string) error

	// Load returns the values stored under name, or ErrNotFound.
	Load(ctx context.Context, name string) (map[string]string, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Backend is one of memory, redis, sqlite, mysql, postgres, mongo.
	Backend string

	// DSN is the backend connection string. For redis it is either a
	// redis:// URL or a host:port address.
	DSN string

	// RedisPassword is used when DSN is a bare host:port.
	RedisPassword string

	// Database is the Mongo database name. Default: "customform".
	Database string

	// ConnectTimeout bounds connection setup. Default: 10s.
	ConnectTimeout time.Duration
}

// Backends lists the supported backend names.
var Backends = []string{"memory", "redis", "sqlite", "mysql", "postgres", "mongo"}

// Open connects to the backend named in opts and prepares its schema.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend != "" && backend != "memory" && strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("configstore: backend %q requires a dsn", backend)
	}

	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return OpenRedis(ctx, opts.DSN, opts.RedisPassword, opts.ConnectTimeout)
	case "sqlite":
		return OpenSQLite(ctx, opts.DSN, opts.ConnectTimeout)
	case "mysql":
		return OpenMySQL(ctx, opts.DSN, opts.ConnectTimeout)
	case "postgres":
		return OpenPostgres(ctx, opts.DSN, opts.ConnectTimeout)
	case "mongo":
		db := opts.Database
		if db == "" {
			db = "customform"
		}
		return OpenMongo(ctx, opts.DSN, db, opts.ConnectTimeout)
	default:
		return nil, fmt.Errorf("configstore: unknown backend %q (want one of %s)",
			opts.Backend, strings.Join(Backends, ", "))
	}
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("configstore: empty config name")
	}
	return nil
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
