// configstore/sql.go
package configstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect carries the per-driver schema for SQLStore. Both supported
// drivers use '?' placeholders, so only the DDL differs.
type Dialect struct {
	Name   string
	Driver string
	Schema string
}

var (
	// SQLite stores config rows in a WITHOUT ROWID table keyed by name+key.
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite3",
		Schema: `CREATE TABLE IF NOT EXISTS config_values (
	cfg_name  TEXT NOT NULL,
	cfg_key   TEXT NOT NULL,
	cfg_value TEXT NOT NULL,
	PRIMARY KEY (cfg_name, cfg_key)
) WITHOUT ROWID`,
	}

	// MySQL keys are capped at 191 characters so the composite primary key
	// fits InnoDB's index limit under utf8mb4.
	MySQL = Dialect{
		Name:   "mysql",
		Driver: "mysql",
		Schema: `CREATE TABLE IF NOT EXISTS config_values (
	cfg_name  VARCHAR(191) NOT NULL,
	cfg_key   VARCHAR(191) NOT NULL,
	cfg_value TEXT NOT NULL,
	PRIMARY KEY (cfg_name, cfg_key)
) DEFAULT CHARSET=utf8mb4`,
	}
)

// SQLStore stores one row per config key in a database/sql database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database. Call EnsureSchema before first use.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// OpenSQLite opens (or creates) the SQLite database at path with WAL
// journaling and a busy timeout, and creates the schema.
func OpenSQLite(ctx context.Context, path string, timeout time.Duration) (*SQLStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") && dsn != ":memory:" {
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sql.Open(SQLite.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("configstore: open sqlite: %w", err)
	}
	// SQLite allows a single writer; keep the pool small.
	db.SetMaxOpenConns(1)
	return openSQL(ctx, db, SQLite, timeout)
}

// OpenMySQL connects with a go-sql-driver DSN such as
// "user:pass@tcp(localhost:3306)/customform" and creates the schema.
func OpenMySQL(ctx context.Context, dsn string, timeout time.Duration) (*SQLStore, error) {
	db, err := sql.Open(MySQL.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("configstore: open mysql: %w", err)
	}
	db.SetConnMaxLifetime(time.Hour)
	return openSQL(ctx, db, MySQL, timeout)
}

func openSQL(ctx context.Context, db *sql.DB, d Dialect, timeout time.Duration) (*SQLStore, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("configstore: %s ping: %w", d.Name, err)
	}
	s := NewSQLStore(db, d)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the config_values table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema); err != nil {
		return fmt.Errorf("configstore: %s schema: %w", s.dialect.Name, err)
	}
	return nil
}

// Save replaces all rows for name inside one transaction.
func (s *SQLStore) Save(ctx context.Context, name string, values map[string]string) (err error) {
	if err := validName(name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("configstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM config_values WHERE cfg_name = ?`, name); err != nil {
		return fmt.Errorf("configstore: clear %q: %w", name, err)
	}
	for _, k := range sortedKeys(values) {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO config_values (cfg_name, cfg_key, cfg_value) VALUES (?, ?, ?)`,
			name, k, values[k]); err != nil {
			return fmt.Errorf("configstore: insert %q.%s: %w", name, k, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("configstore: commit: %w", err)
	}
	return nil
}

// Load returns all rows stored for name.
func (s *SQLStore) Load(ctx context.Context, name string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cfg_key, cfg_value FROM config_values WHERE cfg_name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("configstore: load %q: %w", name, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("configstore: scan %q: %w", name, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("configstore: rows %q: %w", name, err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
