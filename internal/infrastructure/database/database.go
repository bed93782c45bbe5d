package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/noolite-bridge/internal/infrastructure/config"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	pingTimeout = 5 * time.Second
)

// DB is the journal's SQLite file.
type DB struct {
	*sql.DB
	path string
}

// Open creates the database directory and file if needed, applies the
// connection pragmas and pings the file.
//
// The pool holds a single connection: the journal writer is the only
// writer and the pruner shares it, so SQLite never sees two writers.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // best effort on the error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // WAL may delay file creation

	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// connectionString builds the go-sqlite3 DSN. Transactions take the write
// lock up front (_txlock=immediate) so a migration never has to upgrade a
// read lock mid-way.
func connectionString(cfg config.DatabaseConfig) string {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_txlock=immediate",
		cfg.Path, cfg.BusyTimeout*int(time.Second/time.Millisecond))
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return dsn
}

// Close closes the pool. It is safe on a nil DB.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
