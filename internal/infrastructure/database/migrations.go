package database

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
)

// Migration is one forward-only schema step. The schema version of a file
// is kept in SQLite's user_version header field, so no bookkeeping table
// is needed.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrate applies every migration in fsys above the file's user_version,
// each in its own transaction together with the user_version bump. A nil
// fsys means no migrations.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) error {
	migrations, err := loadMigrations(fsys)
	if err != nil {
		return err
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if latest := len(migrations); current > latest {
		return fmt.Errorf("%w: file at version %d, build knows %d", ErrSchemaTooNew, current, latest)
	}

	for _, m := range migrations[current:] {
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("applying migration %04d_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// SchemaVersion returns the number of migrations applied to the file.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	// PRAGMA takes no bind parameters; Version is an int we parsed.
	if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(m.Version)); err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads the *.sql files at the root of fsys. Versions must
// run 1, 2, 3... with no gaps or duplicates.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		version, label, ok := parseMigrationFilename(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not NNNN_description.sql", ErrBadMigrationSet, name)
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		migrations = append(migrations, Migration{Version: version, Name: label, SQL: string(body)})
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	for i, m := range migrations {
		if m.Version != i+1 {
			return nil, fmt.Errorf("%w: expected version %d, found %04d_%s", ErrBadMigrationSet, i+1, m.Version, m.Name)
		}
	}
	return migrations, nil
}

// parseMigrationFilename splits "0001_reception_journal.sql" into 1 and
// "reception_journal".
func parseMigrationFilename(name string) (version int, label string, ok bool) {
	base, found := strings.CutSuffix(name, ".sql")
	if !found {
		return 0, "", false
	}
	num, label, found := strings.Cut(base, "_")
	if !found || label == "" {
		return 0, "", false
	}
	version, err := strconv.Atoi(num)
	if err != nil || version < 1 {
		return 0, "", false
	}
	return version, label, true
}
