package database

import "errors"

var (
	// ErrNoPath is returned by Open when database.path is empty.
	ErrNoPath = errors.New("database: path is empty")

	// ErrSchemaTooNew means the file was migrated by a newer bridge build.
	// The bridge refuses to write to it rather than guess at the layout.
	ErrSchemaTooNew = errors.New("database: schema is newer than this build")

	// ErrBadMigrationSet is returned for misnamed or non-consecutive files.
	ErrBadMigrationSet = errors.New("database: invalid migration set")
)
