// Package migrations embeds the journal schema. Files are named
// NNNN_description.sql and numbered from 0001 without gaps.
package migrations

import "embed"

// FS holds every *.sql migration at its root, ready for database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
