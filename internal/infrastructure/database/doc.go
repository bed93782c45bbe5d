// Package database opens the SQLite file behind the reception journal and
// migrates its schema.
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are forward-only files named NNNN_description.sql. The applied
// count lives in PRAGMA user_version; a file migrated by a newer build is
// rejected with ErrSchemaTooNew.
package database
