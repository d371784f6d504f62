// Package database provides the SQLite store used by the signage player.
//
// The player keeps two kinds of local state on disk:
//   - its device identity (screen id, pairing code, last known location)
//   - the last playlist it received for that location
//
// Both survive a restart, so a screen that boots without network access
// resumes the rotation it was showing before power was lost.
//
// Schema changes ship as embedded, versioned migration files
// (YYYYMMDD_HHMMSS_name.up.sql / .down.sql) applied by Migrate.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
