// Package database provides the SQLite connection used by the access journal.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Additive schema migrations loaded from an fs.FS (see package migrations)
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
