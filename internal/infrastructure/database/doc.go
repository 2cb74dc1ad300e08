// Package database provides SQLite connectivity and schema migrations for
// the RNet bridge.
//
// The bridge stores its zone registry in a single SQLite file opened in WAL
// mode with one connection (SQLite allows one writer).
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or have a
// DEFAULT, and each change ships as an .up.sql/.down.sql pair.
package database
