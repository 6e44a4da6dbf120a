// Package migrations embeds the PostgreSQL schema applied by
// database.RunMigrations at startup.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files.
//
//go:embed *.sql
var FS embed.FS
