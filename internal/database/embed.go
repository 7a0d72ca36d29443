package database

import "embed"

// MigrationsFS embeds the SQL migrations so the binary can bootstrap its own
// schema on startup.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsPath is the migrations directory inside MigrationsFS.
const MigrationsPath = "migrations"
