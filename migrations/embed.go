// Package migrations embeds the player's SQL schema into the binary.
//
// Importing it for side effects registers the files with the database
// package, so Migrate works without any SQL on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-signage/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
