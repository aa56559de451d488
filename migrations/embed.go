// Package migrations embeds the SQL migration files into the binary.
package migrations

import (
	"embed"

	"github.com/opensesame/core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
