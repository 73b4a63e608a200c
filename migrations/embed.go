// Package migrations embeds the SQL schema migrations applied by cmd/migrate
// and by the integration tests.
package migrations

import "embed"

// FS holds the NNNNNN_name.{up,down}.sql files
//
//go:embed *.sql
var FS embed.FS
