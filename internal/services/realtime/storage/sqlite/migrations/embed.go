package migrations

import "embed"

// FS contains embedded SQLite migrations for board snapshot storage.
//
//go:embed *.sql
var FS embed.FS
