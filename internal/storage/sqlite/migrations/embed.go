package migrations

import "embed"

// FS contains embedded SQLite migrations for reconciliation storage.
//
//go:embed *.sql
var FS embed.FS
