package migrations

import "embed"

// FS holds the goose SQL migrations for the booking database.
//
//go:embed *.sql
var FS embed.FS
