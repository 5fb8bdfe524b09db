package migrations

import "embed"

// FS holds the goose SQL migrations applied at startup and by the integration tests.
//
//go:embed *.sql
var FS embed.FS
