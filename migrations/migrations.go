// Package migrations embeds the tenant schema migrations so the binary can
// run them without MIGRATIONS_DIR.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
