// Package migrations embeds the SQL schema migrations so every binary
// carries them without a migrations directory on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
