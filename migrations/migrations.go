// Package migrations embeds the SQL schema applied by golang-migrate.
package migrations

import "embed"

// FS holds the numbered up/down files.
//
//go:embed *.sql
var FS embed.FS
