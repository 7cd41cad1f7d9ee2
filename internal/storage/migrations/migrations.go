// Package migrations embeds the SQL schema of the kv storage table.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
