// Package migrations embeds the PostgreSQL schema so binaries migrate without
// a checkout of the repository next to them.
package migrations

import "embed"

// FS holds every NNNN_name.up.sql and NNNN_name.down.sql file at its root.
//
//go:embed *.sql
var FS embed.FS
