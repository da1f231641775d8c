// Package migrations embeds the schema for the sqlite storage backend.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
