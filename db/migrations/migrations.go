// Package migrations embeds the goose SQL migrations, one directory per dialect.
package migrations

import "embed"

// FS holds sql/postgres and sql/mysql.
//
//go:embed sql
var FS embed.FS
