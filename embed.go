// Package cookiescan exposes assets that are embedded into the binary.
package cookiescan

import "embed"

// Migrations holds the goose migration files applied by the migrate command.
//
//go:embed migrations/*.sql
var Migrations embed.FS
