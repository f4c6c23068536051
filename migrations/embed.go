// Package migrations holds the SQL schema of the hosted backend.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS

// Init is the initial schema: tables, indexes and the change notification trigger.
const Init = "001_init.up.sql"
