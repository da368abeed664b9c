// Package embedded provides assets compiled into the Go binary.
package embedded

import (
	"embed"
)

// Schemas contains the SQL schema files, one per database name:
//   - schemas/marketdata_schema.sql - durable observation store
//
//go:embed schemas/*.sql
var Schemas embed.FS

// SchemaPath returns the path of a database's schema inside Schemas
func SchemaPath(name string) string {
	return "schemas/" + name + "_schema.sql"
}
