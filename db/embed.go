// Package db embeds the promotion schema DDL.
package db

import _ "embed"

// Schema holds the DDL for the promotions table, applied at startup.
//
//go:embed migrations/001_schema.sql
var Schema string
