package sql

import _ "embed"

// Schema is the SQLite schema applied by db.Init.
//
//go:embed schema.sql
var Schema string
