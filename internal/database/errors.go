package database

import "errors"

var (
	// ErrDatabaseNotFound indicates a missing SQLite file when creation is disabled.
	ErrDatabaseNotFound = errors.New("database not found")
	// ErrInvalidSchema indicates a PostgreSQL schema name that is not a plain identifier.
	ErrInvalidSchema = errors.New("invalid schema name")
)
