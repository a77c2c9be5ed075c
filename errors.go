package main

import "fmt"

// NotFoundError is returned when the schema text has no CREATE TABLE block for the table.
type NotFoundError struct {
	Schema string
	Table  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find table %s.%s in schema text", e.Schema, e.Table)
}

// MetadataQueryError wraps a connection, query or scan failure against the catalog.
type MetadataQueryError struct {
	Op     string // "foreign keys", "not null columns", "indexes"
	Schema string
	Table  string
	Err    error
}

func (e *MetadataQueryError) Error() string {
	return fmt.Sprintf("query %s for %s.%s: %v", e.Op, e.Schema, e.Table, e.Err)
}

func (e *MetadataQueryError) Unwrap() error { return e.Err }

// InvalidIdentifierError is returned before any query when a name is not a safe identifier.
type InvalidIdentifierError struct {
	Kind   string // "schema", "table", "column"
	Name   string
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s identifier %q: %s", e.Kind, e.Name, e.Reason)
}
