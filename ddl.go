package main

import (
	"fmt"
	"strings"
)

// generateCreateTable renders a CREATE TABLE block in pg_dump layout with the
// columns in the given order. Extras that are not also column lines (the
// CONSTRAINT lines) follow the columns; options go after the closing paren.
func generateCreateTable(schema, table string, columns []Column, extras []string, options string) string {
	lines := make([]string, 0, len(columns)+len(extras))
	for _, col := range columns {
		lines = append(lines, col.Definition)
	}
	for _, extra := range extras {
		if strings.HasPrefix(extra, "CONSTRAINT") {
			lines = append(lines, extra)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", qualifiedName(schema, table))
	for i, line := range lines {
		b.WriteString("    ")
		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")
	if options != "" {
		b.WriteByte('\n')
		b.WriteString(options)
	}
	b.WriteString(";\n")
	return b.String()
}

// formatColumnListing renders the human-readable column list.
func formatColumnListing(header string, columns []Column) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, c := range columns {
		fmt.Fprintf(&b, "    %s\n", c.Definition)
	}
	return b.String()
}
