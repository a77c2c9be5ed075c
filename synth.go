package main

import (
	"fmt"
	"strings"
)

// migrationSuffix names the temporary copy built before the swap.
const migrationSuffix = "_migration"

// scriptStep is one commented section of the migration script.
type scriptStep struct {
	header string // comment block written before the statements
	render func(b *strings.Builder, in MigrationInput)
}

// migrationSteps is the fixed statement order. Inbound foreign keys are
// dropped before the old table goes away and re-added only once the copy has
// the final name; indexes come last.
var migrationSteps = []scriptStep{
	{"-- Create new table with data from old one\n", writeCopyTable},
	{"-- Add NOT NULL constraints to new table\n", writeNotNull},
	{"/*\n * WARNING: Removing foreign keys from old table\n */\n-- Disable foreign keys on the old table\n", writeDropForeignKeys},
	{"/*\n * WARNING: Dropping the old table\n */\n-- Drop the old table\n", writeDropTable},
	{"-- Rename new table\n", writeRename},
	{"-- Add extra features (constraints) back\n", writeExtras},
	{"", writePost},
	{"", writeSequenceResets},
	{"-- Add foreign keys back\n", writeAddForeignKeys},
	{"-- Add indexes back\n", writeIndexes},
}

// buildMigrationScript renders the full rebuild script for one table.
func buildMigrationScript(in MigrationInput) string {
	var b strings.Builder

	for _, w := range in.Warnings {
		fmt.Fprintf(&b, "-- WARNING: %s\n", w)
	}
	if len(in.Warnings) > 0 {
		b.WriteByte('\n')
	}

	b.WriteString(in.Pre)
	if in.Pre != "" && !strings.HasSuffix(in.Pre, "\n") {
		b.WriteByte('\n')
	}
	if in.Transaction {
		b.WriteString("BEGIN;\n\n")
	}

	for i, step := range migrationSteps {
		if i > 0 && step.header != "" {
			b.WriteByte('\n')
		}
		b.WriteString(step.header)
		step.render(&b, in)
	}

	if in.Transaction {
		b.WriteString("\nCOMMIT;\n")
	}
	return b.String()
}

func migrationTable(in MigrationInput) string {
	return qualifiedName(in.Schema, in.Table+migrationSuffix)
}

func writeCopyTable(b *strings.Builder, in MigrationInput) {
	fmt.Fprintf(b, "CREATE TABLE %s AS\nSELECT %s\nFROM %s;\n",
		migrationTable(in),
		strings.Join(columnNames(in.Columns), ", "),
		qualifiedName(in.Schema, in.Table))
}

func writeNotNull(b *strings.Builder, in MigrationInput) {
	for _, col := range in.NotNull {
		fmt.Fprintf(b, "ALTER TABLE %s\nALTER %s SET NOT NULL;\n", migrationTable(in), col)
	}
}

func writeDropForeignKeys(b *strings.Builder, in MigrationInput) {
	for _, fk := range in.ForeignKeys {
		fmt.Fprintf(b, "ALTER TABLE %s\nDROP CONSTRAINT %s;\n",
			qualifiedName(fk.OwningSchema, fk.OwningTable), pgIdent(fk.ConstraintName))
	}
}

func writeDropTable(b *strings.Builder, in MigrationInput) {
	fmt.Fprintf(b, "DROP TABLE %s;\n", qualifiedName(in.Schema, in.Table))
}

func writeRename(b *strings.Builder, in MigrationInput) {
	fmt.Fprintf(b, "ALTER TABLE %s RENAME TO %s;\n", migrationTable(in), pgIdent(in.Table))
}

func writeExtras(b *strings.Builder, in MigrationInput) {
	for _, extra := range in.Extras {
		fmt.Fprintf(b, "ALTER TABLE %s ADD %s;\n", qualifiedName(in.Schema, in.Table), extra)
	}
	if params := storageParams(in.Options); params != "" {
		fmt.Fprintf(b, "ALTER TABLE %s SET %s;\n", qualifiedName(in.Schema, in.Table), params)
	}
}

func writePost(b *strings.Builder, in MigrationInput) {
	b.WriteString(in.Post)
	if in.Post != "" && !strings.HasSuffix(in.Post, "\n") {
		b.WriteByte('\n')
	}
}

func writeAddForeignKeys(b *strings.Builder, in MigrationInput) {
	for _, fk := range in.ForeignKeys {
		if restoredByPost(in, fk) {
			fmt.Fprintf(b, "-- %s on %s is restored by the schema dump above\n",
				fk.ConstraintName, qualifiedName(fk.OwningSchema, fk.OwningTable))
			continue
		}
		fmt.Fprintf(b, "ALTER TABLE %s\nADD CONSTRAINT %s FOREIGN KEY (%s)\nREFERENCES %s (%s)%s%s;\n",
			qualifiedName(fk.OwningSchema, fk.OwningTable),
			pgIdent(fk.ConstraintName),
			quotedColumnList(fk.LocalColumns),
			qualifiedName(in.Schema, in.Table),
			quotedColumnList(fk.ForeignColumns),
			referentialClauses(fk),
			constraintAttributes(fk))
	}
}

func writeIndexes(b *strings.Builder, in MigrationInput) {
	post := normalizeSQL(in.Post)
	for _, idx := range in.Indexes {
		def := strings.TrimSpace(idx.Definition)
		if post != "" && strings.Contains(post, normalizeSQL(strings.TrimSuffix(def, ";"))) {
			fmt.Fprintf(b, "-- index %s is restored by the schema dump above\n", idx.Name)
			continue
		}
		if !strings.HasSuffix(def, ";") {
			def += ";"
		}
		b.WriteString(def)
		b.WriteByte('\n')
	}
}

// restoredByPost reports whether a self-referencing foreign key is already
// re-created by the trailing pg_dump text.
func restoredByPost(in MigrationInput, fk ForeignKeyRef) bool {
	if fk.OwningSchema != in.Schema || fk.OwningTable != in.Table {
		return false
	}
	return strings.Contains(in.Post, "ADD CONSTRAINT "+pgIdent(fk.ConstraintName)+" FOREIGN KEY")
}

// referentialClauses renders MATCH and ON UPDATE/ON DELETE, omitting the
// MATCH SIMPLE and NO ACTION defaults.
func referentialClauses(fk ForeignKeyRef) string {
	var s string
	if fk.MatchType != "" && fk.MatchType != "SIMPLE" {
		s += " MATCH " + fk.MatchType
	}
	if fk.OnUpdate != "" && fk.OnUpdate != "NO ACTION" {
		s += " ON UPDATE " + fk.OnUpdate
	}
	if fk.OnDelete != "" && fk.OnDelete != "NO ACTION" {
		s += " ON DELETE " + fk.OnDelete
	}
	return s
}

// constraintAttributes renders DEFERRABLE, INITIALLY DEFERRED and NOT VALID.
func constraintAttributes(fk ForeignKeyRef) string {
	var s string
	if fk.Deferrable {
		s += " DEFERRABLE"
		if fk.Deferred {
			s += " INITIALLY DEFERRED"
		}
	}
	if fk.NotValid {
		s += " NOT VALID"
	}
	return s
}

// quotedColumnList joins catalog column names with proper quoting.
func quotedColumnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func normalizeSQL(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
