package main

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	identPart     = `(?:"(?:[^"]|"")+"|[A-Za-z0-9_$]+)`
	qualifiedPart = identPart + `(?:\.` + identPart + `)?`
)

// sequenceOwner ties a sequence to the column whose default draws from it.
type sequenceOwner struct {
	Sequence string
	Column   string
}

// ownedSequences finds the serial and identity sequences the trailing dump
// text re-creates for schema.table. They restart at their START value after
// the rebuild, so the script moves them past the copied rows.
func ownedSequences(schema, table, post string) []sequenceOwner {
	qn := regexp.QuoteMeta(qualifiedName(schema, table))
	ownedBy := regexp.MustCompile(`ALTER SEQUENCE (` + qualifiedPart + `) OWNED BY ` + qn + `\.(` + identPart + `);`)
	identity := regexp.MustCompile(`ALTER TABLE (?:ONLY )?` + qn + `\s+ALTER COLUMN (` + identPart +
		`) ADD GENERATED [A-Z ]+ AS IDENTITY \(\s*SEQUENCE NAME (` + qualifiedPart + `)`)

	var owners []sequenceOwner
	seen := make(map[string]bool)
	add := func(seq, col string) {
		if seen[seq] {
			return
		}
		seen[seq] = true
		owners = append(owners, sequenceOwner{Sequence: seq, Column: col})
	}
	for _, m := range ownedBy.FindAllStringSubmatch(post, -1) {
		add(m[1], m[2])
	}
	for _, m := range identity.FindAllStringSubmatch(post, -1) {
		add(m[2], m[1])
	}
	return owners
}

func writeSequenceResets(b *strings.Builder, in MigrationInput) {
	owners := ownedSequences(in.Schema, in.Table, in.Post)
	if len(owners) == 0 {
		return
	}
	b.WriteString("\n-- Move sequences past the copied rows\n")
	for _, o := range owners {
		fmt.Fprintf(b, "SELECT pg_catalog.setval('%s', max(%s)) FROM %s HAVING max(%s) IS NOT NULL;\n",
			strings.ReplaceAll(o.Sequence, "'", "''"), o.Column, qualifiedName(in.Schema, in.Table), o.Column)
	}
}
