package main

// Column is a single column line of a table definition.
type Column struct {
	Name       string // first token of the line, exactly as written (quoted names keep their quotes)
	Definition string // full line without the trailing comma; never re-parsed
}

// TableDefinition is a parsed CREATE TABLE block plus the dump text around it.
type TableDefinition struct {
	Schema  string
	Table   string
	Pre     string   // text preceding CREATE TABLE, verbatim
	Columns []Column // column lines in physical order
	Extras  []string // table-level lines re-added with ALTER TABLE ... ADD
	Options string   // clause between the closing ")" and ";" (WITH, INHERITS, PARTITION BY), trimmed
	Post    string   // text following the terminating ";", verbatim
}

// TargetSpec describes the requested column order.
type TargetSpec struct {
	Start   []string
	End     []string
	Exclude []string
}

// Empty reports whether the target requests no change at all.
func (s TargetSpec) Empty() bool {
	return len(s.Start) == 0 && len(s.End) == 0 && len(s.Exclude) == 0
}

// ForeignKeyRef is a foreign key on some table that references the table being rebuilt.
type ForeignKeyRef struct {
	OwningSchema   string
	OwningTable    string
	ConstraintName string
	LocalColumns   []string // columns on the owning table, in key order
	ForeignColumns []string // referenced columns on the rebuilt table, in key order
	OnUpdate       string   // NO ACTION, RESTRICT, CASCADE, SET NULL, SET DEFAULT
	OnDelete       string
	MatchType      string // SIMPLE, FULL or PARTIAL
	Deferrable     bool
	Deferred       bool // INITIALLY DEFERRED
	NotValid       bool
}

// IndexDef is a non-primary index whose columns are all kept by the rebuild.
type IndexDef struct {
	Name       string
	Definition string // verbatim CREATE INDEX statement, terminated by ';'
	Columns    []string
}

// MigrationInput is everything buildMigrationScript needs for one table.
type MigrationInput struct {
	Schema      string
	Table       string
	Columns     []Column // target order
	Extras      []string
	Options     string
	Pre         string
	Post        string
	ForeignKeys []ForeignKeyRef
	NotNull     []string
	Indexes     []IndexDef
	Warnings    []string
	// Transaction wraps the rebuild steps in BEGIN/COMMIT.
	Transaction bool
}

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
