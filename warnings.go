package main

import (
	"fmt"
	"regexp"
	"strings"
)

// excludedColumnWarnings reports columns that the rebuild drops, and the
// inbound foreign keys, extra lines and trailing dump statements that still
// name one and will fail when re-run.
func excludedColumnWarnings(def *TableDefinition, spec TargetSpec, fks []ForeignKeyRef) []string {
	present := make(map[string]bool, len(def.Columns))
	for _, c := range def.Columns {
		present[c.Name] = true
	}

	excluded := make(map[string]bool)
	var warnings []string
	for _, name := range spec.Exclude {
		if !present[name] || excluded[name] {
			continue
		}
		excluded[name] = true
		warnings = append(warnings, fmt.Sprintf("column %s is excluded; its data is dropped with the old table", name))
	}

	for _, fk := range fks {
		for _, col := range fk.ForeignColumns {
			if excluded[pgIdent(col)] || excluded[col] {
				warnings = append(warnings, fmt.Sprintf(
					"foreign key %s on %s references excluded column %s and will fail to re-add",
					fk.ConstraintName, qualifiedName(fk.OwningSchema, fk.OwningTable), col))
				break
			}
		}
	}

	if len(excluded) == 0 {
		return warnings
	}
	mentions := make(map[string]*regexp.Regexp, len(excluded))
	for name := range excluded {
		mentions[name] = columnMentionPattern(name)
	}
	firstMention := func(stmt string) string {
		for _, name := range spec.Exclude {
			if re := mentions[name]; re != nil && re.MatchString(stmt) {
				return name
			}
		}
		return ""
	}

	for _, extra := range def.Extras {
		if !strings.HasPrefix(extra, "CONSTRAINT") {
			continue
		}
		if name := firstMention(extra); name != "" {
			warnings = append(warnings, fmt.Sprintf(
				"%s references excluded column %s and will fail to re-add", extra, name))
		}
	}
	for _, stmt := range executableStatements(def.Post) {
		stmt = stripLineComments(stmt)
		if name := firstMention(stmt); name != "" {
			warnings = append(warnings, fmt.Sprintf(
				"statement %q from the schema dump references excluded column %s and will fail",
				firstLine(stmt), name))
		}
	}
	return warnings
}

// tableOptionWarnings reports table clauses the rebuilt table loses.
func tableOptionWarnings(def *TableDefinition) []string {
	if rest := unsupportedOptions(def.Options); rest != "" {
		return []string{fmt.Sprintf("table clause %q is not carried over by the rebuild", rest)}
	}
	return nil
}

// columnMentionPattern matches a column token as a whole identifier.
func columnMentionPattern(token string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^A-Za-z0-9_$"])` + regexp.QuoteMeta(token) + `(?:$|[^A-Za-z0-9_$"])`)
}

func stripLineComments(stmt string) string {
	var kept []string
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// unknownColumnWarnings reports start/end names that match no column.
func unknownColumnWarnings(spec TargetSpec, columns []Column) []string {
	var warnings []string
	for _, name := range unknownTargetNames(spec, columns) {
		warnings = append(warnings, fmt.Sprintf("column %s does not exist and is ignored", name))
	}
	return warnings
}
