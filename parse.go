package main

import (
	"regexp"
	"strings"
)

// ParseOptions tunes how table definition lines are classified.
type ParseOptions struct {
	// IsExtra decides whether a body line is a table-level feature to re-add
	// after the rebuild. Nil means isExtraFeature.
	IsExtra func(line string) bool
}

// isExtraFeature is the default classifier: the first token is all upper case.
// This catches "CONSTRAINT ... CHECK (...)" lines, and also any column line
// whose name token happens to be upper case (e.g. a quoted "ID").
func isExtraFeature(line string) bool {
	return isUppercaseToken(firstToken(line))
}

// parseTableDefinition finds the CREATE TABLE block for schema.table in
// pg_dump style text and splits it into columns, extras and the text around it.
func parseTableDefinition(text, schema, table string, opts ParseOptions) (*TableDefinition, error) {
	isExtra := opts.IsExtra
	if isExtra == nil {
		isExtra = isExtraFeature
	}

	re := tableBlockPattern(schema, table)
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, &NotFoundError{Schema: schema, Table: table}
	}

	def := &TableDefinition{
		Schema:  schema,
		Table:   table,
		Pre:     text[:loc[0]],
		Options: normalizeSQL(text[loc[4]:loc[5]]),
		Post:    text[loc[1]:],
	}

	for _, line := range bodyLines(text[loc[2]:loc[3]]) {
		if !strings.HasPrefix(line, "CONSTRAINT") {
			def.Columns = append(def.Columns, Column{Name: firstToken(line), Definition: line})
		}
		if isExtra(line) {
			def.Extras = append(def.Extras, line)
		}
	}
	return def, nil
}

// tableBlockPattern matches the block up to the first line that starts with
// ")". Group 1 is the body, group 2 any clause pg_dump puts between ")" and
// ";" (WITH (...), INHERITS (...), PARTITION BY ...).
func tableBlockPattern(schema, table string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)CREATE TABLE ` + regexp.QuoteMeta(qualifiedName(schema, table)) +
		`\s+\(\r?\n(.+?)\r?\n[ \t]*\)([^;]*);`)
}

var storageParamsPattern = regexp.MustCompile(`(?:^|\s)WITH (\([^()]*\))`)

// storageParams returns the "(...)" list of a WITH clause in table options.
func storageParams(options string) string {
	if m := storageParamsPattern.FindStringSubmatch(options); m != nil {
		return m[1]
	}
	return ""
}

// unsupportedOptions is what remains of the table options once the storage
// parameters are taken out. CREATE TABLE AS cannot reproduce any of it.
func unsupportedOptions(options string) string {
	return normalizeSQL(storageParamsPattern.ReplaceAllString(options, " "))
}

// bodyLines trims each physical line and drops one trailing comma.
func bodyLines(body string) []string {
	var lines []string
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSuffix(strings.TrimSpace(raw), ",")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// firstToken returns the first whitespace-delimited token of a line. A
// double-quoted identifier is returned whole even if it contains spaces.
func firstToken(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, `"`) {
		for i := 1; i < len(line); i++ {
			if line[i] != '"' {
				continue
			}
			if i+1 < len(line) && line[i+1] == '"' {
				i++
				continue
			}
			return line[:i+1]
		}
		return line
	}
	if fields := strings.Fields(line); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
