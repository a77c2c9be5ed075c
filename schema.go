package main

import (
	"regexp"
	"strings"
	"unicode"

	libinjection "github.com/corazawaf/libinjection-go"
)

// pgReservedWords are the keywords PostgreSQL's quote_identifier always quotes
// (reserved, type/function-name and column-name keywords, as of PostgreSQL 17).
// pg_dump output uses the same rule, so table lookups in dump text depend on this list.
var pgReservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "asymmetric": true, "authorization": true,
	"between": true, "bigint": true, "binary": true, "bit": true, "boolean": true,
	"both": true, "case": true, "cast": true, "char": true, "character": true,
	"check": true, "coalesce": true, "collate": true, "collation": true, "column": true,
	"concurrently": true, "constraint": true, "create": true, "cross": true,
	"current_catalog": true, "current_date": true, "current_role": true,
	"current_schema": true, "current_time": true, "current_timestamp": true,
	"current_user": true, "dec": true, "decimal": true, "default": true,
	"deferrable": true, "desc": true, "distinct": true, "do": true, "else": true,
	"end": true, "except": true, "exists": true, "extract": true, "false": true,
	"fetch": true, "float": true, "for": true, "foreign": true, "freeze": true,
	"from": true, "full": true, "grant": true, "greatest": true, "group": true,
	"grouping": true, "having": true, "ilike": true, "in": true, "initially": true,
	"inner": true, "inout": true, "int": true, "integer": true, "intersect": true,
	"interval": true, "into": true, "is": true, "isnull": true, "join": true,
	"lateral": true, "leading": true, "least": true, "left": true, "like": true,
	"limit": true, "localtime": true, "localtimestamp": true, "national": true,
	"natural": true, "nchar": true, "none": true, "normalize": true, "not": true,
	"notnull": true, "null": true, "nullif": true, "numeric": true, "offset": true,
	"on": true, "only": true, "or": true, "order": true, "out": true, "outer": true,
	"overlaps": true, "overlay": true, "placing": true, "position": true,
	"precision": true, "primary": true, "real": true, "references": true,
	"returning": true, "right": true, "row": true, "select": true,
	"session_user": true, "setof": true, "similar": true, "smallint": true,
	"some": true, "substring": true, "symmetric": true, "system_user": true,
	"table": true, "tablesample": true, "then": true, "time": true,
	"timestamp": true, "to": true, "trailing": true, "treat": true, "trim": true,
	"true": true, "union": true, "unique": true, "user": true, "using": true,
	"values": true, "varchar": true, "variadic": true, "verbose": true,
	"when": true, "where": true, "window": true, "with": true,
	"json": true, "json_array": true, "json_arrayagg": true, "json_exists": true,
	"json_object": true, "json_objectagg": true, "json_query": true,
	"json_scalar": true, "json_serialize": true, "json_table": true,
	"json_value": true, "merge_action": true, "xmlattributes": true,
	"xmlconcat": true, "xmlelement": true, "xmlexists": true, "xmlforest": true,
	"xmlnamespaces": true, "xmlparse": true, "xmlpi": true, "xmlroot": true,
	"xmlserialize": true, "xmltable": true,
}

// maxIdentifierLength is NAMEDATALEN-1.
const maxIdentifierLength = 63

var (
	plainIdentPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
	quotedIdentPattern = regexp.MustCompile(`^"(?:[^"]|"")+"$`)
)

// pgNeedsQuoting reports whether a PG identifier needs quoting beyond
// reserved-word checks (e.g. contains hyphens, spaces, uppercase, etc.).
func pgNeedsQuoting(name string) bool {
	for i, r := range name {
		if r >= 'a' && r <= 'z' || r == '_' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '$') {
			continue
		}
		return true
	}
	return false
}

// pgIdent returns a PG-safe identifier, quoting reserved words and names
// that contain characters invalid in unquoted identifiers.
func pgIdent(name string) string {
	if pgReservedWords[name] || pgNeedsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

// qualifiedName renders schema.table the way pg_dump does.
func qualifiedName(schema, table string) string {
	return pgIdent(schema) + "." + pgIdent(table)
}

// validateIdentifier checks a catalog name (schema or table) supplied by the user.
func validateIdentifier(kind, name string) error {
	switch {
	case name == "":
		return &InvalidIdentifierError{Kind: kind, Name: name, Reason: "empty name"}
	case len(name) > maxIdentifierLength:
		return &InvalidIdentifierError{Kind: kind, Name: name, Reason: "longer than 63 bytes"}
	case !plainIdentPattern.MatchString(name):
		return &InvalidIdentifierError{Kind: kind, Name: name, Reason: "must match [A-Za-z_][A-Za-z0-9_$]*"}
	}
	return nil
}

// validateColumnToken checks a column name as it appears in a table definition:
// either a plain identifier or a double-quoted one.
func validateColumnToken(token string) error {
	if plainIdentPattern.MatchString(token) {
		if len(token) > maxIdentifierLength {
			return &InvalidIdentifierError{Kind: "column", Name: token, Reason: "longer than 63 bytes"}
		}
		return nil
	}
	if !quotedIdentPattern.MatchString(token) {
		return &InvalidIdentifierError{Kind: "column", Name: token, Reason: "not a plain or double-quoted identifier"}
	}
	inner := catalogName(token)
	if len(inner) > maxIdentifierLength {
		return &InvalidIdentifierError{Kind: "column", Name: token, Reason: "longer than 63 bytes"}
	}
	if strings.ContainsAny(inner, "';") || strings.Contains(inner, "--") || strings.Contains(inner, "/*") {
		if isSQLi, fingerprint := libinjection.IsSQLi(inner); isSQLi {
			return &InvalidIdentifierError{Kind: "column", Name: token, Reason: "looks like SQL injection (fingerprint " + string(fingerprint) + ")"}
		}
	}
	return nil
}

// validateColumnTokens validates every token, stopping at the first failure.
func validateColumnTokens(tokens []string) error {
	for _, t := range tokens {
		if err := validateColumnToken(t); err != nil {
			return err
		}
	}
	return nil
}

// catalogName converts an identifier as written in SQL into the name stored in
// the catalog: quoted names are unquoted, plain names are folded to lower case.
func catalogName(token string) string {
	if len(token) >= 2 && token[0] == '"' && token[len(token)-1] == '"' {
		return strings.ReplaceAll(token[1:len(token)-1], `""`, `"`)
	}
	return strings.ToLower(token)
}

// isUppercaseToken reports whether s has at least one cased letter and no
// lower-case letters.
func isUppercaseToken(s string) bool {
	cased := false
	for _, r := range s {
		switch {
		case unicode.IsLower(r), unicode.IsTitle(r):
			return false
		case unicode.IsUpper(r):
			cased = true
		}
	}
	return cased
}
