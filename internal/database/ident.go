package database

import (
	"fmt"
	"regexp"
)

// Parameters cannot bind identifiers, so schema and table names end up
// interpolated into query text. All such interpolation must go through
// this file; nothing else in the repo builds identifiers from strings.

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether name is safe to use as a SQL identifier.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// QualifyTable returns "schema.table" after validating both parts.
func QualifyTable(schema, table string) (string, error) {
	if !ValidIdent(schema) {
		return "", fmt.Errorf("invalid schema name %q", schema)
	}
	if !ValidIdent(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return schema + "." + table, nil
}
