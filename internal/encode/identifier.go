package encode

import "strings"

// Identifiers (table, column, schema names) cannot be bound as query
// parameters; callers building dynamic query text quote them with
// these helpers instead.

// QuoteIdentifier returns a double-quoted identifier with embedded
// double quotes doubled, safe to splice into query text.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral returns a single-quoted string literal with embedded
// single quotes doubled. Backslashes force the E'' form so the result
// is unambiguous regardless of the server's standard_conforming_strings
// setting.
func QuoteLiteral(literal string) string {
	quoted := strings.ReplaceAll(literal, `'`, `''`)
	if strings.Contains(quoted, `\`) {
		return ` E'` + strings.ReplaceAll(quoted, `\`, `\\`) + `'`
	}
	return `'` + quoted + `'`
}
