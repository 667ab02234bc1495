package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	placeholderPattern = regexp.MustCompile(`\$([0-9]+)`)
	singleLineComment  = regexp.MustCompile(`--[^\n]*`)
	multiLineComment   = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	stringLiteral      = regexp.MustCompile(`'(?:[^']|'')*'`)
	dollarQuoteTag     = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*\$|\$\$`)
)

// validateRequest checks the request shape before anything is encoded
// or sent: non-empty text and a value count matching the highest
// placeholder index referenced by the text.
func validateRequest(text string, valueCount int) error {
	if strings.TrimSpace(text) == "" {
		return NewQueryError(
			KindMissingQueryText,
			"Missing query text",
			"the query text is required and cannot be empty",
		)
	}

	highest := highestPlaceholder(text)
	if highest != valueCount {
		return NewQueryError(
			KindParamCountMismatch,
			"Parameter count mismatch",
			fmt.Sprintf("query references $%d but %d values were supplied", highest, valueCount),
		)
	}
	return nil
}

// highestPlaceholder returns the largest $n index referenced in the
// query text. Comments, string literals and dollar-quoted strings are
// stripped first so a "$1" inside them does not count.
func highestPlaceholder(text string) int {
	text = singleLineComment.ReplaceAllString(text, "")
	text = multiLineComment.ReplaceAllString(text, "")
	text = stringLiteral.ReplaceAllString(text, "''")
	text = stripDollarQuoted(text)

	highest := 0
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

// stripDollarQuoted removes $tag$...$tag$ strings. RE2 has no
// backreferences, so the matching close tag is found by hand.
func stripDollarQuoted(text string) string {
	for {
		loc := dollarQuoteTag.FindStringIndex(text)
		if loc == nil {
			return text
		}
		tag := text[loc[0]:loc[1]]
		end := strings.Index(text[loc[1]:], tag)
		if end == -1 {
			// Unterminated; nothing after the opening tag is code.
			return text[:loc[0]]
		}
		text = text[:loc[0]] + "''" + text[loc[1]+end+len(tag):]
	}
}
