package pgtypes

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Text is the identity decode: raw column text as a string.
func Text(src []byte) (any, error) {
	return string(src), nil
}

// Bool decodes 't'/'f'.
func Bool(src []byte) (any, error) {
	if len(src) == 1 {
		switch src[0] {
		case 't':
			return true, nil
		case 'f':
			return false, nil
		}
	}
	return nil, fmt.Errorf("invalid bool %q", src)
}

// Int decodes any integer type to int64.
func Int(src []byte) (any, error) {
	v, err := strconv.ParseInt(string(src), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", src)
	}
	return v, nil
}

// Float decodes float4/float8 to float64.
func Float(src []byte) (any, error) {
	v, err := strconv.ParseFloat(string(src), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid float %q", src)
	}
	return v, nil
}

// Numeric decodes NUMERIC without precision loss.
func Numeric(src []byte) (any, error) {
	v, err := decimal.NewFromString(string(src))
	if err != nil {
		return nil, fmt.Errorf("invalid numeric %q", src)
	}
	return v, nil
}

// Bytea decodes the hex output format ("\x...").
func Bytea(src []byte) (any, error) {
	if len(src) < 2 || src[0] != '\\' || src[1] != 'x' {
		return nil, fmt.Errorf("unsupported bytea format %q", src)
	}
	out := make([]byte, hex.DecodedLen(len(src)-2))
	if _, err := hex.Decode(out, src[2:]); err != nil {
		return nil, fmt.Errorf("invalid bytea %q: %w", src, err)
	}
	return out, nil
}

// Date decodes a DATE column to a midnight-UTC time.Time.
func Date(src []byte) (any, error) {
	v, err := time.ParseInLocation("2006-01-02", string(src), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", src)
	}
	return v, nil
}

// timestampLayouts covers the server's ISO output with and without
// fractional seconds and zone offset.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// Timestamp decodes timestamp/timestamptz columns.
func Timestamp(src []byte) (any, error) {
	s := string(src)
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", src)
}

// JSON decodes json/jsonb columns into generic Go values.
func JSON(src []byte) (any, error) {
	var v any
	if err := json.Unmarshal(src, &v); err != nil {
		return nil, fmt.Errorf("invalid json %q: %w", src, err)
	}
	return v, nil
}

// Array lifts an element decode over the text array literal format,
// producing []any. Nested literals recurse.
func Array(elem DecodeFunc) DecodeFunc {
	return func(src []byte) (any, error) {
		values, rest, err := parseArray(string(src), elem)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(rest) != "" {
			return nil, fmt.Errorf("trailing garbage in array literal %q", src)
		}
		return values, nil
	}
}

// parseArray consumes one "{...}" literal from s and returns whatever
// input follows it.
func parseArray(s string, elem DecodeFunc) ([]any, string, error) {
	if len(s) == 0 || s[0] != '{' {
		return nil, "", fmt.Errorf("array literal must start with '{': %q", s)
	}
	s = s[1:]

	values := []any{}
	for {
		if len(s) == 0 {
			return nil, "", fmt.Errorf("unterminated array literal")
		}
		if s[0] == '}' {
			return values, s[1:], nil
		}
		if s[0] == ',' {
			s = s[1:]
			continue
		}

		switch {
		case s[0] == '{':
			nested, rest, err := parseArray(s, elem)
			if err != nil {
				return nil, "", err
			}
			values = append(values, nested)
			s = rest

		case s[0] == '"':
			raw, rest, err := parseQuoted(s)
			if err != nil {
				return nil, "", err
			}
			v, err := elem([]byte(raw))
			if err != nil {
				return nil, "", err
			}
			values = append(values, v)
			s = rest

		default:
			end := strings.IndexAny(s, ",}")
			if end == -1 {
				return nil, "", fmt.Errorf("unterminated array literal")
			}
			token := s[:end]
			s = s[end:]
			if token == "NULL" {
				values = append(values, nil)
				continue
			}
			v, err := elem([]byte(token))
			if err != nil {
				return nil, "", err
			}
			values = append(values, v)
		}
	}
}

// parseQuoted consumes one double-quoted element, resolving backslash
// escapes and doubled quotes.
func parseQuoted(s string) (string, string, error) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
			if i >= len(s) {
				return "", "", fmt.Errorf("unterminated escape in array element")
			}
			sb.WriteByte(s[i])
		case '"':
			if i+1 < len(s) && s[i+1] == '"' {
				sb.WriteByte('"')
				i++
				continue
			}
			return sb.String(), s[i+1:], nil
		default:
			sb.WriteByte(s[i])
		}
	}
	return "", "", fmt.Errorf("unterminated quoted array element")
}
