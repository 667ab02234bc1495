// Package encode converts application values into wire-ready query
// parameters. Conversion rules, in precedence order: nil-like values
// become NULL, times become UTC timestamp text, byte slices pass
// through as binary, sequences render as array literals, values
// implementing WireEncodable convert themselves, remaining structs and
// maps serialize to JSON, and everything else falls back to its text
// representation.
package encode

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vibesql/pgcore/internal/wire"
)

// TimestampFormat is the canonical UTC form sent for time values.
const TimestampFormat = "2006-01-02T15:04:05.999999999Z"

// maxNestingDepth bounds array recursion. Sequences that self-reference
// through interface elements would otherwise recurse forever.
const maxNestingDepth = 64

var errTooDeep = errors.New("value nesting too deep (circular reference?)")

// EncodeFunc encodes one application value. It is handed to
// WireEncodable hooks so they can delegate nested values.
type EncodeFunc func(v any) (wire.Param, error)

// WireEncodable is the capability interface for values that know their
// own wire representation. The returned parameter is used verbatim and
// never re-encoded.
type WireEncodable interface {
	WireEncode(encode EncodeFunc) (wire.Param, error)
}

// Value encodes one application value into a query parameter.
func Value(v any) (wire.Param, error) {
	return encodeValue(v, 0)
}

func text(s string) wire.Param {
	return wire.Param{Value: []byte(s)}
}

func encodeValue(v any, depth int) (wire.Param, error) {
	if depth > maxNestingDepth {
		return wire.Param{}, errTooDeep
	}

	switch v := v.(type) {
	case nil:
		return wire.Param{}, nil
	case time.Time:
		return text(v.UTC().Format(TimestampFormat)), nil
	case []byte:
		return wire.Param{Value: v, Binary: true}, nil
	case WireEncodable:
		p, err := v.WireEncode(func(nested any) (wire.Param, error) {
			return encodeValue(nested, depth+1)
		})
		if err != nil {
			return wire.Param{}, fmt.Errorf("conversion hook failed: %w", err)
		}
		return p, nil
	case string:
		return text(v), nil
	case bool:
		return text(strconv.FormatBool(v)), nil
	case int:
		return text(strconv.FormatInt(int64(v), 10)), nil
	case int8:
		return text(strconv.FormatInt(int64(v), 10)), nil
	case int16:
		return text(strconv.FormatInt(int64(v), 10)), nil
	case int32:
		return text(strconv.FormatInt(int64(v), 10)), nil
	case int64:
		return text(strconv.FormatInt(v, 10)), nil
	case uint:
		return text(strconv.FormatUint(uint64(v), 10)), nil
	case uint16:
		return text(strconv.FormatUint(uint64(v), 10)), nil
	case uint32:
		return text(strconv.FormatUint(uint64(v), 10)), nil
	case uint64:
		return text(strconv.FormatUint(v, 10)), nil
	case float32:
		return text(strconv.FormatFloat(float64(v), 'f', -1, 32)), nil
	case float64:
		return text(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case decimal.Decimal:
		return text(v.String()), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return wire.Param{}, nil
		}
		return encodeValue(rv.Elem().Interface(), depth+1)
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return wire.Param{}, nil
		}
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		lit, err := arrayLiteral(rv, depth)
		if err != nil {
			return wire.Param{}, err
		}
		return text(lit), nil
	case reflect.Map, reflect.Struct:
		raw, err := json.Marshal(v)
		if err != nil {
			return wire.Param{}, fmt.Errorf("JSON serialization failed: %w", err)
		}
		return wire.Param{Value: raw}, nil
	}

	if s, ok := v.(fmt.Stringer); ok {
		return text(s.String()), nil
	}
	return text(fmt.Sprintf("%v", v)), nil
}

// arrayLiteral renders a sequence as a PostgreSQL array literal,
// recursively encoding each element. NULL elements render as the bare
// NULL token; everything else is double-quoted with backslash escapes.
func arrayLiteral(rv reflect.Value, depth int) (string, error) {
	if depth > maxNestingDepth {
		return "", errTooDeep
	}

	var sb strings.Builder
	sb.WriteByte('{')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			sb.WriteByte(',')
		}

		elem := rv.Index(i)
		for elem.Kind() == reflect.Interface && !elem.IsNil() {
			elem = elem.Elem()
		}

		// Nested sequences render inline as sub-literals, unquoted.
		if isSequence(elem) {
			nested, err := arrayLiteral(elem, depth+1)
			if err != nil {
				return "", err
			}
			sb.WriteString(nested)
			continue
		}

		p, err := encodeValue(elem.Interface(), depth+1)
		if err != nil {
			return "", err
		}
		switch {
		case p.Value == nil:
			sb.WriteString("NULL")
		case p.Binary:
			sb.WriteString(quoteArrayElement(`\x` + hex.EncodeToString(p.Value)))
		default:
			sb.WriteString(quoteArrayElement(string(p.Value)))
		}
	}
	sb.WriteByte('}')
	return sb.String(), nil
}

func isSequence(rv reflect.Value) bool {
	if !rv.IsValid() {
		return false
	}
	// []byte is a scalar here: it encodes as a bytea payload.
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return false
	}
	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}

func quoteArrayElement(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte('"')
	return sb.String()
}
