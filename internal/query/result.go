package query

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/vibesql/pgcore/internal/pgtypes"
	"github.com/vibesql/pgcore/internal/wire"
)

// RowMode selects the shape of materialized rows.
type RowMode int

const (
	// RowModeObject materializes each row as a column-name → value
	// map. Duplicate column names collapse to the last occurrence.
	RowModeObject RowMode = iota

	// RowModeArray materializes each row as a value slice in field
	// order, skipping map construction entirely.
	RowModeArray
)

// ResultSet is the decoded outcome of one query exchange. Fields is
// always populated for row-returning queries; Rows or Values is
// populated according to the request's row mode.
type ResultSet struct {
	Fields []wire.FieldDescriptor

	// Rows holds object-mode rows, Values array-mode rows. Exactly one
	// of the two is non-nil for row-returning queries.
	Rows   []map[string]any
	Values [][]any

	RowCount   int
	CommandTag string
}

var commandTagRows = regexp.MustCompile(`^(INSERT \d+|UPDATE|DELETE|SELECT|COPY|FETCH|MOVE) (\d+)$`)

// RowsAffected parses the affected-row count out of the command tag.
// Tags without a count (DDL and friends) report zero.
func (r *ResultSet) RowsAffected() int64 {
	m := commandTagRows.FindStringSubmatch(r.CommandTag)
	if m == nil {
		return 0
	}
	n, _ := strconv.ParseInt(m[2], 10, 64)
	return n
}

// decodeRows materializes raw data rows. Each row decode only reads the
// raw payload and the field descriptors, so rows are independent of one
// another; output order follows input order.
func decodeRows(fields []wire.FieldDescriptor, raw [][][]byte, mode RowMode, resolver pgtypes.Resolver) (*ResultSet, error) {
	res := &ResultSet{
		Fields:   fields,
		RowCount: len(raw),
	}

	decoders := make([]pgtypes.DecodeFunc, len(fields))
	for i, f := range fields {
		fn, ok := resolver.Resolve(f.DataTypeOID)
		if !ok {
			return nil, NewQueryError(
				KindUnresolvedType,
				"Unresolved column type",
				fmt.Sprintf("no decode function for data type oid %d (column %q)", f.DataTypeOID, f.Name),
			)
		}
		decoders[i] = fn
	}

	switch mode {
	case RowModeArray:
		res.Values = make([][]any, len(raw))
		for i, row := range raw {
			values, err := decodeRow(fields, decoders, row)
			if err != nil {
				return nil, err
			}
			res.Values[i] = values
		}
	default:
		res.Rows = make([]map[string]any, len(raw))
		for i, row := range raw {
			values, err := decodeRow(fields, decoders, row)
			if err != nil {
				return nil, err
			}
			record := make(map[string]any, len(fields))
			for j, f := range fields {
				// Later duplicate names overwrite earlier ones.
				record[f.Name] = values[j]
			}
			res.Rows[i] = record
		}
	}
	return res, nil
}

func decodeRow(fields []wire.FieldDescriptor, decoders []pgtypes.DecodeFunc, row [][]byte) ([]any, error) {
	values := make([]any, len(fields))
	for i, src := range row {
		if i >= len(decoders) || src == nil {
			continue // NULL, or a stray extra column
		}
		v, err := decoders[i](src)
		if err != nil {
			return nil, NewQueryError(
				KindColumnDecode,
				"Column decode failed",
				fmt.Sprintf("column %q (oid %d): %v", fields[i].Name, fields[i].DataTypeOID, err),
			)
		}
		values[i] = v
	}
	return values, nil
}
