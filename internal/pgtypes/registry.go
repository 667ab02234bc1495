// Package pgtypes resolves server data type OIDs to decode functions
// that turn raw column text into Go values.
package pgtypes

import (
	"github.com/lib/pq/oid"
)

// DecodeFunc converts one raw column value. src is never nil; NULLs are
// handled before decode functions run.
type DecodeFunc func(src []byte) (any, error)

// Resolver maps a data type OID to its decode strategy. The process
// default is a Registry; per-query overrides supply their own Resolver
// which fully replaces the default for that query.
type Resolver interface {
	Resolve(id oid.Oid) (DecodeFunc, bool)
}

// Registry is an immutable OID → DecodeFunc table with an optional
// fallback applied to OIDs without an explicit entry.
type Registry struct {
	funcs    map[oid.Oid]DecodeFunc
	fallback DecodeFunc
}

// NewRegistry builds a registry from an explicit table. OIDs outside
// the table do not resolve, so decoding them fails with an
// unresolved-type error.
func NewRegistry(funcs map[oid.Oid]DecodeFunc) *Registry {
	copied := make(map[oid.Oid]DecodeFunc, len(funcs))
	for id, fn := range funcs {
		copied[id] = fn
	}
	return &Registry{funcs: copied}
}

func (r *Registry) Resolve(id oid.Oid) (DecodeFunc, bool) {
	if fn, ok := r.funcs[id]; ok {
		return fn, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// TextResolver resolves every OID to the identity text decode. Useful
// as a per-query override when callers want raw server text.
type TextResolver struct{}

func (TextResolver) Resolve(oid.Oid) (DecodeFunc, bool) {
	return Text, true
}

var defaultRegistry = &Registry{
	funcs: map[oid.Oid]DecodeFunc{
		oid.T_bool: Bool,

		oid.T_int2: Int,
		oid.T_int4: Int,
		oid.T_int8: Int,
		oid.T_oid:  Int,

		oid.T_float4: Float,
		oid.T_float8: Float,

		oid.T_numeric: Numeric,

		oid.T_text:    Text,
		oid.T_varchar: Text,
		oid.T_bpchar:  Text,
		oid.T_name:    Text,
		oid.T_unknown: Text,
		oid.T_uuid:    Text,

		oid.T_bytea: Bytea,

		oid.T_date:        Date,
		oid.T_timestamp:   Timestamp,
		oid.T_timestamptz: Timestamp,

		oid.T_json:  JSON,
		oid.T_jsonb: JSON,

		oid.T__bool:    Array(Bool),
		oid.T__int2:    Array(Int),
		oid.T__int4:    Array(Int),
		oid.T__int8:    Array(Int),
		oid.T__float4:  Array(Float),
		oid.T__float8:  Array(Float),
		oid.T__numeric: Array(Numeric),
		oid.T__text:    Array(Text),
		oid.T__varchar: Array(Text),
	},
	// Types without a built-in decode come back as raw text rather
	// than failing; only explicit overrides are strict.
	fallback: Text,
}

// Default returns the process-wide registry covering the built-in
// server types. It is shared and must not be mutated, which NewRegistry
// and the Resolve contract already guarantee.
func Default() *Registry {
	return defaultRegistry
}
