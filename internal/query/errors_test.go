package query

import (
	"errors"
	"testing"

	"github.com/vibesql/pgcore/internal/wire"
)

func TestQueryError_Error(t *testing.T) {
	err := NewQueryError(KindParamEncoding, "Parameter encoding failed", "parameter $3")
	want := "PARAM_ENCODING: Parameter encoding failed (parameter $3)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = NewQueryError(KindConnTerminated, "connection terminated", "")
	want = "CONNECTION_TERMINATED: connection terminated"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestQueryError_KindMatching(t *testing.T) {
	err := error(NewQueryError(KindServer, "boom", ""))

	if !errors.Is(err, &QueryError{Kind: KindServer}) {
		t.Error("expected kinds to match")
	}
	if errors.Is(err, &QueryError{Kind: KindConnTerminated}) {
		t.Error("different kinds must not match")
	}
}

func TestServerError_FromWire(t *testing.T) {
	srv := newServerError(wire.ErrorResponse{
		Severity: "ERROR",
		Code:     "23505",
		Message:  "duplicate key value",
		Detail:   "Key (id)=(1) already exists.",
		Position: 1,
	}, "INSERT INTO t VALUES ($1)", 1)

	if srv.Fatal() {
		t.Error("ERROR severity is not fatal")
	}
	if srv.Query != "INSERT INTO t VALUES ($1)" || srv.ParamCount != 1 {
		t.Errorf("query context missing: %+v", srv)
	}

	wrapped := wrapServerError(srv)
	var out *ServerError
	if !errors.As(wrapped, &out) || out.Code != "23505" {
		t.Errorf("expected wrapped ServerError, got: %v", wrapped)
	}

	fatal := newServerError(wire.ErrorResponse{Severity: "FATAL", Code: "57P01"}, "SELECT 1", 0)
	if !fatal.Fatal() {
		t.Error("FATAL severity must report fatal")
	}
}
