package query

import (
	"errors"
	"fmt"

	"github.com/vibesql/pgcore/internal/wire"
)

// Error kinds returned by Conn.Query
const (
	KindMissingQueryText   = "MISSING_QUERY_TEXT"
	KindParamEncoding      = "PARAM_ENCODING"
	KindParamCountMismatch = "PARAM_COUNT_MISMATCH"
	KindServer             = "SERVER_ERROR"
	KindUnresolvedType     = "UNRESOLVED_TYPE"
	KindColumnDecode       = "COLUMN_DECODE"
	KindConnTerminated     = "CONNECTION_TERMINATED"
	KindResultTooLarge     = "RESULT_TOO_LARGE"
)

// QueryError is the typed error surface of the executor. Kind is one of
// the constants above; Detail carries context safe to log (query text
// and parameter counts, never parameter values).
type QueryError struct {
	Kind    string
	Message string
	Detail  string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on Kind, so callers can compare against a
// bare &QueryError{Kind: ...} sentinel.
func (e *QueryError) Is(target error) bool {
	var qe *QueryError
	if !errors.As(target, &qe) {
		return false
	}
	return qe.Kind == e.Kind
}

// NewQueryError creates a new typed executor error.
func NewQueryError(kind, message, detail string) *QueryError {
	return &QueryError{
		Kind:    kind,
		Message: message,
		Detail:  detail,
	}
}

// ServerError is a structured error reported by the database. The
// connection remains usable unless the server signals otherwise via
// Severity FATAL or PANIC.
type ServerError struct {
	Severity string
	Code     string
	Message  string
	Detail   string
	Hint     string
	Position int

	// Query context, attached by the executor. Parameter values are
	// deliberately not included.
	Query      string
	ParamCount int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Severity, e.Code, e.Message)
}

// Fatal reports whether the server terminated the session with this
// error.
func (e *ServerError) Fatal() bool {
	return e.Severity == "FATAL" || e.Severity == "PANIC"
}

func newServerError(m wire.ErrorResponse, queryText string, paramCount int) *ServerError {
	return &ServerError{
		Severity:   m.Severity,
		Code:       m.Code,
		Message:    m.Message,
		Detail:     m.Detail,
		Hint:       m.Hint,
		Position:   m.Position,
		Query:      queryText,
		ParamCount: paramCount,
	}
}

func wrapServerError(srv *ServerError) *QueryError {
	return &QueryError{
		Kind:    KindServer,
		Message: srv.Message,
		Detail:  fmt.Sprintf("query: %s (%d parameters)", srv.Query, srv.ParamCount),
		Err:     srv,
	}
}

func errConnTerminated(cause error) *QueryError {
	return &QueryError{
		Kind:    KindConnTerminated,
		Message: "connection terminated",
		Err:     cause,
	}
}
