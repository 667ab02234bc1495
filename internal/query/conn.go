// Package query implements the query-execution core: parameter
// encoding, per-connection prepared-statement caching, extended-query
// protocol orchestration and result decoding.
package query

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vibesql/pgcore/internal/encode"
	"github.com/vibesql/pgcore/internal/pgtypes"
	"github.com/vibesql/pgcore/internal/wire"
)

// Request describes one query to execute.
type Request struct {
	// Text is the query, with values positionally bound to $1..$n.
	Text string

	// Values are the application values for the placeholders.
	Values []any

	// Name, when set, identifies a prepared statement: the first use
	// on a connection parses it server-side, later uses reuse the
	// cached plan. Empty disables caching. Reusing a name with
	// different text on the same connection is server-defined
	// behavior, not validated here.
	Name string

	// Mode selects the row shape (object map by default).
	Mode RowMode

	// TypeOverrides fully replaces the type registry for this query
	// only. Nil uses the process-wide default.
	TypeOverrides pgtypes.Resolver
}

// Config tunes a connection. The zero value is usable.
type Config struct {
	// Logger receives debug-level exchange logging. Nil is silent.
	Logger *logrus.Logger

	// MaxRows caps how many rows one query may return; zero means
	// unlimited.
	MaxRows int

	// Registry is the default type resolver. Nil uses
	// pgtypes.Default().
	Registry pgtypes.Resolver
}

// Conn executes queries over one transport. A connection is a single
// sequential channel: concurrent Query calls are serialized and
// serviced one at a time, which is also what keeps the statement cache
// race-free without extra locking.
type Conn struct {
	transport Transport
	log       logrus.FieldLogger
	maxRows   int
	registry  pgtypes.Resolver

	mu     sync.Mutex
	cache  *stmtCache
	closed bool
}

// NewConn wraps an authenticated transport in a connection.
func NewConn(t Transport, cfg Config) *Conn {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	registry := cfg.Registry
	if registry == nil {
		registry = pgtypes.Default()
	}
	return &Conn{
		transport: t,
		log:       logger.WithField("component", "query"),
		maxRows:   cfg.MaxRows,
		registry:  registry,
		cache:     newStmtCache(),
	}
}

// Query executes one request and returns its decoded result set.
//
// Shape validation and parameter encoding happen before any transport
// activity, so those failures never reach the server. The exchange
// itself is one parse/bind/execute/sync unit; named statements skip
// the parse step once the name is cached on this connection.
func (c *Conn) Query(ctx context.Context, req Request) (*ResultSet, error) {
	if err := validateRequest(req.Text, len(req.Values)); err != nil {
		return nil, err
	}

	params, err := encodeParams(req.Values)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errConnTerminated(nil)
	}

	frames, needsParse, err := c.planExchange(req, params)
	if err != nil {
		return nil, err
	}

	if err := c.transport.Send(ctx, frames...); err != nil {
		return nil, c.terminate(err)
	}

	outcome, err := c.readExchange(ctx)
	if err != nil {
		return nil, c.terminate(err)
	}

	// The parse transition is only recorded once ParseComplete came
	// back; a failed or aborted exchange leaves the cache untouched.
	if needsParse && req.Name != "" && outcome.parsed {
		c.cache.markParsed(req.Name, len(params))
		c.log.WithFields(logrus.Fields{
			"statement": req.Name,
			"params":    len(params),
		}).Debug("prepared statement cached")
	}

	if outcome.srvErr != nil {
		srv := newServerError(*outcome.srvErr, req.Text, len(params))
		if srv.Fatal() {
			return nil, c.terminate(wrapServerError(srv))
		}
		return nil, wrapServerError(srv)
	}
	if outcome.tooLarge != nil {
		return nil, outcome.tooLarge
	}

	resolver := req.TypeOverrides
	if resolver == nil {
		resolver = c.registry
	}
	res, err := decodeRows(outcome.fields, outcome.rows, req.Mode, resolver)
	if err != nil {
		return nil, err
	}
	res.CommandTag = outcome.tag
	return res, nil
}

// Close sends Terminate and tears down the transport and the statement
// cache. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cache.clear()
	_ = c.transport.Send(context.Background(), wire.Terminate())
	return c.transport.Close()
}

// CachedStatements reports how many named statements this connection
// has parsed. Exposed for introspection and tests.
func (c *Conn) CachedStatements() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.len()
}

// encodeParams encodes every value, aborting on the first failure with
// an error naming the parameter index.
func encodeParams(values []any) ([]wire.Param, error) {
	if len(values) == 0 {
		return nil, nil
	}
	params := make([]wire.Param, len(values))
	for i, v := range values {
		p, err := encode.Value(v)
		if err != nil {
			return nil, &QueryError{
				Kind:    KindParamEncoding,
				Message: "Parameter encoding failed",
				Detail:  fmt.Sprintf("parameter $%d: %v", i+1, err),
				Err:     err,
			}
		}
		params[i] = p
	}
	return params, nil
}

// planExchange picks the frame sequence for the request: full parse
// for unnamed and first-seen named statements, bind-only for cached
// names.
func (c *Conn) planExchange(req Request, params []wire.Param) ([]wire.Frame, bool, error) {
	if req.Name != "" {
		if stmt, ok := c.cache.lookup(req.Name); ok {
			if stmt.paramCount != len(params) {
				return nil, false, NewQueryError(
					KindParamCountMismatch,
					"Parameter count mismatch",
					fmt.Sprintf("statement %q was prepared with %d parameters, got %d", req.Name, stmt.paramCount, len(params)),
				)
			}
			c.log.WithField("statement", req.Name).Debug("reusing cached plan")
			return []wire.Frame{
				wire.Bind(req.Name, params),
				wire.Describe(wire.DescribePortal, ""),
				wire.Execute(0),
				wire.Sync(),
			}, false, nil
		}
	}

	return []wire.Frame{
		wire.Parse(req.Name, req.Text),
		wire.Bind(req.Name, params),
		wire.Describe(wire.DescribePortal, ""),
		wire.Execute(0),
		wire.Sync(),
	}, true, nil
}

// exchangeOutcome collects everything one response stream produced.
type exchangeOutcome struct {
	fields   []wire.FieldDescriptor
	rows     [][][]byte
	tag      string
	parsed   bool
	srvErr   *wire.ErrorResponse
	tooLarge *QueryError
}

// readExchange drains the response stream up to ReadyForQuery. Server
// errors are collected, not returned: the stream still has to be
// drained so the connection stays usable. Transport errors are
// returned and terminate the connection.
func (c *Conn) readExchange(ctx context.Context) (*exchangeOutcome, error) {
	out := &exchangeOutcome{}
	for {
		msg, err := c.transport.Receive(ctx)
		if err != nil {
			return nil, err
		}

		switch m := msg.(type) {
		case wire.ParseComplete:
			out.parsed = true
		case wire.BindComplete, wire.ParameterDescription, wire.NoData,
			wire.EmptyQueryResponse, wire.PortalSuspended, wire.ParameterStatus:
			// No action needed.
		case wire.RowDescription:
			out.fields = m.Fields
		case wire.DataRow:
			if c.maxRows > 0 && len(out.rows) >= c.maxRows && out.tooLarge == nil {
				out.tooLarge = NewQueryError(
					KindResultTooLarge,
					"Result set too large",
					fmt.Sprintf("query returned more than the configured maximum of %d rows", c.maxRows),
				)
				continue
			}
			if out.tooLarge == nil {
				out.rows = append(out.rows, m.Values)
			}
		case wire.CommandComplete:
			out.tag = m.Tag
		case wire.NoticeResponse:
			c.log.WithFields(logrus.Fields{
				"severity": m.Severity,
				"code":     m.Code,
			}).Debug(m.Message)
		case wire.ErrorResponse:
			e := m
			out.srvErr = &e
		case wire.ReadyForQuery:
			return out, nil
		default:
			return nil, fmt.Errorf("unexpected backend message %T", msg)
		}
	}
}

// terminate marks the connection dead, discards the statement cache
// and closes the transport. All queued Query calls fail the same way.
func (c *Conn) terminate(cause error) error {
	c.closed = true
	c.cache.clear()
	_ = c.transport.Close()
	c.log.WithError(cause).Warn("connection terminated")
	if qe, ok := cause.(*QueryError); ok {
		return qe
	}
	return errConnTerminated(cause)
}
