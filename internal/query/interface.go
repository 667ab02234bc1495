package query

import (
	"context"

	"github.com/vibesql/pgcore/internal/wire"
)

// Transport is the ordered, full-duplex byte channel a Conn drives.
// Implementations own the socket, TLS and the authentication
// handshake; the executor only sends framed messages and consumes the
// response stream of the current exchange. Messages of one exchange
// must arrive before the next exchange begins.
type Transport interface {
	// Send writes the given frames and flushes them as one batch.
	Send(ctx context.Context, frames ...wire.Frame) error

	// Receive blocks until the next backend message of the current
	// exchange is available.
	Receive(ctx context.Context) (wire.BackendMessage, error)

	Close() error
}

// Querier is the caller-facing surface of a connection.
type Querier interface {
	Query(ctx context.Context, req Request) (*ResultSet, error)
}

// Ensure Conn implements Querier
var _ Querier = (*Conn)(nil)
