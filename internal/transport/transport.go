// Package transport provides a minimal net.Conn-backed implementation
// of the query.Transport interface: plain TCP, startup message,
// AuthOK or cleartext-password handshake. TLS, SASL and connection
// pooling are out of scope.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/vibesql/pgcore/internal/wire"
)

const defaultDialTimeout = 5 * time.Second

// Options configure a connection attempt.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Conn is a framed, full-duplex channel to one server.
type Conn struct {
	nc net.Conn
	r  *wire.Reader
	w  *bufio.Writer
}

// Dial connects, sends the startup message and completes
// authentication. It returns once the server reports ReadyForQuery.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	d := net.Dialer{Timeout: defaultDialTimeout}
	nc, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", opts.Host, opts.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", opts.Host, opts.Port, err)
	}

	c := &Conn{
		nc: nc,
		r:  wire.NewReader(nc),
		w:  bufio.NewWriter(nc),
	}
	if err := c.startup(ctx, opts); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) startup(ctx context.Context, opts Options) error {
	params := map[string]string{
		"user":            opts.User,
		"client_encoding": "UTF8",
	}
	if opts.Database != "" {
		params["database"] = opts.Database
	}
	if err := c.Send(ctx, wire.Startup(params)); err != nil {
		return err
	}

	for {
		msg, err := c.Receive(ctx)
		if err != nil {
			return fmt.Errorf("startup failed: %w", err)
		}
		switch m := msg.(type) {
		case wire.AuthRequest:
			switch m.Type {
			case wire.AuthOK:
			case wire.AuthCleartextPassword:
				if err := c.Send(ctx, wire.Password(opts.Password)); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported authentication method %d", m.Type)
			}
		case wire.ParameterStatus, wire.BackendKeyData, wire.NoticeResponse:
			// Session metadata; nothing to do with it here.
		case wire.ErrorResponse:
			return fmt.Errorf("server rejected connection: %s %s: %s", m.Severity, m.Code, m.Message)
		case wire.ReadyForQuery:
			return nil
		default:
			return fmt.Errorf("unexpected message %T during startup", msg)
		}
	}
}

// Send writes the frames and flushes them as one batch.
func (c *Conn) Send(ctx context.Context, frames ...wire.Frame) error {
	if err := c.applyDeadline(ctx); err != nil {
		return err
	}
	for _, f := range frames {
		if _, err := c.w.Write(f); err != nil {
			return err
		}
	}
	return c.w.Flush()
}

// Receive blocks until the next backend message arrives.
func (c *Conn) Receive(ctx context.Context) (wire.BackendMessage, error) {
	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}
	return c.r.Next()
}

func (c *Conn) Close() error {
	return c.nc.Close()
}

// applyDeadline maps the context deadline onto the socket. Cancelled
// contexts fail immediately; callers wanting to abort a stuck exchange
// close the connection instead.
func (c *Conn) applyDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return c.nc.SetDeadline(deadline)
	}
	return c.nc.SetDeadline(time.Time{})
}
