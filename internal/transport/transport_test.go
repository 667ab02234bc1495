package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/vibesql/pgcore/internal/wire"
)

// scriptedServer accepts one connection and drives a canned handshake.
type scriptedServer struct {
	ln   net.Listener
	done chan error
}

func newScriptedServer(t *testing.T, handle func(net.Conn) error) *scriptedServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &scriptedServer{ln: ln, done: make(chan error, 1)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			s.done <- err
			return
		}
		defer conn.Close()
		s.done <- handle(conn)
	}()
	return s
}

func (s *scriptedServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *scriptedServer) wait(t *testing.T) {
	t.Helper()
	select {
	case err := <-s.done:
		if err != nil {
			t.Fatalf("server: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not finish")
	}
}

func readStartup(conn net.Conn) (map[string]string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	size := int(binary.BigEndian.Uint32(lenBuf[:])) - 4
	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}

	params := map[string]string{}
	body = body[4:] // protocol version
	for len(body) > 1 {
		end := 0
		for body[end] != 0 {
			end++
		}
		key := string(body[:end])
		body = body[end+1:]
		end = 0
		for body[end] != 0 {
			end++
		}
		params[key] = string(body[:end])
		body = body[end+1:]
	}
	return params, nil
}

func writeMsg(w io.Writer, typ wire.BackendMessageType, body []byte) error {
	var hdr [5]byte
	hdr[0] = byte(typ)
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(body)+4))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func int32be(v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func TestDial_TrustHandshake(t *testing.T) {
	srv := newScriptedServer(t, func(conn net.Conn) error {
		params, err := readStartup(conn)
		if err != nil {
			return err
		}
		if params["user"] != "postgres" || params["database"] != "appdb" {
			t.Errorf("unexpected startup params: %v", params)
		}

		w := bufio.NewWriter(conn)
		_ = writeMsg(w, wire.MsgAuth, int32be(wire.AuthOK))
		_ = writeMsg(w, wire.MsgParameterStatus, []byte("server_version\x0016.2\x00"))
		_ = writeMsg(w, wire.MsgBackendKeyData, append(int32be(99), int32be(100)...))
		_ = writeMsg(w, wire.MsgReadyForQuery, []byte{'I'})
		return w.Flush()
	})

	c, err := Dial(context.Background(), Options{
		Host:     "127.0.0.1",
		Port:     srv.port(),
		User:     "postgres",
		Database: "appdb",
	})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer c.Close()
	srv.wait(t)
}

func TestDial_CleartextPassword(t *testing.T) {
	srv := newScriptedServer(t, func(conn net.Conn) error {
		if _, err := readStartup(conn); err != nil {
			return err
		}

		w := bufio.NewWriter(conn)
		_ = writeMsg(w, wire.MsgAuth, int32be(wire.AuthCleartextPassword))
		if err := w.Flush(); err != nil {
			return err
		}

		// PasswordMessage: 'p', length, NUL-terminated password.
		var hdr [5]byte
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			return err
		}
		body := make([]byte, binary.BigEndian.Uint32(hdr[1:])-4)
		if _, err := io.ReadFull(conn, body); err != nil {
			return err
		}
		if hdr[0] != 'p' || string(body) != "hunter2\x00" {
			t.Errorf("unexpected password message: %c %q", hdr[0], body)
		}

		_ = writeMsg(w, wire.MsgAuth, int32be(wire.AuthOK))
		_ = writeMsg(w, wire.MsgReadyForQuery, []byte{'I'})
		return w.Flush()
	})

	c, err := Dial(context.Background(), Options{
		Host:     "127.0.0.1",
		Port:     srv.port(),
		User:     "postgres",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer c.Close()
	srv.wait(t)
}

func TestDial_ServerRejects(t *testing.T) {
	srv := newScriptedServer(t, func(conn net.Conn) error {
		if _, err := readStartup(conn); err != nil {
			return err
		}
		w := bufio.NewWriter(conn)
		_ = writeMsg(w, wire.MsgErrorResponse, []byte("SFATAL\x00C28000\x00Mno pg_hba.conf entry\x00\x00"))
		return w.Flush()
	})

	_, err := Dial(context.Background(), Options{
		Host: "127.0.0.1",
		Port: srv.port(),
		User: "nobody",
	})
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	srv.wait(t)
}
