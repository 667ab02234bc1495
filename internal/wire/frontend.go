package wire

import (
	"encoding/binary"

	"github.com/valyala/bytebufferpool"
)

// Frame is a single framed frontend message, ready to be written to the
// server verbatim.
type Frame []byte

// Type returns the message type byte of a typed frame.
func (f Frame) Type() FrontendMessageType {
	return FrontendMessageType(f[0])
}

var framePool bytebufferpool.Pool

// frameBuilder assembles one frontend message into a pooled buffer.
// finish fixes up the length prefix and returns an owned copy, so the
// pooled buffer never escapes.
type frameBuilder struct {
	buf     *bytebufferpool.ByteBuffer
	typed   bool
	scratch [8]byte
}

func newFrame(typ FrontendMessageType) *frameBuilder {
	b := &frameBuilder{buf: framePool.Get(), typed: true}
	_ = b.buf.WriteByte(byte(typ))
	b.putInt32(0) // length placeholder, fixed up in finish
	return b
}

// newUntypedFrame starts a frame without a type byte. Only the startup
// message uses this form.
func newUntypedFrame() *frameBuilder {
	b := &frameBuilder{buf: framePool.Get()}
	b.putInt32(0)
	return b
}

func (b *frameBuilder) putInt16(v int16) {
	binary.BigEndian.PutUint16(b.scratch[:2], uint16(v))
	_, _ = b.buf.Write(b.scratch[:2])
}

func (b *frameBuilder) putInt32(v int32) {
	binary.BigEndian.PutUint32(b.scratch[:4], uint32(v))
	_, _ = b.buf.Write(b.scratch[:4])
}

// putString writes a NUL-terminated string.
func (b *frameBuilder) putString(s string) {
	_, _ = b.buf.WriteString(s)
	_ = b.buf.WriteByte(0)
}

func (b *frameBuilder) putBytes(p []byte) {
	_, _ = b.buf.Write(p)
}

// finish stamps the length prefix (which includes itself but not the
// type byte) and releases the pooled buffer.
func (b *frameBuilder) finish() Frame {
	raw := b.buf.B
	frame := make(Frame, len(raw))
	copy(frame, raw)
	if b.typed {
		binary.BigEndian.PutUint32(frame[1:5], uint32(len(frame)-1))
	} else {
		binary.BigEndian.PutUint32(frame[0:4], uint32(len(frame)))
	}
	framePool.Put(b.buf)
	return frame
}

// Startup builds the untyped startup message carrying connection
// parameters (user, database, client_encoding, ...).
func Startup(params map[string]string) Frame {
	b := newUntypedFrame()
	b.putInt32(ProtocolVersion)
	for k, v := range params {
		b.putString(k)
		b.putString(v)
	}
	_ = b.buf.WriteByte(0)
	return b.finish()
}

// Password builds a cleartext PasswordMessage.
func Password(password string) Frame {
	b := newFrame(MsgPassword)
	b.putString(password)
	return b.finish()
}

// Parse builds a Parse message for the named (or unnamed, name == "")
// prepared statement. No parameter type hints are sent; the server
// infers types from the query text.
func Parse(name, query string) Frame {
	b := newFrame(MsgParse)
	b.putString(name)
	b.putString(query)
	b.putInt16(0)
	return b.finish()
}

// Bind builds a Bind message binding params to the unnamed portal of
// the named prepared statement. Result columns are requested in text
// format.
func Bind(statement string, params []Param) Frame {
	b := newFrame(MsgBind)
	b.putString("") // unnamed portal
	b.putString(statement)

	b.putInt16(int16(len(params)))
	for _, p := range params {
		if p.Binary {
			b.putInt16(int16(FormatBinary))
		} else {
			b.putInt16(int16(FormatText))
		}
	}

	b.putInt16(int16(len(params)))
	for _, p := range params {
		if p.Value == nil {
			// NULL is length -1 with no payload.
			b.putInt32(-1)
			continue
		}
		b.putInt32(int32(len(p.Value)))
		b.putBytes(p.Value)
	}

	b.putInt16(1)
	b.putInt16(int16(FormatText))
	return b.finish()
}

// Describe builds a Describe message for a statement or portal.
func Describe(target DescribeTarget, name string) Frame {
	b := newFrame(MsgDescribe)
	_ = b.buf.WriteByte(byte(target))
	b.putString(name)
	return b.finish()
}

// Execute builds an Execute message for the unnamed portal. maxRows 0
// means no row limit.
func Execute(maxRows int32) Frame {
	b := newFrame(MsgExecute)
	b.putString("") // unnamed portal
	b.putInt32(maxRows)
	return b.finish()
}

// Sync builds a Sync message, closing the extended-query unit.
func Sync() Frame {
	b := newFrame(MsgSync)
	return b.finish()
}

// Terminate builds a Terminate message.
func Terminate() Frame {
	b := newFrame(MsgTerminate)
	return b.finish()
}
