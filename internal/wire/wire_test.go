package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/lib/pq/oid"
)

func TestParse_FrameLayout(t *testing.T) {
	f := Parse("fetch-user", "SELECT * FROM users WHERE id = $1")

	if f.Type() != MsgParse {
		t.Fatalf("expected type 'P', got %q", byte(f.Type()))
	}

	length := binary.BigEndian.Uint32(f[1:5])
	if int(length) != len(f)-1 {
		t.Errorf("length prefix = %d, want %d", length, len(f)-1)
	}

	body := f[5:]
	if !bytes.HasPrefix(body, []byte("fetch-user\x00")) {
		t.Errorf("frame body does not start with statement name: %q", body)
	}
}

func TestBind_NullAndBinaryParams(t *testing.T) {
	params := []Param{
		{Value: []byte("x")},
		{Value: nil},
		{Value: []byte{0xde, 0xad}, Binary: true},
	}
	f := Bind("stmt", params)

	if f.Type() != MsgBind {
		t.Fatalf("expected type 'B', got %q", byte(f.Type()))
	}

	// Skip portal "", statement name, then check format codes.
	body := f[5:]
	body = body[1:] // unnamed portal NUL
	nul := bytes.IndexByte(body, 0)
	body = body[nul+1:]

	numFormats := int16(binary.BigEndian.Uint16(body[:2]))
	if numFormats != 3 {
		t.Fatalf("expected 3 format codes, got %d", numFormats)
	}
	formats := []FormatCode{
		FormatCode(binary.BigEndian.Uint16(body[2:4])),
		FormatCode(binary.BigEndian.Uint16(body[4:6])),
		FormatCode(binary.BigEndian.Uint16(body[6:8])),
	}
	want := []FormatCode{FormatText, FormatText, FormatBinary}
	for i := range want {
		if formats[i] != want[i] {
			t.Errorf("format[%d] = %d, want %d", i, formats[i], want[i])
		}
	}

	body = body[8:]
	numValues := int16(binary.BigEndian.Uint16(body[:2]))
	if numValues != 3 {
		t.Fatalf("expected 3 values, got %d", numValues)
	}
	body = body[2:]

	// First value: length 1, "x".
	if l := int32(binary.BigEndian.Uint32(body[:4])); l != 1 {
		t.Errorf("value[0] length = %d, want 1", l)
	}
	body = body[4+1:]

	// Second value: NULL length -1, no payload.
	if l := int32(binary.BigEndian.Uint32(body[:4])); l != -1 {
		t.Errorf("value[1] length = %d, want -1", l)
	}
}

func TestExecute_UnnamedPortal(t *testing.T) {
	f := Execute(0)
	if f.Type() != MsgExecute {
		t.Fatalf("expected type 'E', got %q", byte(f.Type()))
	}
	// Body: portal "" NUL + maxRows int32.
	if len(f) != 5+1+4 {
		t.Errorf("unexpected frame size %d", len(f))
	}
}

func TestStartup_Untyped(t *testing.T) {
	f := Startup(map[string]string{"user": "postgres"})

	length := binary.BigEndian.Uint32(f[0:4])
	if int(length) != len(f) {
		t.Errorf("length prefix = %d, want %d", length, len(f))
	}
	version := int32(binary.BigEndian.Uint32(f[4:8]))
	if version != ProtocolVersion {
		t.Errorf("protocol version = %d, want %d", version, ProtocolVersion)
	}
	if f[len(f)-1] != 0 {
		t.Error("startup message must end with a zero byte")
	}
}

// backendWriter builds raw backend messages for reader tests.
type backendWriter struct {
	buf bytes.Buffer
}

func (w *backendWriter) msg(typ BackendMessageType, body []byte) {
	w.buf.WriteByte(byte(typ))
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(body)+4))
	w.buf.Write(l[:])
	w.buf.Write(body)
}

func int16be(v int16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	return b[:]
}

func int32be(v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func TestReader_RowDescriptionAndDataRow(t *testing.T) {
	var w backendWriter

	var desc bytes.Buffer
	desc.Write(int16be(2))
	desc.WriteString("a\x00")
	desc.Write(int32be(0))          // table OID
	desc.Write(int16be(0))          // attr number
	desc.Write(int32be(25))         // text
	desc.Write(int16be(-1))         // size
	desc.Write(int32be(-1))         // typmod
	desc.Write(int16be(0))          // text format
	desc.WriteString("b\x00")
	desc.Write(int32be(0))
	desc.Write(int16be(0))
	desc.Write(int32be(23)) // int4
	desc.Write(int16be(4))
	desc.Write(int32be(-1))
	desc.Write(int16be(0))
	w.msg(MsgRowDescription, desc.Bytes())

	var row bytes.Buffer
	row.Write(int16be(2))
	row.Write(int32be(1))
	row.WriteString("x")
	row.Write(int32be(-1)) // NULL
	w.msg(MsgDataRow, row.Bytes())

	w.msg(MsgCommandComplete, []byte("SELECT 1\x00"))
	w.msg(MsgReadyForQuery, []byte{'I'})

	r := NewReader(&w.buf)

	msg, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rd, ok := msg.(RowDescription)
	if !ok {
		t.Fatalf("expected RowDescription, got %T", msg)
	}
	if len(rd.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(rd.Fields))
	}
	if rd.Fields[0].Name != "a" || rd.Fields[0].DataTypeOID != oid.T_text {
		t.Errorf("field[0] = %+v", rd.Fields[0])
	}
	if rd.Fields[1].Name != "b" || rd.Fields[1].DataTypeOID != oid.T_int4 {
		t.Errorf("field[1] = %+v", rd.Fields[1])
	}

	msg, err = r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dr, ok := msg.(DataRow)
	if !ok {
		t.Fatalf("expected DataRow, got %T", msg)
	}
	if string(dr.Values[0]) != "x" {
		t.Errorf("value[0] = %q, want \"x\"", dr.Values[0])
	}
	if dr.Values[1] != nil {
		t.Errorf("value[1] = %v, want nil (NULL)", dr.Values[1])
	}

	msg, err = r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cc, ok := msg.(CommandComplete)
	if !ok {
		t.Fatalf("expected CommandComplete, got %T", msg)
	}
	if cc.Tag != "SELECT 1" {
		t.Errorf("tag = %q, want \"SELECT 1\"", cc.Tag)
	}

	msg, err = r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rq, ok := msg.(ReadyForQuery)
	if !ok {
		t.Fatalf("expected ReadyForQuery, got %T", msg)
	}
	if rq.TxStatus != 'I' {
		t.Errorf("tx status = %q, want 'I'", rq.TxStatus)
	}
}

func TestReader_ErrorResponse(t *testing.T) {
	var w backendWriter
	var body bytes.Buffer
	body.WriteString("SERROR\x00")
	body.WriteString("C42P01\x00")
	body.WriteString("Mrelation \"missing\" does not exist\x00")
	body.WriteString("P15\x00")
	body.WriteByte(0)
	w.msg(MsgErrorResponse, body.Bytes())

	r := NewReader(&w.buf)
	msg, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	er, ok := msg.(ErrorResponse)
	if !ok {
		t.Fatalf("expected ErrorResponse, got %T", msg)
	}
	if er.Severity != "ERROR" || er.Code != "42P01" {
		t.Errorf("unexpected error fields: %+v", er)
	}
	if er.Position != 15 {
		t.Errorf("position = %d, want 15", er.Position)
	}
}

func TestReader_AuthAndStatusMessages(t *testing.T) {
	var w backendWriter
	w.msg(MsgAuth, int32be(AuthOK))
	w.msg(MsgParameterStatus, []byte("server_version\x0016.2\x00"))
	w.msg(MsgBackendKeyData, append(int32be(1234), int32be(5678)...))

	r := NewReader(&w.buf)

	msg, _ := r.Next()
	if ar, ok := msg.(AuthRequest); !ok || ar.Type != AuthOK {
		t.Errorf("expected AuthRequest{AuthOK}, got %#v", msg)
	}

	msg, _ = r.Next()
	if ps, ok := msg.(ParameterStatus); !ok || ps.Name != "server_version" || ps.Value != "16.2" {
		t.Errorf("expected server_version=16.2, got %#v", msg)
	}

	msg, _ = r.Next()
	if kd, ok := msg.(BackendKeyData); !ok || kd.PID != 1234 || kd.SecretKey != 5678 {
		t.Errorf("expected key data 1234/5678, got %#v", msg)
	}
}
