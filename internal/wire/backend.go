package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/lib/pq/oid"
)

const maxMessageSize = 1 << 24

// BackendMessage is one message received from the server.
type BackendMessage interface {
	backend()
}

type ParseComplete struct{}
type BindComplete struct{}
type CloseComplete struct{}
type NoData struct{}
type EmptyQueryResponse struct{}
type PortalSuspended struct{}

// ReadyForQuery ends one extended-query unit. TxStatus is 'I' (idle),
// 'T' (in transaction) or 'E' (failed transaction).
type ReadyForQuery struct {
	TxStatus byte
}

type RowDescription struct {
	Fields []FieldDescriptor
}

// DataRow holds one row's raw column values. A nil element is SQL NULL.
// The slices are owned by the caller; the reader never aliases them to
// its internal buffer.
type DataRow struct {
	Values [][]byte
}

type CommandComplete struct {
	Tag string
}

type ParameterDescription struct {
	TypeOIDs []oid.Oid
}

type ParameterStatus struct {
	Name  string
	Value string
}

type BackendKeyData struct {
	PID       uint32
	SecretKey uint32
}

// AuthRequest is an authentication exchange message ('R'). Type is one
// of the Auth* constants; Data carries any type-specific payload.
type AuthRequest struct {
	Type int32
	Data []byte
}

// ErrorResponse is a structured server error.
type ErrorResponse struct {
	Severity string
	Code     string
	Message  string
	Detail   string
	Hint     string
	Position int
}

// NoticeResponse carries a non-fatal server notice with the same
// structure as an error.
type NoticeResponse struct {
	Severity string
	Code     string
	Message  string
}

func (ParseComplete) backend()        {}
func (BindComplete) backend()         {}
func (CloseComplete) backend()        {}
func (NoData) backend()               {}
func (EmptyQueryResponse) backend()   {}
func (PortalSuspended) backend()      {}
func (ReadyForQuery) backend()        {}
func (RowDescription) backend()       {}
func (DataRow) backend()              {}
func (CommandComplete) backend()      {}
func (ParameterDescription) backend() {}
func (ParameterStatus) backend()      {}
func (BackendKeyData) backend()       {}
func (AuthRequest) backend()          {}
func (ErrorResponse) backend()        {}
func (NoticeResponse) backend()       {}

// readBuffer holds the body of the message currently being decoded.
// Successive messages reuse spare capacity at the end of the slice.
type readBuffer struct {
	msg []byte
	tmp [4]byte
}

// reset sets b.msg to exactly size, reusing spare capacity when
// possible.
func (b *readBuffer) reset(size int) {
	if b.msg != nil {
		b.msg = b.msg[len(b.msg):]
	}
	if cap(b.msg) >= size {
		b.msg = b.msg[:size]
		return
	}
	allocSize := size
	if allocSize < 4096 {
		allocSize = 4096
	}
	b.msg = make([]byte, size, allocSize)
}

// readTypedMsg reads one type byte plus a length-prefixed body.
func (b *readBuffer) readTypedMsg(rd *bufio.Reader) (BackendMessageType, error) {
	typ, err := rd.ReadByte()
	if err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(rd, b.tmp[:]); err != nil {
		return 0, err
	}
	size := int(binary.BigEndian.Uint32(b.tmp[:]))
	size -= 4 // the length prefix includes itself
	if size < 0 || size > maxMessageSize {
		return 0, fmt.Errorf("wire: message size %d out of bounds (0..%d)", size, maxMessageSize)
	}
	b.reset(size)
	_, err = io.ReadFull(rd, b.msg)
	return BackendMessageType(typ), err
}

// getString reads a NUL-terminated string.
func (b *readBuffer) getString() (string, error) {
	pos := bytes.IndexByte(b.msg, 0)
	if pos == -1 {
		return "", fmt.Errorf("wire: NUL terminator not found")
	}
	s := string(b.msg[:pos])
	b.msg = b.msg[pos+1:]
	return s, nil
}

func (b *readBuffer) getByte() (byte, error) {
	if len(b.msg) < 1 {
		return 0, fmt.Errorf("wire: insufficient data: %d", len(b.msg))
	}
	v := b.msg[0]
	b.msg = b.msg[1:]
	return v, nil
}

func (b *readBuffer) getBytes(n int) ([]byte, error) {
	if len(b.msg) < n {
		return nil, fmt.Errorf("wire: insufficient data: %d", len(b.msg))
	}
	v := b.msg[:n]
	b.msg = b.msg[n:]
	return v, nil
}

func (b *readBuffer) getInt16() (int16, error) {
	if len(b.msg) < 2 {
		return 0, fmt.Errorf("wire: insufficient data: %d", len(b.msg))
	}
	v := int16(binary.BigEndian.Uint16(b.msg[:2]))
	b.msg = b.msg[2:]
	return v, nil
}

func (b *readBuffer) getInt32() (int32, error) {
	if len(b.msg) < 4 {
		return 0, fmt.Errorf("wire: insufficient data: %d", len(b.msg))
	}
	v := int32(binary.BigEndian.Uint32(b.msg[:4]))
	b.msg = b.msg[4:]
	return v, nil
}

// Reader decodes a backend message stream.
type Reader struct {
	rd  *bufio.Reader
	buf readBuffer
}

func NewReader(r io.Reader) *Reader {
	return &Reader{rd: bufio.NewReader(r)}
}

// Next reads and decodes the next backend message. It blocks until a
// full message is available or the underlying reader fails.
func (r *Reader) Next() (BackendMessage, error) {
	typ, err := r.buf.readTypedMsg(r.rd)
	if err != nil {
		return nil, err
	}

	switch typ {
	case MsgParseComplete:
		return ParseComplete{}, nil
	case MsgBindComplete:
		return BindComplete{}, nil
	case MsgCloseComplete:
		return CloseComplete{}, nil
	case MsgNoData:
		return NoData{}, nil
	case MsgEmptyQueryResponse:
		return EmptyQueryResponse{}, nil
	case MsgPortalSuspended:
		return PortalSuspended{}, nil
	case MsgReadyForQuery:
		status, err := r.buf.getByte()
		if err != nil {
			return nil, err
		}
		return ReadyForQuery{TxStatus: status}, nil
	case MsgRowDescription:
		return r.parseRowDescription()
	case MsgDataRow:
		return r.parseDataRow()
	case MsgCommandComplete:
		tag, err := r.buf.getString()
		if err != nil {
			return nil, err
		}
		return CommandComplete{Tag: tag}, nil
	case MsgParameterDescription:
		return r.parseParameterDescription()
	case MsgParameterStatus:
		name, err := r.buf.getString()
		if err != nil {
			return nil, err
		}
		value, err := r.buf.getString()
		if err != nil {
			return nil, err
		}
		return ParameterStatus{Name: name, Value: value}, nil
	case MsgBackendKeyData:
		pid, err := r.buf.getInt32()
		if err != nil {
			return nil, err
		}
		key, err := r.buf.getInt32()
		if err != nil {
			return nil, err
		}
		return BackendKeyData{PID: uint32(pid), SecretKey: uint32(key)}, nil
	case MsgAuth:
		authType, err := r.buf.getInt32()
		if err != nil {
			return nil, err
		}
		data := make([]byte, len(r.buf.msg))
		copy(data, r.buf.msg)
		return AuthRequest{Type: authType, Data: data}, nil
	case MsgErrorResponse:
		return r.parseErrorResponse()
	case MsgNoticeResponse:
		fields, err := r.parseErrorFields()
		if err != nil {
			return nil, err
		}
		return NoticeResponse{
			Severity: fields['S'],
			Code:     fields['C'],
			Message:  fields['M'],
		}, nil
	default:
		return nil, fmt.Errorf("wire: unexpected backend message type %q", byte(typ))
	}
}

func (r *Reader) parseRowDescription() (BackendMessage, error) {
	n, err := r.buf.getInt16()
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDescriptor, n)
	for i := range fields {
		name, err := r.buf.getString()
		if err != nil {
			return nil, err
		}
		tableOID, err := r.buf.getInt32()
		if err != nil {
			return nil, err
		}
		attrNum, err := r.buf.getInt16()
		if err != nil {
			return nil, err
		}
		typeOID, err := r.buf.getInt32()
		if err != nil {
			return nil, err
		}
		size, err := r.buf.getInt16()
		if err != nil {
			return nil, err
		}
		typeMod, err := r.buf.getInt32()
		if err != nil {
			return nil, err
		}
		format, err := r.buf.getInt16()
		if err != nil {
			return nil, err
		}
		fields[i] = FieldDescriptor{
			Name:         name,
			TableOID:     uint32(tableOID),
			AttrNumber:   attrNum,
			DataTypeOID:  oid.Oid(typeOID),
			DataTypeSize: size,
			TypeModifier: typeMod,
			Format:       FormatCode(format),
		}
	}
	return RowDescription{Fields: fields}, nil
}

// parseDataRow copies column values out of the reusable read buffer
// into a single fresh backing array, one allocation per row.
func (r *Reader) parseDataRow() (BackendMessage, error) {
	n, err := r.buf.getInt16()
	if err != nil {
		return nil, err
	}
	backing := make([]byte, 0, len(r.buf.msg))
	values := make([][]byte, n)
	for i := range values {
		vlen, err := r.buf.getInt32()
		if err != nil {
			return nil, err
		}
		if vlen == -1 {
			continue // NULL
		}
		raw, err := r.buf.getBytes(int(vlen))
		if err != nil {
			return nil, err
		}
		start := len(backing)
		backing = append(backing, raw...)
		values[i] = backing[start:len(backing):len(backing)]
	}
	return DataRow{Values: values}, nil
}

func (r *Reader) parseParameterDescription() (BackendMessage, error) {
	n, err := r.buf.getInt16()
	if err != nil {
		return nil, err
	}
	oids := make([]oid.Oid, n)
	for i := range oids {
		v, err := r.buf.getInt32()
		if err != nil {
			return nil, err
		}
		oids[i] = oid.Oid(v)
	}
	return ParameterDescription{TypeOIDs: oids}, nil
}

func (r *Reader) parseErrorResponse() (BackendMessage, error) {
	fields, err := r.parseErrorFields()
	if err != nil {
		return nil, err
	}
	position := 0
	if p := fields['P']; p != "" {
		position, _ = strconv.Atoi(p)
	}
	return ErrorResponse{
		Severity: fields['S'],
		Code:     fields['C'],
		Message:  fields['M'],
		Detail:   fields['D'],
		Hint:     fields['H'],
		Position: position,
	}, nil
}

// parseErrorFields reads the tag/value pairs shared by ErrorResponse
// and NoticeResponse, terminated by a zero tag byte.
func (r *Reader) parseErrorFields() (map[byte]string, error) {
	fields := make(map[byte]string)
	for {
		tag, err := r.buf.getByte()
		if err != nil {
			return nil, err
		}
		if tag == 0 {
			return fields, nil
		}
		value, err := r.buf.getString()
		if err != nil {
			return nil, err
		}
		fields[tag] = value
	}
}
