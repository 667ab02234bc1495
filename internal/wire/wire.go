// Package wire implements the PostgreSQL frontend/backend protocol
// (version 3) message framing used by the query executor: building
// frontend frames and parsing backend messages.
//
// https://www.postgresql.org/docs/current/protocol-message-formats.html
package wire

import (
	"github.com/lib/pq/oid"
)

type FrontendMessageType byte
type BackendMessageType byte

const (
	MsgBind      FrontendMessageType = 'B'
	MsgClose     FrontendMessageType = 'C'
	MsgDescribe  FrontendMessageType = 'D'
	MsgExecute   FrontendMessageType = 'E'
	MsgFlush     FrontendMessageType = 'H'
	MsgParse     FrontendMessageType = 'P'
	MsgPassword  FrontendMessageType = 'p'
	MsgQuery     FrontendMessageType = 'Q'
	MsgSync      FrontendMessageType = 'S'
	MsgTerminate FrontendMessageType = 'X'

	MsgAuth                 BackendMessageType = 'R'
	MsgBackendKeyData       BackendMessageType = 'K'
	MsgBindComplete         BackendMessageType = '2'
	MsgCloseComplete        BackendMessageType = '3'
	MsgCommandComplete      BackendMessageType = 'C'
	MsgDataRow              BackendMessageType = 'D'
	MsgEmptyQueryResponse   BackendMessageType = 'I'
	MsgErrorResponse        BackendMessageType = 'E'
	MsgNoData               BackendMessageType = 'n'
	MsgNoticeResponse       BackendMessageType = 'N'
	MsgNotification         BackendMessageType = 'A'
	MsgParameterDescription BackendMessageType = 't'
	MsgParameterStatus      BackendMessageType = 'S'
	MsgParseComplete        BackendMessageType = '1'
	MsgPortalSuspended      BackendMessageType = 's'
	MsgReadyForQuery        BackendMessageType = 'Z'
	MsgRowDescription       BackendMessageType = 'T'
)

// DescribeTarget selects what a Describe message refers to.
type DescribeTarget byte

const (
	DescribeStatement DescribeTarget = 'S'
	DescribePortal    DescribeTarget = 'P'
)

// FormatCode selects the wire representation of a parameter or column.
// Text is zero, binary is one; all other codes are reserved.
//
// https://www.postgresql.org/docs/current/protocol-overview.html#PROTOCOL-FORMAT-CODES
type FormatCode int16

const (
	FormatText   FormatCode = 0
	FormatBinary FormatCode = 1
)

// Protocol version 3.0 and the negotiation codes sent before startup.
const (
	ProtocolVersion int32 = 196608 // 3 << 16
	SSLRequestCode  int32 = 80877103
)

// Authentication sub-types carried inside 'R' messages.
const (
	AuthOK                int32 = 0
	AuthCleartextPassword int32 = 3
	AuthMD5Password       int32 = 5
	AuthSASL              int32 = 10
)

// Param is one encoded query parameter, ready for a Bind message.
// A nil Value binds SQL NULL. Binary parameters are sent with format
// code 1 and their bytes untouched.
type Param struct {
	Value  []byte
	Binary bool
}

// FieldDescriptor describes one column of a result set, as reported by
// a RowDescription message. Immutable for the lifetime of one result.
type FieldDescriptor struct {
	Name         string
	TableOID     uint32
	AttrNumber   int16
	DataTypeOID  oid.Oid
	DataTypeSize int16
	TypeModifier int32
	Format       FormatCode
}
