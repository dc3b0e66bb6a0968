// Package xerrors defines the protocol-level error taxonomy shared by
// transport, wire, session, auth, result and row: sentinel Kind values plus
// a wrapping struct with Unwrap and Is* predicates, so callers can either
// match on Kind or use errors.Is/As.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the mnemonic protocol error categories a client can raise.
type Kind int

const (
	Unknown Kind = iota
	Transport
	Tls
	SocketCreate
	WrongHostInfo
	UnknownHost
	ServerGone
	BrokenPipe
	MalformedPacket
	CommandsOutOfSync
	InvalidAuthMethod
	ServerError
	TypeMismatch
	IndexOutOfRange
	StateAbuse
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport error"
	case Tls:
		return "TLS error"
	case SocketCreate:
		return "could not create socket"
	case WrongHostInfo:
		return "wrong host info"
	case UnknownHost:
		return "unknown host"
	case ServerGone:
		return "MySQL server has gone away"
	case BrokenPipe:
		return "broken pipe"
	case MalformedPacket:
		return "malformed packet"
	case CommandsOutOfSync:
		return "commands out of sync"
	case InvalidAuthMethod:
		return "invalid authentication method"
	case ServerError:
		return "server error"
	case TypeMismatch:
		return "field type mismatch"
	case IndexOutOfRange:
		return "field index out of range"
	case StateAbuse:
		return "invalid operation for current state"
	default:
		return "unknown error"
	}
}

// Numeric error codes surfaced to callers who need the legacy mnemonic
// code space used by the C client libraries this protocol descends from.
const (
	CodeUnknown            = 2000
	CodeSocketCreate       = 2001
	CodeConnectionError    = 2002
	CodeUnknownHost        = 2005
	CodeServerGone         = 2006
	CodeBrokenPipe         = 2007
	CodeWrongHostInfo      = 2009
	CodeCommandsOutOfSync  = 2014
	CodeSSLConnectionError = 2026
	CodeMalformedPacket    = 2027
	CodeInvalidAuthMethod  = 2028
)

var kindCode = map[Kind]int{
	Transport:         CodeConnectionError,
	Tls:               CodeSSLConnectionError,
	SocketCreate:      CodeSocketCreate,
	WrongHostInfo:     CodeWrongHostInfo,
	UnknownHost:       CodeUnknownHost,
	ServerGone:        CodeServerGone,
	BrokenPipe:        CodeBrokenPipe,
	MalformedPacket:   CodeMalformedPacket,
	CommandsOutOfSync: CodeCommandsOutOfSync,
	InvalidAuthMethod: CodeInvalidAuthMethod,
}

// ProtocolError is the concrete error type returned across package
// boundaries for every Kind above except ServerError, which carries its own
// richer ServerFault payload.
type ProtocolError struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// Code returns the numeric mnemonic for this error's Kind, or CodeUnknown
// if the kind has none assigned.
func (e *ProtocolError) Code() int {
	if c, ok := kindCode[e.Kind]; ok {
		return c
	}
	return CodeUnknown
}

// New builds a ProtocolError with no underlying cause.
func New(kind Kind, detail string) error {
	return &ProtocolError{Kind: kind, Detail: detail}
}

// Wrap builds a ProtocolError around an underlying cause, preserving it for
// errors.Unwrap/errors.Is chains.
func Wrap(kind Kind, cause error, detail string) error {
	return &ProtocolError{Kind: kind, Detail: detail, Cause: cause}
}

// Is reports whether err is a ProtocolError of the given Kind.
func Is(err error, kind Kind) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Severity of a server-originated error.
type Severity int

const (
	SeverityError Severity = iota
	SeverityFatal
)

// ServerFault is the error kind for a server-originated ERROR message:
// {code, sql_state, message, severity}. It is returned instead of
// ProtocolError{Kind: ServerError} because callers routinely need the
// numeric server code and SQLSTATE independently of the Go error string.
type ServerFault struct {
	Code     uint32
	SQLState string
	Message  string
	Severity Severity
}

func (e *ServerFault) Error() string {
	return fmt.Sprintf("server error %d (%s): %s", e.Code, e.SQLState, e.Message)
}

// IsFatal reports whether the server marked this fault as connection-fatal.
func (e *ServerFault) IsFatal() bool { return e.Severity == SeverityFatal }

// AsServerFault reports whether err is (or wraps) a *ServerFault.
func AsServerFault(err error) (*ServerFault, bool) {
	var sf *ServerFault
	ok := errors.As(err, &sf)
	return sf, ok
}
