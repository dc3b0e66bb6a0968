// Package wire implements the X Protocol's outer frame codec: a 5-byte
// header (little-endian payload length including the type byte, plus the
// type byte itself) wrapping a mysqlxpb message payload, and the static
// type-tag dispatch table used to parse an inbound frame without the caller
// naming the expected type up front.
//
// Grounded on the shape of server/protocol/mysql_codec.go and
// server/protocol/message.go's length-prefixed framing + decode-by-tag
// switch, reimplemented for the X Protocol's header layout — see DESIGN.md's
// C2 entry.
package wire

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/zhukovaskychina/xmysqlx/internal/xerrors"
	"github.com/zhukovaskychina/xmysqlx/internal/xlog"
	"github.com/zhukovaskychina/xmysqlx/transport"
	"github.com/zhukovaskychina/xmysqlx/wire/mysqlxpb"
)

// HeaderSize is the fixed 5-byte frame header: u32_le(len(payload)+1) followed
// by the single type-tag byte.
const HeaderSize = 5

// MaxFrameSize bounds a single inbound frame's payload, guarding against a
// corrupt or hostile length prefix driving an unbounded allocation.
const MaxFrameSize = 256 * 1024 * 1024

// Message is anything mysqlxpb can marshal to a byte payload.
type Message interface {
	Marshal() []byte
}

// RawMessage wraps an already-serialized payload — the shape a CRUD
// Find/Insert/Update/Delete request arrives in, since the builder chain
// that assembles those messages is an external collaborator (spec.md §1):
// this client only needs to frame and send whatever bytes it is handed.
type RawMessage []byte

func (m RawMessage) Marshal() []byte { return m }

// Frame is one decoded (type, payload) pair read off the wire.
type Frame struct {
	Tag     mysqlxpb.ServerTag
	Payload []byte
}

// Send writes tag and msg's marshaled payload as one frame.
func Send(t *transport.Transport, tag mysqlxpb.ClientTag, msg Message) error {
	payload := msg.Marshal()
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header, uint32(len(payload)+1))
	header[4] = byte(tag)
	traceOutbound(tag, payload)
	if err := t.Write(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return t.Write(payload)
}

// Recv blocks reading one complete frame.
func Recv(t *transport.Transport) (*Frame, error) {
	header := make([]byte, HeaderSize)
	if err := t.ReadExact(header); err != nil {
		return nil, err
	}
	return recvBody(t, header)
}

// RecvWithDeadline reads one frame, returning (nil, nil) if the connection
// reaches a clean EOF before any header byte arrives. If no header byte
// arrives within ms milliseconds, the read's timeout error is returned.
func RecvWithDeadline(t *transport.Transport, ms int) (*Frame, error) {
	header := make([]byte, HeaderSize)
	n, err := t.ReadWithTimeout(header, ms)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n < HeaderSize {
		if err := t.ReadExact(header[n:]); err != nil {
			return nil, err
		}
	}
	return recvBody(t, header)
}

func recvBody(t *transport.Transport, header []byte) (*Frame, error) {
	total := binary.LittleEndian.Uint32(header)
	if total == 0 {
		return nil, xerrors.New(xerrors.MalformedPacket, "zero-length frame header")
	}
	if total-1 > MaxFrameSize {
		return nil, xerrors.New(xerrors.MalformedPacket, fmt.Sprintf("frame too large: %d bytes", total-1))
	}
	tag := mysqlxpb.ServerTag(header[4])
	payload := make([]byte, total-1)
	if len(payload) > 0 {
		if err := t.ReadExact(payload); err != nil {
			return nil, err
		}
	}
	traceInbound(tag, payload)
	return &Frame{Tag: tag, Payload: payload}, nil
}

// dispatch maps a ServerTag to the mysqlxpb parser producing its typed
// payload. Decode reports a tag missing from this table as an error; the
// frame's raw bytes remain in Frame.Payload.
var dispatch = map[mysqlxpb.ServerTag]func([]byte) (interface{}, error){
	mysqlxpb.ServerOK: func(b []byte) (interface{}, error) { return mysqlxpb.ParseOk(b) },
	mysqlxpb.ServerError: func(b []byte) (interface{}, error) {
		return mysqlxpb.ParseErrorDetail(b)
	},
	mysqlxpb.ServerConnCapabilities: func(b []byte) (interface{}, error) {
		return mysqlxpb.ParseCapabilities(b)
	},
	mysqlxpb.ServerSessAuthenticateContinue: func(b []byte) (interface{}, error) {
		return mysqlxpb.ParseAuthenticateContinue(b)
	},
	mysqlxpb.ServerSessAuthenticateOK: func(b []byte) (interface{}, error) {
		return mysqlxpb.ParseAuthenticateOk(b)
	},
	mysqlxpb.ServerNotice: func(b []byte) (interface{}, error) {
		return mysqlxpb.ParseNoticeFrame(b)
	},
	mysqlxpb.ServerResultsetColumnMetaData: func(b []byte) (interface{}, error) {
		return mysqlxpb.ParseColumnMetaData(b)
	},
	mysqlxpb.ServerResultsetRow: func(b []byte) (interface{}, error) {
		return mysqlxpb.ParseRow(b)
	},
	mysqlxpb.ServerResultsetFetchDone: func([]byte) (interface{}, error) {
		return &mysqlxpb.FetchDone{}, nil
	},
	mysqlxpb.ServerResultsetFetchDoneMoreResultsets: func([]byte) (interface{}, error) {
		return &mysqlxpb.FetchDoneMoreResultsets{}, nil
	},
	mysqlxpb.ServerSQLStmtExecuteOk: func([]byte) (interface{}, error) {
		return &mysqlxpb.StmtExecuteOk{}, nil
	},
}

// Decode parses f.Payload according to f.Tag's registered mysqlxpb message
// type. An unregistered tag is a protocol error: every ServerTag this
// client's dispatch table omits is one it was never meant to receive.
func Decode(f *Frame) (interface{}, error) {
	parse, ok := dispatch[f.Tag]
	if !ok {
		return nil, xerrors.New(xerrors.MalformedPacket, fmt.Sprintf("unexpected server message type %s", f.Tag))
	}
	return parse(f.Payload)
}

// traceEnabled caches the MYSQLX_TRACE_CONNECTION environment check so the
// hot send/recv path does not call os.LookupEnv per frame.
var traceEnabled = os.Getenv("MYSQLX_TRACE_CONNECTION") != ""

func traceOutbound(tag mysqlxpb.ClientTag, payload []byte) {
	if !traceEnabled {
		return
	}
	xlog.WithFields(xlog.Fields{"dir": "send", "tag": tag, "bytes": len(payload)}).Debug("frame")
}

func traceInbound(tag mysqlxpb.ServerTag, payload []byte) {
	if !traceEnabled {
		return
	}
	xlog.WithFields(xlog.Fields{"dir": "recv", "tag": tag.String(), "bytes": len(payload)}).Debug("frame")
}
