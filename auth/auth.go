package auth

import (
	"github.com/zhukovaskychina/xmysqlx/internal/xerrors"
	"github.com/zhukovaskychina/xmysqlx/wire/mysqlxpb"
)

// Mechanism names an authentication sub-protocol.
type Mechanism string

const (
	MechPlain   Mechanism = "PLAIN"
	MechMySQL41 Mechanism = "MYSQL41"
)

// Credentials names the schema/user/password triple both mechanisms encode
// into their auth_data payloads.
type Credentials struct {
	Schema   string
	User     string
	Password string
}

func joinNUL(parts ...string) []byte {
	b := make([]byte, 0, 16)
	for i, p := range parts {
		if i > 0 {
			b = append(b, 0)
		}
		b = append(b, p...)
	}
	return b
}

// Exchange is the narrow channel the state machine needs from a session:
// send one AuthenticateStart/Continue frame, and read the next server frame
// (already decoded to its mysqlxpb message type) as the reply, with any
// interleaved NOTICE frames routed to notice before the loop continues.
type Exchange interface {
	SendStart(mechName string, authData []byte) error
	SendContinue(authData []byte) error
	// Recv blocks for the next server message, returning it as one of
	// *mysqlxpb.AuthenticateContinue, *mysqlxpb.AuthenticateOk,
	// *mysqlxpb.NoticeFrame, or *mysqlxpb.ErrorDetail.
	Recv() (interface{}, error)
	Notice(n *mysqlxpb.NoticeFrame)
}

// Run drives mech to completion over x, returning the server's final
// AuthenticateOk auth_data (often empty) or an error.
func Run(x Exchange, mech Mechanism, creds Credentials) ([]byte, error) {
	switch mech {
	case MechPlain:
		return runPlain(x, creds)
	case MechMySQL41:
		return runMySQL41(x, creds)
	default:
		return nil, xerrors.New(xerrors.InvalidAuthMethod, string(mech))
	}
}

func runPlain(x Exchange, creds Credentials) ([]byte, error) {
	authData := joinNUL(creds.Schema, creds.User, creds.Password)
	if err := x.SendStart(string(MechPlain), authData); err != nil {
		return nil, err
	}
	return waitOk(x)
}

func runMySQL41(x Exchange, creds Credentials) ([]byte, error) {
	if err := x.SendStart(string(MechMySQL41), nil); err != nil {
		return nil, err
	}

	var salt []byte
	for {
		msg, err := x.Recv()
		if err != nil {
			return nil, err
		}
		switch m := msg.(type) {
		case *mysqlxpb.AuthenticateContinue:
			salt = m.AuthData
		case *mysqlxpb.NoticeFrame:
			x.Notice(m)
			continue
		case *mysqlxpb.ErrorDetail:
			return nil, serverFault(m)
		default:
			return nil, xerrors.New(xerrors.MalformedPacket, "unexpected message while waiting for MYSQL41 challenge")
		}
		break
	}

	hash := Scramble(salt, creds.Password)
	authData := joinNUL(creds.Schema, creds.User, hash)
	if err := x.SendContinue(authData); err != nil {
		return nil, err
	}
	return waitOk(x)
}

func waitOk(x Exchange) ([]byte, error) {
	for {
		msg, err := x.Recv()
		if err != nil {
			return nil, err
		}
		switch m := msg.(type) {
		case *mysqlxpb.AuthenticateOk:
			return m.AuthData, nil
		case *mysqlxpb.NoticeFrame:
			x.Notice(m)
			continue
		case *mysqlxpb.ErrorDetail:
			return nil, serverFault(m)
		default:
			return nil, xerrors.New(xerrors.MalformedPacket, "unexpected message while waiting for authentication result")
		}
	}
}

func serverFault(m *mysqlxpb.ErrorDetail) error {
	sev := xerrors.SeverityError
	if m.Severity == 1 {
		sev = xerrors.SeverityFatal
	}
	return &xerrors.ServerFault{Code: m.Code, SQLState: m.SQLState, Message: m.Msg, Severity: sev}
}
