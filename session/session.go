// Package session implements the Session/protocol driver (C3): connection
// URI parsing, capability negotiation, optional TLS upgrade, authentication
// mechanism selection, request dispatch (execute_sql/execute_stmt/CRUD), and
// the notice handler stack, built directly against spec.md §4.3 since the
// teacher repository only ever speaks the server side of a protocol — see
// DESIGN.md's C3 entry.
package session

import (
	"context"
	"os/user"

	"github.com/zhukovaskychina/xmysqlx/auth"
	"github.com/zhukovaskychina/xmysqlx/internal/xerrors"
	"github.com/zhukovaskychina/xmysqlx/result"
	"github.com/zhukovaskychina/xmysqlx/transport"
	"github.com/zhukovaskychina/xmysqlx/wire"
	"github.com/zhukovaskychina/xmysqlx/wire/mysqlxpb"
)

// Session owns exactly one Transport and at most one live, unbuffered
// Result. It is not safe for concurrent use by multiple goroutines
// (spec.md §5): every method call is expected to happen from the
// goroutine that owns the session.
type Session struct {
	transport *transport.Transport
	opts      Options

	schema   string
	clientID uint64
	closed   bool

	handlers []NoticeHandler

	// live is the most recently issued Result that has not yet been fully
	// buffered or drained. drainLive buffers it before any new request
	// reuses the connection — the mechanism behind T3's "at most one live
	// unbuffered result" invariant.
	live *result.Result

	// authWarnings accumulates NOTICE{Warning} frames observed during the
	// authentication exchange, per spec.md §4.4's "suspended notice
	// handler feeds warnings into the nascent Result" — there is no Result
	// yet at that point, so they are parked here instead.
	authWarnings []result.Warning
}

// Open parses uri, dials the resolved host/port or Unix socket, negotiates
// capabilities, optionally upgrades to TLS, and authenticates.
func Open(ctx context.Context, uri string, opts Options) (*Session, error) {
	pu, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	username := pu.User
	if username == "" {
		username = currentOSUser()
	}

	dialOpts := transport.DialOptions{IPMode: opts.IPMode, ConnectTimeout: opts.ConnectTimeout}
	var t *transport.Transport
	if pu.SocketPath != "" {
		t, err = transport.ConnectUnix(ctx, pu.SocketPath, dialOpts)
	} else {
		t, err = transport.Connect(ctx, pu.Host, pu.Port, dialOpts)
	}
	if err != nil {
		return nil, err
	}

	s := &Session{transport: t, opts: opts, schema: pu.Schema}

	if err := s.negotiate(ctx, auth.Credentials{Schema: pu.Schema, User: username, Password: pu.Password}); err != nil {
		s.forceClose()
		return nil, err
	}
	return s, nil
}

func currentOSUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return ""
}

// negotiate runs capability fetch, the optional TLS upgrade, and
// authentication (spec.md §4.3's "TLS upgrade path").
func (s *Session) negotiate(ctx context.Context, creds auth.Credentials) error {
	caps, err := s.FetchCapabilities()
	if err != nil {
		return err
	}

	mech := s.opts.Mechanism
	wantTLS := s.opts.ForceTLS
	if mech == "" {
		if s.opts.TLSConfig != nil && s.transport.SupportsTLS() && capabilitiesAdvertiseTLS(caps) {
			mech = auth.MechPlain
			wantTLS = true
		} else {
			mech = auth.MechMySQL41
		}
	}

	if wantTLS {
		if s.opts.TLSConfig == nil {
			return xerrors.New(xerrors.Tls, "TLS requested but no TLSConfig provided")
		}
		if err := s.SetupCapability("tls", true); err != nil {
			return err
		}
		s.transport.ConfigureTLS(s.opts.TLSConfig)
		if err := s.transport.ActivateTLS(ctx); err != nil {
			return err
		}
	}

	_, err = auth.Run(sessionExchange{s}, mech, creds)
	return err
}

func capabilitiesAdvertiseTLS(caps *mysqlxpb.Capabilities) bool {
	for _, c := range caps.Capabilities {
		if c.Name == "tls" {
			return true
		}
	}
	return false
}

// FetchCapabilities sends CapabilitiesGet and returns the server's
// CONN_CAPABILITIES reply.
func (s *Session) FetchCapabilities() (*mysqlxpb.Capabilities, error) {
	if err := wire.Send(s.transport, mysqlxpb.ClientConCapabilitiesGet, &mysqlxpb.CapabilitiesGet{}); err != nil {
		return nil, err
	}
	msg, err := s.recvNext()
	if err != nil {
		return nil, err
	}
	caps, ok := msg.(*mysqlxpb.Capabilities)
	if !ok {
		return nil, xerrors.New(xerrors.CommandsOutOfSync, "unexpected reply to CapabilitiesGet")
	}
	return caps, nil
}

// SetupCapability sends a one-entry CapabilitiesSet{name: value}. A server
// ERROR reply marks the session closed, matching spec.md §4.3.
func (s *Session) SetupCapability(name string, value bool) error {
	cap := &mysqlxpb.Capability{Name: name, Value: &mysqlxpb.Any{Scalar: &mysqlxpb.Scalar{Type: mysqlxpb.VBool, Bool: value}}}
	msg := &mysqlxpb.CapabilitiesSet{Capabilities: []*mysqlxpb.Capability{cap}}
	if err := wire.Send(s.transport, mysqlxpb.ClientConCapabilitiesSet, msg); err != nil {
		return err
	}
	reply, err := s.recvNext()
	if err != nil {
		return err
	}
	switch m := reply.(type) {
	case *mysqlxpb.Ok:
		return nil
	case *mysqlxpb.ErrorDetail:
		s.forceClose()
		return serverFault(m)
	default:
		s.forceClose()
		return xerrors.New(xerrors.CommandsOutOfSync, "unexpected reply to CapabilitiesSet")
	}
}

// AuthWarnings returns any NOTICE{Warning} frames observed during the
// authentication exchange (spec.md §4.4).
func (s *Session) AuthWarnings() []result.Warning {
	return append([]result.Warning(nil), s.authWarnings...)
}

// Schema returns the schema named in the connection URI, if any.
func (s *Session) Schema() string { return s.schema }

// ExecuteSQL is execute_stmt sugar for the "sql" namespace.
func (s *Session) ExecuteSQL(stmt string, args ...Argument) (*result.Result, error) {
	return s.ExecuteStmt("sql", stmt, args)
}

// ExecuteStmt sends a Sql.StmtExecute request and returns a fresh streaming
// Result. Any previous live Result on this connection is fully buffered
// first (spec.md §4.3, T3).
func (s *Session) ExecuteStmt(namespace, stmt string, args []Argument) (*result.Result, error) {
	if s.closed {
		return nil, xerrors.New(xerrors.ServerGone, "session is closed")
	}
	s.drainLive()

	anys := make([]*mysqlxpb.Any, len(args))
	for i, a := range args {
		anys[i] = a.toAny()
	}
	msg := &mysqlxpb.StmtExecute{Namespace: namespace, Stmt: []byte(stmt), Args: anys}
	if err := wire.Send(s.transport, mysqlxpb.ClientSQLStmtExecute, msg); err != nil {
		s.forceClose()
		return nil, err
	}

	r := result.New(frameSource{s}, result.ReadMetadataI)
	s.live = r
	return r, nil
}

// SendFind, SendInsert, SendUpdate, SendDelete frame and send an
// already-serialized CRUD request body — the CRUD builder chain that
// assembles these payloads is an external collaborator (spec.md §1) this
// package only frames and transmits.
func (s *Session) SendFind(payload []byte) (*result.Result, error)   { return s.sendCrud(mysqlxpb.ClientCrudFind, payload) }
func (s *Session) SendInsert(payload []byte) (*result.Result, error) { return s.sendCrud(mysqlxpb.ClientCrudInsert, payload) }
func (s *Session) SendUpdate(payload []byte) (*result.Result, error) { return s.sendCrud(mysqlxpb.ClientCrudUpdate, payload) }
func (s *Session) SendDelete(payload []byte) (*result.Result, error) { return s.sendCrud(mysqlxpb.ClientCrudDelete, payload) }

func (s *Session) sendCrud(tag mysqlxpb.ClientTag, payload []byte) (*result.Result, error) {
	if s.closed {
		return nil, xerrors.New(xerrors.ServerGone, "session is closed")
	}
	s.drainLive()
	if err := wire.Send(s.transport, tag, wire.RawMessage(payload)); err != nil {
		s.forceClose()
		return nil, err
	}
	r := result.New(frameSource{s}, result.ReadMetadataI)
	s.live = r
	return r, nil
}

// drainLive fully buffers the current live Result, if any, so a new
// request can safely issue its own frames on the shared transport.
func (s *Session) drainLive() {
	if s.live == nil {
		return
	}
	_ = s.live.Buffer()
	s.live = nil
}

// Close buffers any live Result, sends Session.Close, and waits for the
// server's OK. Any protocol deviation during close is CommandsOutOfSync;
// the socket is forced closed regardless of the outcome.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.drainLive()

	if err := wire.Send(s.transport, mysqlxpb.ClientSessClose, &mysqlxpb.Close{}); err != nil {
		s.forceClose()
		return err
	}
	msg, err := s.recvNext()
	if err != nil {
		s.forceClose()
		return err
	}
	if _, ok := msg.(*mysqlxpb.Ok); !ok {
		s.forceClose()
		return xerrors.New(xerrors.CommandsOutOfSync, "unexpected reply to Session.Close")
	}

	if s.opts.DontWaitForDisconnect {
		return s.forceClose()
	}
	// Wait for the server to hang up; a clean EOF (n==0) is the expected
	// outcome, anything else is ignored since the socket is closed next.
	buf := make([]byte, 1)
	_, _ = s.transport.ReadWithTimeout(buf, 5000)
	return s.forceClose()
}

func (s *Session) forceClose() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.transport.Close()
}

// recvNext blocks for the next non-notice server message, routing any
// NOTICE frames through dispatchNotice transparently (spec.md §4.3's
// recv_next()). Used outside of an active Result's own stream (capability
// negotiation, authentication, close).
func (s *Session) recvNext() (interface{}, error) {
	for {
		fr, err := wire.Recv(s.transport)
		if err != nil {
			s.forceClose()
			return nil, err
		}
		msg, err := wire.Decode(fr)
		if err != nil {
			return nil, err
		}
		if n, ok := msg.(*mysqlxpb.NoticeFrame); ok {
			s.dispatchNotice(n)
			continue
		}
		return msg, nil
	}
}

// frameSource adapts a Session's transport into result.Source: the next
// decoded frame, with no notice interpretation of its own since a streaming
// Result interprets NOTICE frames itself (spec.md §4.5).
type frameSource struct{ s *Session }

func (f frameSource) Next() (interface{}, error) {
	fr, err := wire.Recv(f.s.transport)
	if err != nil {
		f.s.forceClose()
		return nil, err
	}
	return wire.Decode(fr)
}

func serverFault(m *mysqlxpb.ErrorDetail) error {
	sev := xerrors.SeverityError
	if m.Severity == 1 {
		sev = xerrors.SeverityFatal
	}
	return &xerrors.ServerFault{Code: m.Code, SQLState: m.SQLState, Message: m.Msg, Severity: sev}
}

// sessionExchange implements auth.Exchange over this session's transport,
// routing NOTICE frames observed mid-handshake into dispatchNotice plus
// authWarnings (spec.md §4.4).
type sessionExchange struct{ s *Session }

func (e sessionExchange) SendStart(mechName string, authData []byte) error {
	return wire.Send(e.s.transport, mysqlxpb.ClientSessAuthenticateStart, &mysqlxpb.AuthenticateStart{MechName: mechName, AuthData: authData})
}

func (e sessionExchange) SendContinue(authData []byte) error {
	return wire.Send(e.s.transport, mysqlxpb.ClientSessAuthenticateContinue, &mysqlxpb.AuthenticateContinue{AuthData: authData})
}

func (e sessionExchange) Recv() (interface{}, error) {
	fr, err := wire.Recv(e.s.transport)
	if err != nil {
		e.s.forceClose()
		return nil, err
	}
	return wire.Decode(fr)
}

func (e sessionExchange) Notice(n *mysqlxpb.NoticeFrame) {
	e.s.dispatchNotice(n)
	if n.Type == mysqlxpb.NoticeTypeWarning {
		if w, err := mysqlxpb.ParseWarning(n.Payload); err == nil {
			e.s.authWarnings = append(e.s.authWarnings, result.Warning{Code: w.Code, Msg: w.Msg, IsNote: w.Level == 0})
		}
	}
}
