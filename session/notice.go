package session

import (
	"github.com/zhukovaskychina/xmysqlx/internal/xlog"
	"github.com/zhukovaskychina/xmysqlx/wire/mysqlxpb"
)

// NoticeHandler inspects one LOCAL-scope notice frame and reports whether it
// consumed it. Handlers are tried newest-first (spec.md §4.3's LIFO stack);
// the first one returning true stops the walk.
type NoticeHandler func(n *mysqlxpb.NoticeFrame) bool

// PushNoticeHandler registers h as the new top of the notice handler stack.
func (s *Session) PushNoticeHandler(h NoticeHandler) {
	s.handlers = append(s.handlers, h)
}

// PopNoticeHandler removes the most recently pushed handler.
func (s *Session) PopNoticeHandler() {
	if len(s.handlers) == 0 {
		return
	}
	s.handlers = s.handlers[:len(s.handlers)-1]
}

// ClientID returns the id the server assigned this connection via a
// CLIENT_ID_ASSIGNED SessionStateChanged notice, or 0 if none arrived yet.
func (s *Session) ClientID() uint64 { return s.clientID }

// dispatchNotice implements spec.md §4.3's notice routing: LOCAL notices go
// through the handler stack, newest first, until one consumes them; an
// unconsumed SessionStateChanged is interpreted for well-known parameters;
// everything else unconsumed (and every GLOBAL notice) is logged only.
func (s *Session) dispatchNotice(n *mysqlxpb.NoticeFrame) {
	if n.Scope != mysqlxpb.NoticeLocal {
		xlog.WithFields(xlog.Fields{"type": n.Type}).Debug("session: ignored global notice")
		return
	}

	for i := len(s.handlers) - 1; i >= 0; i-- {
		if s.handlers[i](n) {
			return
		}
	}

	if n.Type != mysqlxpb.NoticeTypeSessionStateChanged {
		xlog.WithFields(xlog.Fields{"type": n.Type}).Debug("session: unconsumed local notice")
		return
	}

	sc, err := mysqlxpb.ParseSessionStateChanged(n.Payload)
	if err != nil || len(sc.Values) == 0 {
		return
	}
	switch sc.Param {
	case mysqlxpb.ParamAccountExpired:
		xlog.WithField("session", s.clientID).Warn("session: account expired")
	case mysqlxpb.ParamClientIDAssigned:
		s.clientID = sc.Values[0].UInt
	}
}
