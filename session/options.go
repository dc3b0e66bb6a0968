package session

import (
	"crypto/tls"
	"time"

	"github.com/zhukovaskychina/xmysqlx/auth"
	"github.com/zhukovaskychina/xmysqlx/transport"
)

// Options configures Open. The zero value dials with the transport's default
// timeout, auto-negotiates TLS when the server advertises it (which never
// happens unless TLSConfig is also set), and auto-selects the authentication
// mechanism (spec.md §4.3's "TLS upgrade path").
type Options struct {
	IPMode         transport.IPMode
	ConnectTimeout time.Duration

	// TLSConfig, when non-nil, makes this session eligible for the
	// automatic TLS-then-PLAIN upgrade path once the server capability set
	// advertises "tls". Leaving it nil keeps the session on MYSQL41 over a
	// plaintext socket regardless of what the server advertises.
	TLSConfig *tls.Config

	// Mechanism overrides automatic selection: Open authenticates with
	// exactly this mechanism and does not attempt a TLS upgrade first
	// unless ForceTLS is also set.
	Mechanism auth.Mechanism
	ForceTLS  bool

	// DontWaitForDisconnect makes Close() close the socket immediately
	// after the server's OK rather than waiting for the server to hang up
	// first (spec.md §4.3's Close semantics).
	DontWaitForDisconnect bool
}
