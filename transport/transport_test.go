package transport

import (
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysqlx/internal/xerrors"
)

func TestWriteReadExact_RoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ct := Wrap(client, DialOptions{})
	st := Wrap(server, DialOptions{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		require.NoError(t, st.ReadExact(buf))
		assert.Equal(t, []byte("hello"), buf)
	}()

	require.NoError(t, ct.Write([]byte("hello")))
	<-done
}

func TestReadWithTimeout_CleanEOF(t *testing.T) {
	client, server := net.Pipe()
	st := Wrap(server, DialOptions{})

	client.Close()
	buf := make([]byte, 4)
	n, err := st.ReadWithTimeout(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWrite_AfterClose_ReturnsServerGone(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ct := Wrap(client, DialOptions{})
	require.NoError(t, ct.Close())

	err := ct.Write([]byte("x"))
	require.Error(t, err)
}

func TestClassifyIOError_EPIPEIsBrokenPipe(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ct := Wrap(client, DialOptions{})

	err := ct.classifyIOError(syscall.EPIPE)
	assert.True(t, xerrors.Is(err, xerrors.BrokenPipe))
	assert.True(t, ct.closed.Load())
}

func TestClassifyDialError_SocketCreateFailures(t *testing.T) {
	for _, errno := range []error{syscall.EMFILE, syscall.ENFILE, syscall.EAFNOSUPPORT, syscall.EPROTONOSUPPORT} {
		err := classifyDialError(errno)
		assert.True(t, xerrors.Is(err, xerrors.SocketCreate), "errno %v", errno)
	}
}

func TestDialOptions_Defaults(t *testing.T) {
	var o DialOptions
	assert.Equal(t, 10*time.Second, o.connectTimeout())
	assert.Equal(t, 60*time.Second, o.tlsTimeout())
	assert.Equal(t, "tcp", o.network())
}

func TestDialOptions_IPModeNetwork(t *testing.T) {
	assert.Equal(t, "tcp4", DialOptions{IPMode: IPv4Only}.network())
	assert.Equal(t, "tcp6", DialOptions{IPMode: IPv6Only}.network())
}

func TestSupportsTLS_FalseAfterClose(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ct := Wrap(client, DialOptions{})
	assert.True(t, ct.SupportsTLS())
	require.NoError(t, ct.Close())
	assert.False(t, ct.SupportsTLS())
}
