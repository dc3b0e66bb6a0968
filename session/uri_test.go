package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI_FullForm(t *testing.T) {
	u, err := ParseURI("mysqlx://user:pw@127.0.0.1:33060/mydb")
	require.NoError(t, err)
	assert.Equal(t, "mysqlx", u.Protocol)
	assert.Equal(t, "user", u.User)
	assert.Equal(t, "pw", u.Password)
	assert.True(t, u.PasswordFound)
	assert.Equal(t, "127.0.0.1", u.Host)
	assert.Equal(t, 33060, u.Port)
	assert.Equal(t, "mydb", u.Schema)
}

func TestParseURI_UserHostOnly(t *testing.T) {
	u, err := ParseURI("user@host")
	require.NoError(t, err)
	assert.Equal(t, "user", u.User)
	assert.Equal(t, "host", u.Host)
	assert.Equal(t, DefaultPort, u.Port)
	assert.False(t, u.PasswordFound)
}

func TestParseURI_BogusProtocolStillParses(t *testing.T) {
	u, err := ParseURI("bogus://")
	require.NoError(t, err)
	assert.Equal(t, "bogus", u.Protocol)
	assert.Equal(t, "", u.User)
	assert.Equal(t, "", u.Host)
	assert.Equal(t, DefaultPort, u.Port)
}

func TestParseURI_SocketForm(t *testing.T) {
	u, err := ParseURI("user:pw@::/tmp/mysqlx.sock/mydb")
	require.NoError(t, err)
	assert.Equal(t, "user", u.User)
	assert.Equal(t, "pw", u.Password)
	assert.Equal(t, "/tmp/mysqlx.sock", u.SocketPath)
	assert.Equal(t, "mydb", u.Schema)
	assert.Equal(t, 0, u.Port)
}

func TestParseURI_SocketFormNoSchema(t *testing.T) {
	// The final "/" is always treated as a schema boundary (documented
	// grammar ambiguity, see ParseURI), so a bare socket path's last
	// component reads as a schema here.
	u, err := ParseURI("user@::/tmp/mysqlx.sock")
	require.NoError(t, err)
	assert.Equal(t, "/tmp", u.SocketPath)
	assert.Equal(t, "mysqlx.sock", u.Schema)
}

func TestParseURI_EmptyPortIsHardError(t *testing.T) {
	_, err := ParseURI("user@host:")
	require.Error(t, err)
}

func TestParseURI_NoUser(t *testing.T) {
	u, err := ParseURI("host:3306/schema")
	require.NoError(t, err)
	assert.Equal(t, "", u.User)
	assert.Equal(t, "host", u.Host)
	assert.Equal(t, 3306, u.Port)
	assert.Equal(t, "schema", u.Schema)
}
