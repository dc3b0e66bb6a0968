package auth

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysqlx/wire/mysqlxpb"
)

func TestScramble_MatchesWorkedExample(t *testing.T) {
	salt := []byte("01234567890123456789")[:20]

	stage1 := sha1.Sum([]byte("secret"))
	stage2 := sha1.Sum(stage1[:])
	combined := append(append([]byte{}, salt...), stage2[:]...)
	challengeHash := sha1.Sum(combined)
	want := make([]byte, len(stage2))
	for i := range stage2 {
		want[i] = stage2[i] ^ challengeHash[i]
	}

	got := Scramble(salt, "secret")
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(want)), got)
	assert.Len(t, got, 40)
}

func TestScramble_EmptyPassword(t *testing.T) {
	assert.Equal(t, "", Scramble([]byte("anysalt"), ""))
}

// fakeExchange scripts a fixed sequence of server replies for one auth run.
type fakeExchange struct {
	replies    []interface{}
	i          int
	starts     []string
	continues  [][]byte
	noticeHits int
}

func (f *fakeExchange) SendStart(mechName string, authData []byte) error {
	f.starts = append(f.starts, mechName)
	f.continues = append(f.continues, authData)
	return nil
}

func (f *fakeExchange) SendContinue(authData []byte) error {
	f.continues = append(f.continues, authData)
	return nil
}

func (f *fakeExchange) Recv() (interface{}, error) {
	msg := f.replies[f.i]
	f.i++
	return msg, nil
}

func (f *fakeExchange) Notice(n *mysqlxpb.NoticeFrame) { f.noticeHits++ }

func TestRunPlain_SendsSchemaUserPasswordThenOk(t *testing.T) {
	x := &fakeExchange{replies: []interface{}{&mysqlxpb.AuthenticateOk{AuthData: []byte("done")}}}
	authData, err := Run(x, MechPlain, Credentials{Schema: "db", User: "root", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, []byte("done"), authData)
	assert.Equal(t, []string{"PLAIN"}, x.starts)
	assert.Equal(t, "db\x00root\x00pw", string(x.continues[0]))
}

func TestRunMySQL41_ChallengeResponseThenOk(t *testing.T) {
	salt := []byte("abcdefghij0123456789")
	x := &fakeExchange{replies: []interface{}{
		&mysqlxpb.AuthenticateContinue{AuthData: salt},
		&mysqlxpb.AuthenticateOk{},
	}}
	_, err := Run(x, MechMySQL41, Credentials{Schema: "db", User: "root", Password: "secret"})
	require.NoError(t, err)
	require.Len(t, x.continues, 2)
	parts := strings.SplitN(string(x.continues[1]), "\x00", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "db", parts[0])
	assert.Equal(t, "root", parts[1])
	assert.Equal(t, Scramble(salt, "secret"), parts[2])
}

func TestRunMySQL41_DispatchesNoticesWhileWaiting(t *testing.T) {
	salt := []byte("abcdefghij0123456789")
	x := &fakeExchange{replies: []interface{}{
		&mysqlxpb.NoticeFrame{Type: 1},
		&mysqlxpb.AuthenticateContinue{AuthData: salt},
		&mysqlxpb.NoticeFrame{Type: 1},
		&mysqlxpb.AuthenticateOk{},
	}}
	_, err := Run(x, MechMySQL41, Credentials{Schema: "db", User: "root", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, 2, x.noticeHits)
}

func TestRun_ServerErrorFailsWithServerFault(t *testing.T) {
	x := &fakeExchange{replies: []interface{}{
		&mysqlxpb.ErrorDetail{Code: 1045, SQLState: "28000", Msg: "Access denied"},
	}}
	_, err := Run(x, MechPlain, Credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestRun_InvalidMechanism(t *testing.T) {
	x := &fakeExchange{}
	_, err := Run(x, Mechanism("BOGUS"), Credentials{})
	assert.Error(t, err)
}
