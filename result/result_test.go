package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysqlx/wire/mysqlxpb"
)

type fakeSource struct {
	msgs []interface{}
	i    int
}

func (f *fakeSource) Next() (interface{}, error) {
	m := f.msgs[f.i]
	f.i++
	return m, nil
}

func scalarUintNotice(param mysqlxpb.SessionStateParam, v uint64) *mysqlxpb.NoticeFrame {
	sc := &mysqlxpb.SessionStateChanged{Param: param, Values: []*mysqlxpb.Scalar{{Type: mysqlxpb.VUint, UInt: v}}}
	return &mysqlxpb.NoticeFrame{Type: mysqlxpb.NoticeTypeSessionStateChanged, Payload: sc.Marshal()}
}

func warningNotice(code uint32, msg string, level uint32) *mysqlxpb.NoticeFrame {
	w := &mysqlxpb.Warning{Code: code, Msg: msg, Level: level}
	return &mysqlxpb.NoticeFrame{Type: mysqlxpb.NoticeTypeWarning, Payload: w.Marshal()}
}

func TestResult_EmptyResultsetThenStmtOk(t *testing.T) {
	src := &fakeSource{msgs: []interface{}{
		&mysqlxpb.ColumnMetaData{Type: mysqlxpb.FieldSint},
		&mysqlxpb.FetchDone{},
		&mysqlxpb.StmtExecuteOk{},
	}}
	r := New(src, ReadMetadataI)
	rw, err := r.Next()
	require.NoError(t, err)
	assert.Nil(t, rw)
	assert.Equal(t, ReadDone, r.State())
}

func TestResult_MultiResultsetStreaming(t *testing.T) {
	src := &fakeSource{msgs: []interface{}{
		&mysqlxpb.ColumnMetaData{Type: mysqlxpb.FieldSint},
		&mysqlxpb.ColumnMetaData{Type: mysqlxpb.FieldSint},
		&mysqlxpb.Row{Fields: [][]byte{{1}, {2}}},
		&mysqlxpb.Row{Fields: [][]byte{{3}, {4}}},
		&mysqlxpb.Row{Fields: [][]byte{{5}, {6}}},
		&mysqlxpb.FetchDoneMoreResultsets{},
		&mysqlxpb.ColumnMetaData{Type: mysqlxpb.FieldSint},
		&mysqlxpb.FetchDone{},
		&mysqlxpb.StmtExecuteOk{},
	}}
	r := New(src, ReadMetadataI)

	var rows int
	for {
		rw, err := r.Next()
		require.NoError(t, err)
		if rw == nil {
			break
		}
		rows++
	}
	assert.Equal(t, 3, rows)
	assert.Len(t, r.Columns(), 2)

	more, err := r.NextDataset()
	require.NoError(t, err)
	assert.True(t, more)
	assert.Len(t, r.Columns(), 1)

	rw, err := r.Next()
	require.NoError(t, err)
	assert.Nil(t, rw)

	more, err = r.NextDataset()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, ReadDone, r.State())
}

func TestResult_NoticeInterleavingUpdatesWarningsAndAffectedRows(t *testing.T) {
	src := &fakeSource{msgs: []interface{}{
		&mysqlxpb.ColumnMetaData{Type: mysqlxpb.FieldSint},
		warningNotice(1062, "dup", 1),
		&mysqlxpb.Row{Fields: [][]byte{{9}}},
		&mysqlxpb.FetchDone{},
		scalarUintNotice(mysqlxpb.ParamRowsAffected, 1),
		&mysqlxpb.StmtExecuteOk{},
	}}
	r := New(src, ReadMetadataI)

	rw, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, rw)

	rw, err = r.Next()
	require.NoError(t, err)
	assert.Nil(t, rw)

	require.Len(t, r.Warnings(), 1)
	assert.EqualValues(t, 1062, r.Warnings()[0].Code)
	assert.False(t, r.Warnings()[0].IsNote)
	assert.EqualValues(t, 1, r.AffectedRows())
	assert.Equal(t, ReadDone, r.State())
}

func TestResult_ServerErrorFailsResult(t *testing.T) {
	src := &fakeSource{msgs: []interface{}{
		&mysqlxpb.ErrorDetail{Code: 1046, SQLState: "3D000", Msg: "No database selected"},
	}}
	r := New(src, ReadStmtOkI)
	_, err := r.Next()
	require.Error(t, err)
	assert.Equal(t, ReadError, r.State())
}

func TestResult_OutOfSequenceMessageIsCommandsOutOfSync(t *testing.T) {
	src := &fakeSource{msgs: []interface{}{
		&mysqlxpb.Row{Fields: [][]byte{{1}}},
	}}
	r := New(src, ReadStmtOkI)
	_, err := r.Next()
	require.Error(t, err)
	assert.Equal(t, ReadError, r.State())
}

func TestResult_BufferThenRewindSeekTell(t *testing.T) {
	src := &fakeSource{msgs: []interface{}{
		&mysqlxpb.ColumnMetaData{Type: mysqlxpb.FieldSint},
		&mysqlxpb.Row{Fields: [][]byte{{1}}},
		&mysqlxpb.Row{Fields: [][]byte{{2}}},
		&mysqlxpb.FetchDone{},
		&mysqlxpb.StmtExecuteOk{},
	}}
	r := New(src, ReadMetadataI)
	require.NoError(t, r.Buffer())

	ds, rec, err := r.Tell()
	require.NoError(t, err)
	assert.Equal(t, 0, ds)
	assert.Equal(t, 0, rec)

	rw, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, rw)

	require.NoError(t, r.Seek(0, 0))
	rw, err = r.Next()
	require.NoError(t, err)
	require.NotNil(t, rw)

	require.NoError(t, r.Rewind())
	_, rec, _ = r.Tell()
	assert.Equal(t, 0, rec)
}

func TestResult_BufferAfterPartialConsumeDoesNotReplayRows(t *testing.T) {
	src := &fakeSource{msgs: []interface{}{
		&mysqlxpb.ColumnMetaData{Type: mysqlxpb.FieldSint},
		// SINT fields are zigzag varints: 2, 4, 6 encode 1, 2, 3.
		&mysqlxpb.Row{Fields: [][]byte{{2}}},
		&mysqlxpb.Row{Fields: [][]byte{{4}}},
		&mysqlxpb.Row{Fields: [][]byte{{6}}},
		&mysqlxpb.FetchDone{},
		&mysqlxpb.StmtExecuteOk{},
	}}
	r := New(src, ReadMetadataI)

	rw, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, rw)
	v, err := rw.Int64(0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	require.NoError(t, r.Buffer())

	var rest []int64
	for {
		rw, err := r.Next()
		require.NoError(t, err)
		if rw == nil {
			break
		}
		v, err := rw.Int64(0)
		require.NoError(t, err)
		rest = append(rest, v)
	}
	assert.Equal(t, []int64{2, 3}, rest)
}

func TestResult_LastDocumentIDRequiresExactlyOne(t *testing.T) {
	r := New(&fakeSource{}, ReadDone)
	_, err := r.LastDocumentID()
	assert.Error(t, err)

	r.SetLastDocumentIDs([]string{"a"})
	id, err := r.LastDocumentID()
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	r.SetLastDocumentIDs([]string{"b", "c"})
	_, err = r.LastDocumentID()
	assert.Error(t, err)
	ids, err := r.LastDocumentIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids)
}
