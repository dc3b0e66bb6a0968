package row

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zhukovaskychina/xmysqlx/wire/mysqlxpb"
)

func col(t mysqlxpb.FieldType) *mysqlxpb.ColumnMetaData {
	return &mysqlxpb.ColumnMetaData{Type: t}
}

func TestInt64_ZigzagDecodes(t *testing.T) {
	f := protowire.AppendVarint(nil, protowire.EncodeZigZag(-42))
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldSint)}, [][]byte{f})
	v, err := r.Int64(0)
	require.NoError(t, err)
	assert.EqualValues(t, -42, v)
}

func TestUint64_AcceptsBitType(t *testing.T) {
	f := protowire.AppendVarint(nil, 7)
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldBit)}, [][]byte{f})
	v, err := r.Uint64(0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)
}

func TestBytes_StripsTrailingNUL(t *testing.T) {
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldBytes)}, [][]byte{[]byte("hello\x00")})
	v, err := r.Bytes(0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(v))
}

func TestIsNull_EmptySliceIsNull(t *testing.T) {
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldSint)}, [][]byte{{}})
	isNull, err := r.IsNull(0)
	require.NoError(t, err)
	assert.True(t, isNull)
}

func TestDateTime_DefaultsMissingTrailingComponents(t *testing.T) {
	var f []byte
	f = protowire.AppendVarint(f, 2024)
	f = protowire.AppendVarint(f, 3)
	f = protowire.AppendVarint(f, 15)
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldDatetime)}, [][]byte{f})
	dt, err := r.DateTime(0)
	require.NoError(t, err)
	assert.EqualValues(t, 2024, dt.Year)
	assert.EqualValues(t, 3, dt.Month)
	assert.EqualValues(t, 15, dt.Day)
	assert.EqualValues(t, 0, dt.Hour)
}

func TestDateTime_MissingRequiredComponentErrors(t *testing.T) {
	var f []byte
	f = protowire.AppendVarint(f, 2024)
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldDatetime)}, [][]byte{f})
	_, err := r.DateTime(0)
	assert.Error(t, err)
}

func TestTime_NegativeSignByte(t *testing.T) {
	f := []byte{0x01}
	f = protowire.AppendVarint(f, 5)
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldTime)}, [][]byte{f})
	tm, err := r.Time(0)
	require.NoError(t, err)
	assert.True(t, tm.Negative)
	assert.EqualValues(t, 5, tm.Hour)
}

func TestSet_EmptySpecialCase(t *testing.T) {
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldSet)}, [][]byte{{0x01}})
	vals, err := r.Set(0)
	require.NoError(t, err)
	assert.Nil(t, vals)
}

func TestSet_MultipleElements(t *testing.T) {
	var f []byte
	f = protowire.AppendVarint(f, 1)
	f = append(f, 'a')
	f = protowire.AppendVarint(f, 2)
	f = append(f, 'b', 'c')
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldSet)}, [][]byte{f})
	vals, err := r.Set(0)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, "a", string(vals[0]))
	assert.Equal(t, "bc", string(vals[1]))
}

func TestDecimal_PositiveWithScale(t *testing.T) {
	// 12.50 -> scale=2, digits "1250", sign 0xC, padded with leading 0xF nibble
	f := []byte{0x02, 0xf1, 0x25, 0x0c}
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldDecimal)}, [][]byte{f})
	d, err := r.Decimal(0)
	require.NoError(t, err)
	assert.True(t, d.Equal(mustDecimal("12.5")))
}

func TestDecimal_Negative(t *testing.T) {
	// -1.5 -> scale=1, digits "15" (even count, padded with leading 0xF), sign 0xD
	f := []byte{0x01, 0xf1, 0x5d}
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldDecimal)}, [][]byte{f})
	d, err := r.Decimal(0)
	require.NoError(t, err)
	assert.True(t, d.Equal(mustDecimal("-1.5")))
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestField_IndexOutOfRange(t *testing.T) {
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldSint)}, [][]byte{{}})
	_, err := r.Int64(5)
	assert.Error(t, err)
}

func TestField_TypeMismatch(t *testing.T) {
	f := protowire.AppendVarint(nil, 1)
	r := New([]*mysqlxpb.ColumnMetaData{col(mysqlxpb.FieldUint)}, [][]byte{f})
	_, err := r.Int64(0)
	assert.Error(t, err)
}
