package mysqlxpb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// skipField consumes and discards one field's value, used when parsing
// tolerates unknown field numbers (forward compatibility with the real
// schema, which may add fields this core doesn't need).
func skipField(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, buf)
	if n < 0 {
		return 0, fmt.Errorf("mysqlxpb: malformed field %d", num)
	}
	return n, nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	var iv uint64
	if v {
		iv = 1
	}
	return appendVarintField(b, num, iv)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	return appendBytesField(b, num, []byte(v))
}

func appendFixed32Field(b []byte, num protowire.Number, v uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, v)
}

func appendFixed64Field(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, v)
}

func doubleBits(f float64) uint64 { return math.Float64bits(f) }
func bitsDouble(v uint64) float64 { return math.Float64frombits(v) }
func floatBits(f float32) uint32  { return math.Float32bits(f) }
func bitsFloat(v uint32) float32  { return math.Float32frombits(v) }
