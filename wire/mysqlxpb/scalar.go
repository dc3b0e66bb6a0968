package mysqlxpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ScalarType is Scalar.type: the tag distinguishing which field of the
// union carries the value.
type ScalarType uint32

const (
	VSint   ScalarType = 1
	VUint   ScalarType = 2
	VNull   ScalarType = 3
	VOctets ScalarType = 4
	VDouble ScalarType = 5
	VFloat  ScalarType = 6
	VBool   ScalarType = 7
	VString ScalarType = 8
)

// Scalar is Mysqlx.Datatypes.Scalar: a tagged union of the argument types
// execute_stmt accepts.
type Scalar struct {
	Type   ScalarType
	SInt   int64
	UInt   uint64
	Bool   bool
	Double float64
	Float  float32
	// String and Octets both carry a nested "value" bytes field (field 1 of
	// Scalar.String / Scalar.Octets) matching the real schema's shape.
	String []byte
	Octets []byte
}

func (s *Scalar) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(s.Type))
	switch s.Type {
	case VSint:
		b = appendVarintField(b, 2, protowire.EncodeZigZag(s.SInt))
	case VUint:
		b = appendVarintField(b, 3, s.UInt)
	case VBool:
		b = appendBoolField(b, 4, s.Bool)
	case VDouble:
		b = appendFixed64Field(b, 5, doubleBits(s.Double))
	case VFloat:
		b = appendFixed32Field(b, 6, floatBits(s.Float))
	case VString:
		nested := appendBytesField(nil, 1, s.String)
		b = appendBytesField(b, 7, nested)
	case VOctets:
		nested := appendBytesField(nil, 1, s.Octets)
		b = appendBytesField(b, 8, nested)
	case VNull:
		// no payload
	}
	return b
}

func ParseScalar(buf []byte) (*Scalar, error) {
	s := &Scalar{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("mysqlxpb: malformed Scalar tag")
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Scalar.type")
			}
			s.Type = ScalarType(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Scalar.v_sint")
			}
			s.SInt = protowire.DecodeZigZag(v)
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Scalar.v_uint")
			}
			s.UInt = v
			buf = buf[n:]
		case 4:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Scalar.v_bool")
			}
			s.Bool = v != 0
			buf = buf[n:]
		case 5:
			v, n := protowire.ConsumeFixed64(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Scalar.v_double")
			}
			s.Double = bitsDouble(v)
			buf = buf[n:]
		case 6:
			v, n := protowire.ConsumeFixed32(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Scalar.v_float")
			}
			s.Float = bitsFloat(v)
			buf = buf[n:]
		case 7:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Scalar.v_string")
			}
			inner, err := consumeNestedBytes(v, 1)
			if err != nil {
				return nil, err
			}
			s.String = inner
			buf = buf[n:]
		case 8:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Scalar.v_octets")
			}
			inner, err := consumeNestedBytes(v, 1)
			if err != nil {
				return nil, err
			}
			s.Octets = inner
			buf = buf[n:]
		default:
			n, err := skipField(num, typ, buf)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return s, nil
}

// consumeNestedBytes reads a single length-delimited field `want` out of a
// nested message buffer (used for Scalar.String{value=1}/Scalar.Octets{value=1}).
func consumeNestedBytes(buf []byte, want protowire.Number) ([]byte, error) {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("mysqlxpb: malformed nested tag")
		}
		buf = buf[n:]
		if num == want && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed nested bytes")
			}
			return append([]byte(nil), v...), nil
		}
		n, err := skipField(num, typ, buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]
	}
	return nil, nil
}

// AnyScalar is the Any.type value of the SCALAR variant, the only variant
// this core produces or consumes. Object/Array arguments are not needed by execute_stmt bind
// values and are left unimplemented.
const AnyScalar = 1

// Any is Mysqlx.Datatypes.Any restricted to the SCALAR variant.
type Any struct {
	Scalar *Scalar
}

func (a *Any) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, AnyScalar)
	if a.Scalar != nil {
		b = appendBytesField(b, 2, a.Scalar.Marshal())
	}
	return b
}

func ParseAny(buf []byte) (*Any, error) {
	a := &Any{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("mysqlxpb: malformed Any tag")
		}
		buf = buf[n:]
		switch num {
		case 1:
			_, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Any.type")
			}
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("mysqlxpb: malformed Any.scalar")
			}
			sc, err := ParseScalar(v)
			if err != nil {
				return nil, err
			}
			a.Scalar = sc
			buf = buf[n:]
		default:
			n, err := skipField(num, typ, buf)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return a, nil
}
