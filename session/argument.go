package session

import "github.com/zhukovaskychina/xmysqlx/wire/mysqlxpb"

// ArgKind tags which field of Argument is live, mirroring spec.md §4.3's
// ArgumentValue → Scalar variant table.
type ArgKind int

const (
	ArgSignedInt ArgKind = iota
	ArgUnsignedInt
	ArgNull
	ArgDouble
	ArgFloat
	ArgBool
	ArgString
	ArgOctets
)

// Argument is one execute_stmt bind value. Construct with the SignedInt/
// UnsignedInt/... helpers rather than the struct literal.
type Argument struct {
	Kind   ArgKind
	SInt   int64
	UInt   uint64
	Double float64
	Float  float32
	Bool   bool
	Bytes  []byte // String and Octets both carry their payload here
}

func SignedInt(v int64) Argument      { return Argument{Kind: ArgSignedInt, SInt: v} }
func UnsignedInt(v uint64) Argument   { return Argument{Kind: ArgUnsignedInt, UInt: v} }
func Null() Argument                  { return Argument{Kind: ArgNull} }
func Double(v float64) Argument       { return Argument{Kind: ArgDouble, Double: v} }
func Float(v float32) Argument        { return Argument{Kind: ArgFloat, Float: v} }
func Bool(v bool) Argument            { return Argument{Kind: ArgBool, Bool: v} }
func String(v []byte) Argument        { return Argument{Kind: ArgString, Bytes: v} }
func Octets(v []byte) Argument        { return Argument{Kind: ArgOctets, Bytes: v} }

func (a Argument) toAny() *mysqlxpb.Any {
	s := &mysqlxpb.Scalar{}
	switch a.Kind {
	case ArgSignedInt:
		s.Type, s.SInt = mysqlxpb.VSint, a.SInt
	case ArgUnsignedInt:
		s.Type, s.UInt = mysqlxpb.VUint, a.UInt
	case ArgDouble:
		s.Type, s.Double = mysqlxpb.VDouble, a.Double
	case ArgFloat:
		s.Type, s.Float = mysqlxpb.VFloat, a.Float
	case ArgBool:
		s.Type, s.Bool = mysqlxpb.VBool, a.Bool
	case ArgString:
		s.Type, s.String = mysqlxpb.VString, a.Bytes
	case ArgOctets:
		s.Type, s.Octets = mysqlxpb.VOctets, a.Bytes
	default:
		s.Type = mysqlxpb.VNull
	}
	return &mysqlxpb.Any{Scalar: s}
}
