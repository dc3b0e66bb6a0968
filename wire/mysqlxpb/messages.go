package mysqlxpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Ok is Mysqlx.Ok{msg}.
type Ok struct {
	Msg string
}

func (m *Ok) Marshal() []byte {
	if m.Msg == "" {
		return nil
	}
	return appendStringField(nil, 1, m.Msg)
}

func ParseOk(buf []byte) (*Ok, error) {
	m := &Ok{}
	return m, forEachField(buf, "Ok", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Ok.msg")
			}
			m.Msg = string(v)
			return n, nil
		}
		return skipField(num, typ, buf)
	})
}

// ErrorDetail is Mysqlx.Error{severity, code, sql_state, msg}.
type ErrorDetail struct {
	Severity uint32 // 0 = ERROR, 1 = FATAL
	Code     uint32
	SQLState string
	Msg      string
}

func (m *ErrorDetail) Marshal() []byte {
	var b []byte
	if m.Severity != 0 {
		b = appendVarintField(b, 1, uint64(m.Severity))
	}
	b = appendVarintField(b, 2, uint64(m.Code))
	b = appendStringField(b, 3, m.Msg)
	if m.SQLState != "" {
		b = appendStringField(b, 4, m.SQLState)
	}
	return b
}

func ParseErrorDetail(buf []byte) (*ErrorDetail, error) {
	m := &ErrorDetail{}
	return m, forEachField(buf, "Error", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Error.severity")
			}
			m.Severity = uint32(v)
			return n, nil
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Error.code")
			}
			m.Code = uint32(v)
			return n, nil
		case 3:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Error.msg")
			}
			m.Msg = string(v)
			return n, nil
		case 4:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Error.sql_state")
			}
			m.SQLState = string(v)
			return n, nil
		}
		return skipField(num, typ, buf)
	})
}

// Capability is one Capability{name, value: Any} entry.
type Capability struct {
	Name  string
	Value *Any
}

func (c *Capability) Marshal() []byte {
	b := appendStringField(nil, 1, c.Name)
	if c.Value != nil {
		b = appendBytesField(b, 2, c.Value.Marshal())
	}
	return b
}

func parseCapability(buf []byte) (*Capability, error) {
	c := &Capability{}
	err := forEachField(buf, "Capability", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Capability.name")
			}
			c.Name = string(v)
			return n, nil
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Capability.value")
			}
			any, err := ParseAny(v)
			if err != nil {
				return 0, err
			}
			c.Value = any
			return n, nil
		}
		return skipField(num, typ, buf)
	})
	return c, err
}

// Capabilities is Mysqlx.Connection.Capabilities{capabilities*}, the
// CONN_CAPABILITIES server reply to CapabilitiesGet.
type Capabilities struct {
	Capabilities []*Capability
}

func (m *Capabilities) Marshal() []byte {
	var b []byte
	for _, c := range m.Capabilities {
		b = appendBytesField(b, 1, c.Marshal())
	}
	return b
}

func ParseCapabilities(buf []byte) (*Capabilities, error) {
	m := &Capabilities{}
	err := forEachField(buf, "Capabilities", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Capabilities.capabilities")
			}
			c, err := parseCapability(v)
			if err != nil {
				return 0, err
			}
			m.Capabilities = append(m.Capabilities, c)
			return n, nil
		}
		return skipField(num, typ, buf)
	})
	return m, err
}

// CapabilitiesGet is the empty Mysqlx.Connection.CapabilitiesGet request.
type CapabilitiesGet struct{}

func (*CapabilitiesGet) Marshal() []byte { return nil }

// Close is the empty Mysqlx.Connection.Close / Mysqlx.Session.Close request;
// both share this shape on the wire (no fields), distinguished only by the
// ClientTag they are sent under.
type Close struct{}

func (*Close) Marshal() []byte { return nil }

// Reset is the empty Mysqlx.Session.Reset request.
type Reset struct{}

func (*Reset) Marshal() []byte { return nil }

// CapabilitiesSet is Mysqlx.Connection.CapabilitiesSet{capabilities}.
type CapabilitiesSet struct {
	Capabilities []*Capability
}

func (m *CapabilitiesSet) Marshal() []byte {
	var b []byte
	for _, c := range m.Capabilities {
		b = appendBytesField(b, 1, c.Marshal())
	}
	return b
}

// AuthenticateStart is Mysqlx.Session.AuthenticateStart{mech_name, auth_data, initial_response}.
type AuthenticateStart struct {
	MechName string
	AuthData []byte
}

func (m *AuthenticateStart) Marshal() []byte {
	b := appendStringField(nil, 1, m.MechName)
	if m.AuthData != nil {
		b = appendBytesField(b, 2, m.AuthData)
	}
	return b
}

// AuthenticateContinue is Mysqlx.Session.AuthenticateContinue{auth_data}.
type AuthenticateContinue struct {
	AuthData []byte
}

func (m *AuthenticateContinue) Marshal() []byte {
	return appendBytesField(nil, 1, m.AuthData)
}

func ParseAuthenticateContinue(buf []byte) (*AuthenticateContinue, error) {
	m := &AuthenticateContinue{}
	err := forEachField(buf, "AuthenticateContinue", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed AuthenticateContinue.auth_data")
			}
			m.AuthData = append([]byte(nil), v...)
			return n, nil
		}
		return skipField(num, typ, buf)
	})
	return m, err
}

// AuthenticateOk is Mysqlx.Session.AuthenticateOk{auth_data}.
type AuthenticateOk struct {
	AuthData []byte
}

func (m *AuthenticateOk) Marshal() []byte {
	if len(m.AuthData) == 0 {
		return nil
	}
	return appendBytesField(nil, 1, m.AuthData)
}

func ParseAuthenticateOk(buf []byte) (*AuthenticateOk, error) {
	m := &AuthenticateOk{}
	err := forEachField(buf, "AuthenticateOk", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed AuthenticateOk.auth_data")
			}
			m.AuthData = append([]byte(nil), v...)
			return n, nil
		}
		return skipField(num, typ, buf)
	})
	return m, err
}

// Object/Any-valued bind argument pair for StmtExecute.
type Argument struct {
	Value *Any
}

// StmtExecute is Mysqlx.Sql.StmtExecute{namespace, stmt, args, compact_metadata}.
type StmtExecute struct {
	Namespace       string
	Stmt            []byte
	Args            []*Any
	CompactMetadata bool
}

func (m *StmtExecute) Marshal() []byte {
	var b []byte
	if m.Namespace != "" {
		b = appendStringField(b, 2, m.Namespace)
	}
	b = appendBytesField(b, 3, m.Stmt)
	for _, a := range m.Args {
		b = appendBytesField(b, 4, a.Marshal())
	}
	if m.CompactMetadata {
		b = appendBoolField(b, 5, true)
	}
	return b
}

// StmtExecuteOk is the empty Mysqlx.Sql.StmtExecuteOk terminator.
type StmtExecuteOk struct{}

func (*StmtExecuteOk) Marshal() []byte { return nil }

// ColumnMetaData is Mysqlx.Resultset.ColumnMetaData.
type ColumnMetaData struct {
	Type             FieldType
	Name             string
	OriginalName     string
	Table            string
	OriginalTable    string
	Schema           string
	Catalog          string
	Collation        uint64
	FractionalDigits uint32
	Length           uint32
	Flags            uint32
	ContentType      uint32
}

func (m *ColumnMetaData) Marshal() []byte {
	b := appendVarintField(nil, 1, uint64(m.Type))
	if m.Name != "" {
		b = appendStringField(b, 2, m.Name)
	}
	if m.OriginalName != "" {
		b = appendStringField(b, 3, m.OriginalName)
	}
	if m.Table != "" {
		b = appendStringField(b, 4, m.Table)
	}
	if m.OriginalTable != "" {
		b = appendStringField(b, 5, m.OriginalTable)
	}
	if m.Schema != "" {
		b = appendStringField(b, 6, m.Schema)
	}
	if m.Catalog != "" {
		b = appendStringField(b, 7, m.Catalog)
	}
	if m.Collation != 0 {
		b = appendVarintField(b, 8, m.Collation)
	}
	b = appendVarintField(b, 9, uint64(m.FractionalDigits))
	b = appendVarintField(b, 10, uint64(m.Length))
	if m.Flags != 0 {
		b = appendVarintField(b, 11, uint64(m.Flags))
	}
	if m.ContentType != 0 {
		b = appendVarintField(b, 12, uint64(m.ContentType))
	}
	return b
}

func ParseColumnMetaData(buf []byte) (*ColumnMetaData, error) {
	m := &ColumnMetaData{}
	err := forEachField(buf, "ColumnMetaData", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed ColumnMetaData.type")
			}
			m.Type = FieldType(v)
			return n, nil
		case 2:
			return consumeStringInto(&m.Name, buf)
		case 3:
			return consumeStringInto(&m.OriginalName, buf)
		case 4:
			return consumeStringInto(&m.Table, buf)
		case 5:
			return consumeStringInto(&m.OriginalTable, buf)
		case 6:
			return consumeStringInto(&m.Schema, buf)
		case 7:
			return consumeStringInto(&m.Catalog, buf)
		case 8:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed ColumnMetaData.collation")
			}
			m.Collation = v
			return n, nil
		case 9:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed ColumnMetaData.fractional_digits")
			}
			m.FractionalDigits = uint32(v)
			return n, nil
		case 10:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed ColumnMetaData.length")
			}
			m.Length = uint32(v)
			return n, nil
		case 11:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed ColumnMetaData.flags")
			}
			m.Flags = uint32(v)
			return n, nil
		case 12:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed ColumnMetaData.content_type")
			}
			m.ContentType = uint32(v)
			return n, nil
		}
		return skipField(num, typ, buf)
	})
	return m, err
}

func consumeStringInto(dst *string, buf []byte) (int, error) {
	v, n := protowire.ConsumeBytes(buf)
	if n < 0 {
		return 0, fmt.Errorf("mysqlxpb: malformed string field")
	}
	*dst = string(v)
	return n, nil
}

// Row is Mysqlx.Resultset.Row{field*}: one raw byte slice per column, each
// itself a fragment of protobuf wire format the row package decodes
// according to the column's declared FieldType.
type Row struct {
	Fields [][]byte
}

func (m *Row) Marshal() []byte {
	var b []byte
	for _, f := range m.Fields {
		b = appendBytesField(b, 1, f)
	}
	return b
}

func ParseRow(buf []byte) (*Row, error) {
	m := &Row{}
	err := forEachField(buf, "Row", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Row.field")
			}
			m.Fields = append(m.Fields, append([]byte(nil), v...))
			return n, nil
		}
		return skipField(num, typ, buf)
	})
	return m, err
}

// FetchDone is the empty Mysqlx.Resultset.FetchDone terminator for one
// resultset.
type FetchDone struct{}

func (*FetchDone) Marshal() []byte { return nil }

// FetchDoneMoreResultsets is the empty
// Mysqlx.Resultset.FetchDoneMoreResultsets terminator signaling another
// resultset follows.
type FetchDoneMoreResultsets struct{}

func (*FetchDoneMoreResultsets) Marshal() []byte { return nil }

// NoticeFrame is Mysqlx.Notice.Frame{type, scope, payload}.
type NoticeFrame struct {
	Type    uint32
	Scope   NoticeScope
	Payload []byte
}

func (m *NoticeFrame) Marshal() []byte {
	b := appendVarintField(nil, 1, uint64(m.Type))
	scope := m.Scope
	if scope == 0 {
		scope = NoticeLocal
	}
	b = appendVarintField(b, 2, uint64(scope))
	if len(m.Payload) > 0 {
		b = appendBytesField(b, 3, m.Payload)
	}
	return b
}

func ParseNoticeFrame(buf []byte) (*NoticeFrame, error) {
	m := &NoticeFrame{Scope: NoticeLocal}
	err := forEachField(buf, "Notice.Frame", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Notice.Frame.type")
			}
			m.Type = uint32(v)
			return n, nil
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Notice.Frame.scope")
			}
			m.Scope = NoticeScope(v)
			return n, nil
		case 3:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Notice.Frame.payload")
			}
			m.Payload = append([]byte(nil), v...)
			return n, nil
		}
		return skipField(num, typ, buf)
	})
	return m, err
}

// Warning is Mysqlx.Notice.Warning{level, code, msg} — the payload of a
// NoticeFrame whose Type is NoticeTypeWarning.
type Warning struct {
	Level uint32 // 0 = NOTE, 1 = WARNING, 2 = ERROR
	Code  uint32
	Msg   string
}

func (m *Warning) Marshal() []byte {
	var b []byte
	if m.Level != 0 {
		b = appendVarintField(b, 1, uint64(m.Level))
	}
	b = appendVarintField(b, 2, uint64(m.Code))
	b = appendStringField(b, 3, m.Msg)
	return b
}

func ParseWarning(buf []byte) (*Warning, error) {
	m := &Warning{}
	err := forEachField(buf, "Notice.Warning", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Warning.level")
			}
			m.Level = uint32(v)
			return n, nil
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Warning.code")
			}
			m.Code = uint32(v)
			return n, nil
		case 3:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed Warning.msg")
			}
			m.Msg = string(v)
			return n, nil
		}
		return skipField(num, typ, buf)
	})
	return m, err
}

// SessionStateChanged is Mysqlx.Notice.SessionStateChanged{param, value*} —
// the payload of a NoticeFrame whose Type is NoticeTypeSessionStateChanged.
type SessionStateChanged struct {
	Param  SessionStateParam
	Values []*Scalar
}

func (m *SessionStateChanged) Marshal() []byte {
	b := appendVarintField(nil, 1, uint64(m.Param))
	for _, v := range m.Values {
		b = appendBytesField(b, 2, v.Marshal())
	}
	return b
}

func ParseSessionStateChanged(buf []byte) (*SessionStateChanged, error) {
	m := &SessionStateChanged{}
	err := forEachField(buf, "Notice.SessionStateChanged", func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed SessionStateChanged.param")
			}
			m.Param = SessionStateParam(v)
			return n, nil
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, fmt.Errorf("mysqlxpb: malformed SessionStateChanged.value")
			}
			sc, err := ParseScalar(v)
			if err != nil {
				return 0, err
			}
			m.Values = append(m.Values, sc)
			return n, nil
		}
		return skipField(num, typ, buf)
	})
	return m, err
}

// forEachField walks a length-delimited message buffer, calling handle for
// every (field number, wire type, remaining buffer) tuple and advancing by
// however many bytes it consumed.
func forEachField(buf []byte, msgName string, handle func(num protowire.Number, typ protowire.Type, buf []byte) (int, error)) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("mysqlxpb: malformed %s tag", msgName)
		}
		buf = buf[n:]
		consumed, err := handle(num, typ, buf)
		if err != nil {
			return err
		}
		buf = buf[consumed:]
	}
	return nil
}
