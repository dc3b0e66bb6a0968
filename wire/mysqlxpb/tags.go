// Package mysqlxpb holds the subset of the X Protocol's Mysqlx.* message
// schema this client consumes. In a real deployment this schema is
// generated by protoc from the server's .proto IDL; that IDL is treated as
// an external collaborator producing "(type_tag, bytes)" pairs with
// serialize/parse operations, so this package hand-writes just the message
// shapes the client side needs, encoded with the same wire primitives protoc
// would use (google.golang.org/protobuf/encoding/protowire) — see
// DESIGN.md's C2 entry.
package mysqlxpb

// ClientTag identifies an outbound message's type byte.
type ClientTag uint8

const (
	ClientConCapabilitiesGet       ClientTag = 1
	ClientConCapabilitiesSet       ClientTag = 2
	ClientConClose                 ClientTag = 3
	ClientSessAuthenticateStart    ClientTag = 4
	ClientSessAuthenticateContinue ClientTag = 5
	ClientSessReset                ClientTag = 6
	ClientSessClose                ClientTag = 7
	ClientSQLStmtExecute           ClientTag = 12
	ClientCrudFind                 ClientTag = 17
	ClientCrudInsert               ClientTag = 18
	ClientCrudUpdate               ClientTag = 19
	ClientCrudDelete               ClientTag = 20
)

// ServerTag identifies an inbound message's type byte.
type ServerTag uint8

const (
	ServerOK                               ServerTag = 0
	ServerError                            ServerTag = 1
	ServerConnCapabilities                 ServerTag = 2
	ServerSessAuthenticateContinue         ServerTag = 3
	ServerSessAuthenticateOK               ServerTag = 4
	ServerNotice                           ServerTag = 11
	ServerResultsetColumnMetaData          ServerTag = 12
	ServerResultsetRow                     ServerTag = 13
	ServerResultsetFetchDone               ServerTag = 14
	ServerResultsetFetchDoneMoreResultsets ServerTag = 16
	ServerSQLStmtExecuteOk                 ServerTag = 17
)

func (t ServerTag) String() string {
	switch t {
	case ServerOK:
		return "OK"
	case ServerError:
		return "ERROR"
	case ServerConnCapabilities:
		return "CONN_CAPABILITIES"
	case ServerSessAuthenticateContinue:
		return "SESS_AUTHENTICATE_CONTINUE"
	case ServerSessAuthenticateOK:
		return "SESS_AUTHENTICATE_OK"
	case ServerNotice:
		return "NOTICE"
	case ServerResultsetColumnMetaData:
		return "RESULTSET_COLUMN_META_DATA"
	case ServerResultsetRow:
		return "RESULTSET_ROW"
	case ServerResultsetFetchDone:
		return "RESULTSET_FETCH_DONE"
	case ServerResultsetFetchDoneMoreResultsets:
		return "RESULTSET_FETCH_DONE_MORE_RESULTSETS"
	case ServerSQLStmtExecuteOk:
		return "SQL_STMT_EXECUTE_OK"
	default:
		return "UNKNOWN"
	}
}

// FieldType enumerates ColumnMetaData.Type.
type FieldType uint32

const (
	FieldSint     FieldType = 1
	FieldUint     FieldType = 2
	FieldDouble   FieldType = 5
	FieldFloat    FieldType = 6
	FieldBytes    FieldType = 7
	FieldTime     FieldType = 10
	FieldDatetime FieldType = 12
	FieldSet      FieldType = 15
	FieldEnum     FieldType = 16
	FieldBit      FieldType = 17
	FieldDecimal  FieldType = 18
)

// NoticeScope is Notice.Frame.scope.
type NoticeScope uint32

const (
	NoticeGlobal NoticeScope = 1
	NoticeLocal  NoticeScope = 2
)

// SessionStateParam is Notice.SessionStateChanged.param.
type SessionStateParam uint32

const (
	ParamCurrentSchema      SessionStateParam = 1
	ParamAccountExpired      SessionStateParam = 2
	ParamGeneratedInsertID   SessionStateParam = 3
	ParamRowsAffected        SessionStateParam = 4
	ParamProducedMessage     SessionStateParam = 5
	ParamClientIDAssigned    SessionStateParam = 6
	ParamGeneratedDocumentIDs SessionStateParam = 7
)

// NoticeType is Notice.Frame.type. 1 = Warning, 3 = SessionStateChanged.
const (
	NoticeTypeWarning              = 1
	NoticeTypeSessionStateChanged  = 3
)
