// Package result implements the Result state machine (C5): it consumes
// inbound frames already decoded by wire.Decode in resultset order, exposing
// iteration over column metadata and rows across multiple resultsets, with
// optional full buffering for seek/tell/rewind.
//
// Grounded on spec.md §4.5's state table, supplemented by
// original_source/mysqlx_resultset.cc's buffered-vs-streaming split — see
// DESIGN.md's C5 entry.
package result

import (
	"github.com/zhukovaskychina/xmysqlx/internal/xerrors"
	"github.com/zhukovaskychina/xmysqlx/row"
	"github.com/zhukovaskychina/xmysqlx/wire/mysqlxpb"
)

// State is one node of the Result state machine.
type State int

const (
	ReadMetadataI State = iota
	ReadStmtOkI
	ReadMetadata
	ReadRows
	ReadStmtOk
	ReadDone
	ReadError
)

// Mode distinguishes a Result still streaming off the wire from one that has
// been fully buffered into memory.
type Mode int

const (
	Streaming Mode = iota
	Buffered
)

// Warning is one accumulated NOTICE{type=Warning} payload.
type Warning struct {
	Code   uint32
	Msg    string
	IsNote bool
}

// ResultSet is one buffered (metadata, rows) pair, produced once a
// FetchDoneMoreResultsets or full drain has been observed.
type ResultSet struct {
	Columns []*mysqlxpb.ColumnMetaData
	Rows    []*row.Row
}

// Source is the narrow channel a Result needs to pull frames: the next
// decoded server message (already dispatched by wire.Decode), or an error.
type Source interface {
	Next() (interface{}, error)
}

// Result drives one request's response stream to completion.
type Result struct {
	src  Source
	mode Mode

	state State
	err   error

	columns []*mysqlxpb.ColumnMetaData
	rows    []*row.Row // current resultset, streaming mode only
	rowPos  int

	// pendingDataset is set once a FetchDoneMoreResultsets has moved the
	// machine back to ReadMetadata for a new resultset; Next() stops
	// pumping until NextDataset() explicitly acknowledges the boundary, so
	// a caller that never asks for the next dataset never sees its rows.
	pendingDataset bool

	buffered    []ResultSet
	datasetIdx  int
	recordIdx   int

	affectedRows   uint64
	lastInsertID   uint64
	infoMessage    string
	warnings       []Warning
	lastDocumentID []string
}

// New starts a Result in the given initial state (ReadMetadataI for a
// data-bearing request, ReadStmtOkI for one that only ever produces an OK).
func New(src Source, initial State) *Result {
	return &Result{src: src, state: initial}
}

// State reports the Result's current machine state.
func (r *Result) State() State { return r.state }

// Err returns the terminal error, if state is ReadError.
func (r *Result) Err() error { return r.err }

// AffectedRows, LastInsertID, InfoMessage, Warnings report values the local
// notice handler accumulated while draining the stream.
func (r *Result) AffectedRows() uint64   { return r.affectedRows }
func (r *Result) LastInsertID() uint64   { return r.lastInsertID }
func (r *Result) InfoMessage() string    { return r.infoMessage }
func (r *Result) Warnings() []Warning    { return r.warnings }

// SetLastDocumentIDs records the ids a CRUD Add statement generated; a
// second call replaces rather than accumulates (see DESIGN.md Open Question
// decision 3).
func (r *Result) SetLastDocumentIDs(ids []string) {
	r.lastDocumentID = append([]string(nil), ids...)
}

// LastDocumentID returns the sole generated id; it fails unless exactly one
// was recorded.
func (r *Result) LastDocumentID() (string, error) {
	if len(r.lastDocumentID) != 1 {
		return "", xerrors.New(xerrors.StateAbuse, "last_document_id requires exactly one recorded id")
	}
	return r.lastDocumentID[0], nil
}

// LastDocumentIDs returns every generated id; it fails unless at least one
// was recorded.
func (r *Result) LastDocumentIDs() ([]string, error) {
	if len(r.lastDocumentID) == 0 {
		return nil, xerrors.New(xerrors.StateAbuse, "last_document_ids requires at least one recorded id")
	}
	return append([]string(nil), r.lastDocumentID...), nil
}

func (r *Result) fail(err error) error {
	r.state = ReadError
	r.err = err
	return err
}

// pump reads and dispatches the next frame, advancing the state machine. It
// loops transparently over NOTICE frames per spec.md's "any state + NOTICE"
// rule.
func (r *Result) pump() error {
	for {
		if r.state == ReadDone || r.state == ReadError {
			return r.err
		}
		msg, err := r.src.Next()
		if err != nil {
			return r.fail(err)
		}
		if notice, ok := msg.(*mysqlxpb.NoticeFrame); ok {
			r.handleNotice(notice)
			continue
		}
		if errDetail, ok := msg.(*mysqlxpb.ErrorDetail); ok {
			sev := xerrors.SeverityError
			if errDetail.Severity == 1 {
				sev = xerrors.SeverityFatal
			}
			return r.fail(&xerrors.ServerFault{Code: errDetail.Code, SQLState: errDetail.SQLState, Message: errDetail.Msg, Severity: sev})
		}
		return r.dispatch(msg)
	}
}

func (r *Result) dispatch(msg interface{}) error {
	switch r.state {
	case ReadMetadataI:
		switch m := msg.(type) {
		case *mysqlxpb.StmtExecuteOk:
			r.state = ReadDone
			return nil
		case *mysqlxpb.ColumnMetaData:
			r.columns = append(r.columns, m)
			r.state = ReadMetadata
			return nil
		}
	case ReadMetadata:
		switch m := msg.(type) {
		case *mysqlxpb.ColumnMetaData:
			r.columns = append(r.columns, m)
			return nil
		case *mysqlxpb.Row:
			r.rows = append(r.rows, row.New(r.columns, m.Fields))
			r.state = ReadRows
			return nil
		case *mysqlxpb.FetchDone:
			r.state = ReadStmtOk
			return nil
		}
	case ReadRows:
		switch m := msg.(type) {
		case *mysqlxpb.Row:
			r.rows = append(r.rows, row.New(r.columns, m.Fields))
			return nil
		case *mysqlxpb.FetchDone:
			r.state = ReadStmtOk
			return nil
		case *mysqlxpb.FetchDoneMoreResultsets:
			r.flushCurrentResultSet()
			r.state = ReadMetadata
			r.pendingDataset = true
			return nil
		}
	case ReadStmtOkI, ReadStmtOk:
		if _, ok := msg.(*mysqlxpb.StmtExecuteOk); ok {
			r.flushCurrentResultSet()
			r.state = ReadDone
			return nil
		}
	}
	return r.fail(xerrors.New(xerrors.CommandsOutOfSync, "unexpected server message for current result state"))
}

func (r *Result) flushCurrentResultSet() {
	if r.mode != Buffered {
		return
	}
	r.buffered = append(r.buffered, ResultSet{Columns: r.columns, Rows: r.rows})
	r.columns = nil
	r.rows = nil
}

func (r *Result) handleNotice(n *mysqlxpb.NoticeFrame) {
	switch n.Type {
	case mysqlxpb.NoticeTypeWarning:
		w, err := mysqlxpb.ParseWarning(n.Payload)
		if err != nil {
			return
		}
		r.warnings = append(r.warnings, Warning{Code: w.Code, Msg: w.Msg, IsNote: w.Level == 0})
	case mysqlxpb.NoticeTypeSessionStateChanged:
		sc, err := mysqlxpb.ParseSessionStateChanged(n.Payload)
		if err != nil || len(sc.Values) == 0 {
			return
		}
		v := sc.Values[0]
		switch sc.Param {
		case mysqlxpb.ParamGeneratedInsertID:
			r.lastInsertID = v.UInt
		case mysqlxpb.ParamRowsAffected:
			r.affectedRows = v.UInt
		case mysqlxpb.ParamProducedMessage:
			r.infoMessage = string(v.String)
		}
	}
}

// Next returns the next row of the current resultset, or nil once it is
// exhausted.
func (r *Result) Next() (*row.Row, error) {
	if r.mode == Buffered {
		if r.datasetIdx >= len(r.buffered) {
			return nil, nil
		}
		ds := r.buffered[r.datasetIdx]
		if r.recordIdx >= len(ds.Rows) {
			return nil, nil
		}
		rw := ds.Rows[r.recordIdx]
		r.recordIdx++
		return rw, nil
	}

	for r.rowPos >= len(r.rows) && !r.pendingDataset &&
		r.state != ReadDone && r.state != ReadError {
		if err := r.pump(); err != nil {
			return nil, err
		}
	}
	if r.rowPos >= len(r.rows) {
		return nil, nil
	}
	rw := r.rows[r.rowPos]
	r.rowPos++
	return rw, nil
}

// NextDataset advances to the next resultset once the current one is
// exhausted, returning false when there is none.
func (r *Result) NextDataset() (bool, error) {
	if r.mode == Buffered {
		if r.datasetIdx+1 >= len(r.buffered) {
			return false, nil
		}
		r.datasetIdx++
		r.recordIdx = 0
		return true, nil
	}

	for r.state != ReadMetadata && r.state != ReadDone && r.state != ReadError {
		if err := r.pump(); err != nil {
			return false, err
		}
	}
	if r.state != ReadMetadata {
		return false, r.err
	}
	r.pendingDataset = false
	r.columns = nil
	r.rows = nil
	r.rowPos = 0
	for r.state == ReadMetadata {
		if err := r.pump(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Columns returns the current resultset's column metadata.
func (r *Result) Columns() []*mysqlxpb.ColumnMetaData {
	if r.mode == Buffered {
		if r.datasetIdx >= len(r.buffered) {
			return nil
		}
		return r.buffered[r.datasetIdx].Columns
	}
	return r.columns
}

// Buffer caches every remaining resultset into memory, enabling Rewind/Tell/
// Seek.
func (r *Result) Buffer() error {
	if r.mode == Buffered {
		return nil
	}
	// Rows up to rowPos were already handed to the caller via Next() while
	// streaming; only the unconsumed tail of the current resultset belongs
	// in the buffer, or the first Next() after buffering would re-serve
	// rows the caller already saw.
	if r.rowPos > 0 {
		r.rows = append([]*row.Row(nil), r.rows[r.rowPos:]...)
		r.rowPos = 0
	}
	r.mode = Buffered
	for r.state != ReadDone && r.state != ReadError {
		if err := r.pump(); err != nil {
			return err
		}
	}
	if len(r.columns) > 0 || len(r.rows) > 0 {
		r.flushCurrentResultSet()
	}
	return r.err
}

// Drain exhausts the stream without retaining rows (used when a Result is
// abandoned but must still reach a terminal state before the connection is
// reused).
func (r *Result) Drain() error {
	for r.state != ReadDone && r.state != ReadError {
		if r.mode != Buffered {
			r.rows = nil
		}
		if err := r.pump(); err != nil {
			return err
		}
	}
	return r.err
}

// Rewind resets every buffered resultset's cursor to 0 and the current
// resultset pointer to the first resultset (DESIGN.md Open Question
// decision 2). Requires Buffer to have been called.
func (r *Result) Rewind() error {
	if r.mode != Buffered {
		return xerrors.New(xerrors.StateAbuse, "rewind requires a buffered result")
	}
	r.datasetIdx = 0
	r.recordIdx = 0
	return nil
}

// Tell returns the current (dataset, record) cursor position.
func (r *Result) Tell() (dataset, record int, err error) {
	if r.mode != Buffered {
		return 0, 0, xerrors.New(xerrors.StateAbuse, "tell requires a buffered result")
	}
	return r.datasetIdx, r.recordIdx, nil
}

// Seek repositions the cursor to (dataset, record).
func (r *Result) Seek(dataset, record int) error {
	if r.mode != Buffered {
		return xerrors.New(xerrors.StateAbuse, "seek requires a buffered result")
	}
	if dataset < 0 || dataset > len(r.buffered) {
		return xerrors.New(xerrors.IndexOutOfRange, "dataset index out of range")
	}
	r.datasetIdx = dataset
	r.recordIdx = record
	return nil
}
