package pagecache

// ReadCallback verifies (and optionally transforms) a page's bytes just
// after they were read from disk into the block buffer. Returning a
// non-nil error sets the block's ERROR status bit.
type ReadCallback func(buf []byte, pageNo uint64) error

// WriteCallback prepares a page's bytes (e.g. stamping a checksum) just
// before they are written to disk.
type WriteCallback func(buf []byte, pageNo uint64) error

// WriteFailCallback is invoked when writing a dirty page out fails (the log
// flush, the WriteCb or the pwrite), after the block's ERROR bit is set, so
// the owner can log/account for it.
type WriteFailCallback func(pageNo uint64, err error)

// FlushLogCallback is invoked before a dirty page is written out, giving a
// WAL-backed owner the chance to force its log up to the page's LSN first.
type FlushLogCallback func(recLSN uint64) error

// Pwriter is the raw positioned-write primitive a FileHandle writes
// through; *os.File satisfies it.
type Pwriter interface {
	WriteAt(b []byte, off int64) (int, error)
}

// Preader is the raw positioned-read primitive a FileHandle reads through;
// *os.File satisfies it.
type Preader interface {
	ReadAt(b []byte, off int64) (int, error)
}

// FileHandle is one open file registered with a PageCache: an fd-like
// handle plus the callbacks find_block/flush_with_filter invoke around
// each disk I/O.
type FileHandle struct {
	name     string
	pageSize uint32
	ordinal  uint32 // assigned by PageCache.OpenFile; used for hash keying
	r        Preader
	w        Pwriter

	ReadCb     ReadCallback
	WriteCb    WriteCallback
	WriteFailCb WriteFailCallback
	FlushLogCb FlushLogCallback

	// Transactional marks this file as participating in checkpoint
	// collection (collect_changed_blocks_with_lsn only considers LSN-type
	// blocks belonging to transactional files).
	Transactional bool
	// ShortTableID is the u16 identifier emitted in checkpoint records.
	ShortTableID uint16
	// IsIndexOrData distinguishes an index file from a pure data file in
	// checkpoint records.
	IsIndexOrData uint8
}

// NewFileHandle registers an open file for page-sized positioned I/O.
func NewFileHandle(name string, pageSize uint32, r Preader, w Pwriter) *FileHandle {
	return &FileHandle{name: name, pageSize: pageSize, r: r, w: w}
}

func (f *FileHandle) Name() string { return f.name }

func fileOrdinal(f *FileHandle) uint32 {
	if f == nil {
		return 0
	}
	return f.ordinal
}

func (f *FileHandle) pread(buf []byte, pageNo uint64) error {
	_, err := f.r.ReadAt(buf, int64(pageNo)*int64(f.pageSize))
	return err
}

func (f *FileHandle) pwrite(buf []byte, pageNo uint64) error {
	_, err := f.w.WriteAt(buf, int64(pageNo)*int64(f.pageSize))
	return err
}
