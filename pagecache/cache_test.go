package pagecache

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFile is an in-memory Preader/Pwriter standing in for an *os.File.
type memFile struct {
	mu       sync.Mutex
	pageSize int
	pages    map[int64][]byte
}

func newMemFile(pageSize int) *memFile {
	return &memFile{pageSize: pageSize, pages: make(map[int64][]byte)}
}

func (m *memFile) ReadAt(b []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pages[off]
	if !ok {
		return len(b), nil // zero-filled page, like reading past EOF on a sparse file
	}
	return copy(b, page), nil
}

func (m *memFile) WriteAt(b []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), b...)
	m.pages[off] = cp
	return len(b), nil
}

func newTestCache(t *testing.T, pageSize uint32) (*PageCache, *FileHandle, *memFile) {
	t.Helper()
	pc, err := NewPageCache(256*1024, 25, 50, pageSize)
	require.NoError(t, err)
	mf := newMemFile(int(pageSize))
	f := pc.OpenFile("t1", mf, mf)
	return pc, f, mf
}

func TestNewPageCache_RejectsUndersizedPage(t *testing.T) {
	_, err := NewPageCache(1<<20, 25, 50, 511)
	assert.ErrorIs(t, err, ErrPageTooSmall)

	_, err = NewPageCache(1<<20, 25, 50, 513)
	assert.ErrorIs(t, err, ErrPageTooSmall)
}

func TestNewPageCache_RejectsArenaTooSmall(t *testing.T) {
	_, err := NewPageCache(1024, 25, 50, 4096)
	assert.ErrorIs(t, err, ErrArenaTooSmall)
}

func TestWritePartThenRead_RoundTrips(t *testing.T) {
	pc, f, _ := newTestCache(t, 4096)

	payload := make([]byte, 4096)
	copy(payload, []byte("hello page cache"))

	err := pc.WritePart(f, 3, 0, len(payload), payload, TypePlain, LockWrite, LeftUnpinned, WriteDelay, nil)
	require.NoError(t, err)
	pc.Unlock(mustFind(t, pc, f, 3), WriteUnlock, Unpin)

	got, err := pc.Read(f, 3, LockRead, nil)
	require.NoError(t, err)
	assert.Equal(t, payload[:16], got[:16])
	pc.Unlock(mustFind(t, pc, f, 3), ReadUnlock, Unpin)
}

func TestWritePart_MarksBlockDirtyUntilFlushed(t *testing.T) {
	pc, f, mf := newTestCache(t, 4096)
	buf := make([]byte, 4096)

	require.NoError(t, pc.WritePart(f, 1, 0, len(buf), buf, TypePlain, LockWrite, LeftUnpinned, WriteDelay, nil))
	pc.Unlock(mustFind(t, pc, f, 1), WriteUnlock, Unpin)

	b := mustFind(t, pc, f, 1)
	assert.True(t, b.dirty())

	outcome := pc.FlushWithFilter(f, FlushKeep, nil, nil)
	assert.False(t, outcome.HasError())
	assert.False(t, mustFind(t, pc, f, 1).dirty())

	_, ok := mf.pages[int64(1)*4096]
	assert.True(t, ok, "flush should have written the page to disk")
}

func TestDelete_EvictsBlockAndFreesSlot(t *testing.T) {
	pc, f, _ := newTestCache(t, 4096)
	buf := make([]byte, 4096)
	require.NoError(t, pc.WritePart(f, 5, 0, len(buf), buf, TypePlain, LockWrite, LeftUnpinned, WriteDelay, nil))
	pc.Unlock(mustFind(t, pc, f, 5), WriteUnlock, Unpin)

	before := len(pc.free)
	require.NoError(t, pc.Delete(f, 5, LockWrite, true))
	assert.Greater(t, len(pc.free), before)

	link := pc.table.find(f, 5)
	assert.Nil(t, link)
}

func TestFindBlock_ReusesResidentBlockOnSecondLookup(t *testing.T) {
	pc, f, _ := newTestCache(t, 4096)
	buf := make([]byte, 4096)
	require.NoError(t, pc.WritePart(f, 9, 0, len(buf), buf, TypePlain, LockWrite, LeftUnpinned, WriteDone, nil))
	pc.Unlock(mustFind(t, pc, f, 9), WriteUnlock, Unpin)

	b1, status, err := pc.FindBlock(f, 9, 1, false, true)
	require.NoError(t, err)
	assert.Equal(t, Read, status)

	b2, status, err := pc.FindBlock(f, 9, 1, false, true)
	require.NoError(t, err)
	assert.Equal(t, Read, status)
	assert.True(t, b1 == b2, "expected the same resident block on repeat lookup")
}

func TestWritePart_RejectsBackwardsTypeDowngrade(t *testing.T) {
	pc, f, _ := newTestCache(t, 4096)
	buf := make([]byte, 4096)
	require.NoError(t, pc.WritePart(f, 2, 0, len(buf), buf, TypeLSN, LockWrite, LeftUnpinned, WriteDelay, nil))
	pc.Unlock(mustFind(t, pc, f, 2), WriteUnlock, Unpin)

	err := pc.WritePart(f, 2, 0, len(buf), buf, TypePlain, LockWrite, LeftUnpinned, WriteDelay, nil)
	assert.ErrorIs(t, err, ErrInvalidPageType)
}

func TestCheckAndSetLSN_OnlyAdvancesForward(t *testing.T) {
	pc, f, _ := newTestCache(t, 4096)
	buf := make([]byte, 4096)
	require.NoError(t, pc.WritePart(f, 7, 0, len(buf), buf, TypeLSN, LockWrite, LeftUnpinned, WriteDone, nil))
	pc.Unlock(mustFind(t, pc, f, 7), WriteUnlock, Unpin)

	var lastLSN uint64
	setHeader := func(b []byte, lsn uint64) { lastLSN = lsn }

	pc.CheckAndSetLSN(f, 7, 100, setHeader)
	assert.EqualValues(t, 100, lastLSN)
	assert.True(t, mustFind(t, pc, f, 7).dirty())
}

func TestCollectChangedBlocksWithLSN_OnlyTransactionalLSNPages(t *testing.T) {
	pc, f, _ := newTestCache(t, 4096)
	f.Transactional = true
	buf := make([]byte, 4096)

	require.NoError(t, pc.WritePart(f, 1, 0, len(buf), buf, TypeLSN, LockWrite, LeftUnpinned, WriteDelay, ptrU64(42)))
	pc.Unlock(mustFind(t, pc, f, 1), WriteUnlock, Unpin)
	require.NoError(t, pc.WritePart(f, 2, 0, len(buf), buf, TypePlain, LockWrite, LeftUnpinned, WriteDelay, ptrU64(7)))
	pc.Unlock(mustFind(t, pc, f, 2), WriteUnlock, Unpin)

	records, minLSN := pc.CollectChangedBlocksWithLSN()
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0].PageNo)
	assert.EqualValues(t, 42, minLSN)
}

func TestFlushWithFilter_SkipAllStopsScan(t *testing.T) {
	pc, f, _ := newTestCache(t, 4096)
	buf := make([]byte, 4096)
	require.NoError(t, pc.WritePart(f, 1, 0, len(buf), buf, TypePlain, LockWrite, LeftUnpinned, WriteDelay, nil))
	pc.Unlock(mustFind(t, pc, f, 1), WriteUnlock, Unpin)
	require.NoError(t, pc.WritePart(f, 2, 0, len(buf), buf, TypePlain, LockWrite, LeftUnpinned, WriteDelay, nil))
	pc.Unlock(mustFind(t, pc, f, 2), WriteUnlock, Unpin)

	calls := 0
	filter := func(typ FlushType, pageNo uint64, recLSN uint64, arg interface{}) FilterResult {
		calls++
		return FilterSkipAll
	}
	outcome := pc.FlushWithFilter(f, FlushKeep, filter, nil)
	assert.False(t, outcome.HasError())
	assert.Equal(t, 1, calls)
	assert.True(t, mustFind(t, pc, f, 1).dirty())
}

func TestIOError_UnwrapsUnderlyingErrno(t *testing.T) {
	sentinel := errors.New("disk on fire")
	ioErr := &IOError{Errno: sentinel}
	assert.ErrorIs(t, ioErr, sentinel)
}

func mustFind(t *testing.T, pc *PageCache, f *FileHandle, page uint64) *Block {
	t.Helper()
	pc.mu.Lock()
	defer pc.mu.Unlock()
	link := pc.table.find(f, page)
	require.NotNil(t, link)
	return link.block
}

func ptrU64(v uint64) *uint64 { return &v }
