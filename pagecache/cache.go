package pagecache

import (
	"sync"
	"sync/atomic"

	"github.com/zhukovaskychina/xmysqlx/internal/xerrors"
	"github.com/zhukovaskychina/xmysqlx/internal/xlog"
)

// chain is a per-file doubly linked list of block indices (used for both
// the dirty "changed_blocks" chain and the clean "file_blocks" chain).
type chain struct {
	head int
}

// PageCache is a shared, thread-safe cache of fixed-size pages over
// multiple files: arrays of blocks and hash-links, an LRU, per-file dirty/
// clean chains, and the three global wait queues find_block suspends on.
type PageCache struct {
	mu sync.Mutex

	pageSize uint32
	blocks   []*Block
	free     []int // free-list of block indices, LIFO
	table    *hashTable
	lru      *lru

	changed map[*FileHandle]*chain
	clean   map[*FileHandle]*chain

	resizeQueue       *WaitQueue
	waitingForHashLink *WaitQueue
	waitingForBlock    *WaitQueue

	filesInFlush map[*FileHandle]*flushEntry
	stats        poolStats

	nextOrdinal uint32
	selfSeq     int64 // monotonic source for goroutine-identifying lock tokens
	closed      atomic.Bool
}

// NewPageCache allocates a cache with memoryBudget bytes split between the
// block array and the hash-link array. page_size must be a power of two
// >= 512. Allocation shrinks the block count to fit the arena, erroring if
// fewer than 8 blocks would result.
func NewPageCache(memoryBudget uint64, divisionLimitPct, ageThresholdPct int, pageSize uint32) (*PageCache, error) {
	if pageSize < 512 || pageSize&(pageSize-1) != 0 {
		return nil, ErrPageTooSmall
	}
	const hashLinkSize = 40 // approximate overhead per hash-link slot
	perBlock := uint64(pageSize) + hashLinkSize
	blockCount := int(memoryBudget / perBlock)
	if blockCount < 8 {
		return nil, ErrArenaTooSmall
	}

	minWarm := blockCount*divisionLimitPct/100 + 1
	ageThreshold := uint64(blockCount * ageThresholdPct / 100)

	blocks := make([]*Block, blockCount)
	free := make([]int, blockCount)
	for i := range blocks {
		blocks[i] = newBlock(pageSize, i)
		free[i] = blockCount - 1 - i // pop from the end: free[0] pops last
	}

	pc := &PageCache{
		pageSize:           pageSize,
		blocks:             blocks,
		free:               free,
		table:              newHashTable(blockCount * 5 / 4),
		lru:                newLRU(blocks, minWarm, ageThreshold),
		changed:            make(map[*FileHandle]*chain),
		clean:              make(map[*FileHandle]*chain),
		resizeQueue:        NewWaitQueue(),
		waitingForHashLink: NewWaitQueue(),
		waitingForBlock:    NewWaitQueue(),
		filesInFlush:       make(map[*FileHandle]*flushEntry),
	}
	return pc, nil
}

// OpenFile registers a file for page I/O through this cache.
func (c *PageCache) OpenFile(name string, r Preader, w Pwriter) *FileHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextOrdinal++
	f := NewFileHandle(name, c.pageSize, r, w)
	f.ordinal = c.nextOrdinal
	c.changed[f] = &chain{head: -1}
	c.clean[f] = &chain{head: -1}
	return f
}

func (c *PageCache) selfToken() int64 { return atomic.AddInt64(&c.selfSeq, 1) }

// FindBlock locates or creates the Block for (file, page_no), implementing
// the cache-fill placement algorithm: reuse a resident block, else claim a
// free block, else evict the coldest warm-end block (flushing it first if
// dirty), retrying when a concurrent eviction/flush races this one.
func (c *PageCache) FindBlock(file *FileHandle, pageNo uint64, initHits uint32, forWrite, regRequest bool) (*Block, BlockStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findBlockLocked(file, pageNo, initHits, forWrite, regRequest)
}

func (c *PageCache) findBlockLocked(file *FileHandle, pageNo uint64, initHits uint32, forWrite, regRequest bool) (*Block, BlockStatus, error) {
	if c.closed.Load() {
		return nil, 0, ErrClosed
	}
	for {
		link := c.table.find(file, pageNo)
		if link == nil {
			idx := c.claimBlockLocked()
			if idx < 0 {
				// No free or evictable block; caller's goroutine parks here
				// and retries once one is released.
				w := c.waitingForBlock.Add(LeftUnlocked)
				c.mu.Unlock()
				<-w.Chan()
				c.mu.Lock()
				continue
			}
			link = &HashLink{file: file, page: pageNo}
			c.table.insert(link)
			b := c.blocks[idx]
			b.link = link
			link.block = b
			b.status = 0
			b.typ = TypeEmpty
			b.recLSN = lsnMax
			c.lru.insertFresh(idx)
			if regRequest {
				b.requests++
			}
			return b, ToBeRead, nil
		}

		if link.block == nil {
			// Someone else is mid-creation of this link; treat as a
			// request to wait for the primary reader.
			w := c.waitingForHashLink.Add(LeftUnlocked)
			c.mu.Unlock()
			<-w.Chan()
			c.mu.Lock()
			continue
		}

		b := link.block
		if b.status.has(StatusInSwitch) || b.status.has(StatusReassigned) {
			if forWrite {
				b.status |= StatusDirectW
				return b, Read, nil
			}
			w := b.forSaved.Add(LeftUnlocked)
			c.mu.Unlock()
			<-w.Chan()
			c.mu.Lock()
			continue
		}

		if regRequest {
			b.requests++
		}
		if b.status.has(StatusRead) {
			c.lru.touch(b.idx)
			c.lru.stats.hit()
			return b, Read, nil
		}
		c.lru.stats.miss()
		return b, WaitToBeRead, nil
	}
}

// claimBlockLocked returns a free block index, evicting the warm-end LRU
// block if the free list is empty. Returns -1 if no block could be
// obtained without blocking.
func (c *PageCache) claimBlockLocked() int {
	if n := len(c.free); n > 0 {
		idx := c.free[n-1]
		c.free = c.free[:n-1]
		return idx
	}

	idx := -1
	for scanned := 0; scanned < len(c.blocks); scanned++ {
		cand := c.lru.popWarmEnd()
		if cand < 0 {
			break
		}
		if c.blocks[cand].evictable() {
			idx = cand
			break
		}
		// Skip pinned/locked/in-flight blocks: put them back at the hot
		// end and try the next coldest, visiting each block at most once.
		c.lru.insertAtHot(cand)
	}
	if idx < 0 {
		return -1
	}

	b := c.blocks[idx]
	if b.dirty() {
		c.evictDirtyLocked(b)
	}
	c.unlinkBlockLocked(b)
	c.stats.recordEviction()
	return idx
}

// evictDirtyLocked writes a dirty block out before it is repurposed,
// dropping the cache lock for the actual I/O per the find_block contract.
func (c *PageCache) evictDirtyLocked(b *Block) {
	b.status |= StatusInSwitch
	file := b.link.file
	pageNo := b.link.page
	buf := append([]byte(nil), b.buf...)
	recLSN := b.recLSN

	c.mu.Unlock()
	var err error
	if file.FlushLogCb != nil {
		err = file.FlushLogCb(recLSN)
	}
	if err == nil && file.WriteCb != nil {
		err = file.WriteCb(buf, pageNo)
	}
	if err == nil {
		err = file.pwrite(buf, pageNo)
	}
	c.mu.Lock()

	if err != nil {
		b.status |= StatusError
		b.errno = err
		if file.WriteFailCb != nil {
			file.WriteFailCb(pageNo, err)
		}
	}
	c.unchainLocked(c.changed[file], b, true)
	c.chainInsert(c.clean[file], b, false)
	b.status &^= StatusChanged | StatusInSwitch
	b.recLSN = lsnMax
	b.forSaved.ReleaseAll()
}

// unlinkBlockLocked removes b's HashLink and chain memberships so the
// block can be repurposed for a different page.
func (c *PageCache) unlinkBlockLocked(b *Block) {
	if b.link == nil {
		return
	}
	file := b.link.file
	if b.dirty() {
		c.unchainLocked(c.changed[file], b, true)
	} else {
		c.unchainLocked(c.clean[file], b, false)
	}
	c.table.remove(b.link)
	b.link = nil
}

func (c *PageCache) chainInsert(ch *chain, b *Block, dirty bool) {
	if dirty {
		b.chgNext = ch.head
		b.chgPrev = -1
		if ch.head >= 0 {
			c.blocks[ch.head].chgPrev = b.idx
		}
	} else {
		b.fileNext = ch.head
		b.filePrev = -1
		if ch.head >= 0 {
			c.blocks[ch.head].filePrev = b.idx
		}
	}
	ch.head = b.idx
}

func (c *PageCache) unchainLocked(ch *chain, b *Block, dirty bool) {
	if ch == nil {
		return
	}
	var prev, next int
	if dirty {
		prev, next = b.chgPrev, b.chgNext
	} else {
		prev, next = b.filePrev, b.fileNext
	}
	if prev >= 0 {
		if dirty {
			c.blocks[prev].chgNext = next
		} else {
			c.blocks[prev].fileNext = next
		}
	} else if ch.head == b.idx {
		ch.head = next
	}
	if next >= 0 {
		if dirty {
			c.blocks[next].chgPrev = prev
		} else {
			c.blocks[next].filePrev = prev
		}
	}
	if dirty {
		b.chgPrev, b.chgNext = -1, -1
	} else {
		b.filePrev, b.fileNext = -1, -1
	}
}

// Read fetches a page, performing the disk read itself if this caller is
// the primary reader, or waiting for a concurrent primary reader otherwise.
// If buf is non-nil the page is copied into it; otherwise the returned
// slice borrows the block's internal buffer and the caller must hold a
// pin/lock covering its use.
func (c *PageCache) Read(file *FileHandle, pageNo uint64, lock LockChange, buf []byte) ([]byte, error) {
	self := c.selfToken()
	c.mu.Lock()
	b, status, err := c.findBlockLocked(file, pageNo, 1, lock == LockWrite, true)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	switch status {
	case ToBeRead:
		c.performReadLocked(b, file, pageNo)
	case WaitToBeRead:
		w := b.forRequested.Add(LeftUnlocked)
		c.mu.Unlock()
		<-w.Chan()
		c.mu.Lock()
	}

	if err := c.waitAcquireLocked(b, lock, self); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.applyPinLocked(b, Pin)

	if b.status.has(StatusError) {
		ioErr := &IOError{File: file, Page: pageNo, Errno: b.errno}
		c.mu.Unlock()
		return nil, ioErr
	}

	var out []byte
	if buf != nil {
		copy(buf, b.buf)
		out = buf
	} else {
		out = b.buf
	}
	c.mu.Unlock()
	return out, nil
}

// performReadLocked drops the cache lock, performs the blocking pread, and
// wakes every FOR_REQUESTED waiter once the contents (or error) are
// settled. Called with c.mu held; returns with it held.
func (c *PageCache) performReadLocked(b *Block, file *FileHandle, pageNo uint64) {
	c.mu.Unlock()
	err := file.pread(b.buf, pageNo)
	if err == nil && file.ReadCb != nil {
		err = file.ReadCb(b.buf, pageNo)
	}
	c.mu.Lock()

	if err != nil {
		b.status |= StatusError
		b.errno = err
		xlog.WithField("page", pageNo).Debug("pagecache: read failed")
	} else {
		b.status &^= StatusError
		b.status |= StatusRead
		b.errno = nil
	}
	b.forRequested.ReleaseAll()
}

// waitAcquireLocked applies lock to b, parking on FOR_WRLOCK and retrying
// while the requested transition is not yet available. Called with c.mu
// held throughout except while actually parked.
func (c *PageCache) waitAcquireLocked(b *Block, lock LockChange, self int64) error {
	for {
		switch lock {
		case LockWrite:
			if b.canAcquireWrite(self) {
				b.applyLock(LockWrite, self)
				return nil
			}
		case LockRead:
			if b.queuedBehindSelf(self) || b.canAcquireRead(self) {
				b.applyLock(LockRead, self)
				return nil
			}
		default:
			return nil
		}

		key := b.key()
		w := b.forWrlock.Add(lock)
		c.mu.Unlock()
		<-w.Chan()
		c.mu.Lock()

		if b.link == nil || b.key() != key || b.status.has(StatusReassigned) || b.status.has(StatusInSwitch) {
			return xerrors.New(xerrors.StateAbuse, "block reassigned while waiting for lock")
		}
	}
}

func (c *PageCache) applyPinLocked(b *Block, pc PinChange) {
	b.applyPin(pc)
}

// WritePart implements write_part: WriteDelay buffers into the cache and
// marks the block dirty (reading the existing page first if this is a
// partial write to an absent page); WriteDone injects an authoritative
// cache-fill that is not marked dirty.
func (c *PageCache) WritePart(file *FileHandle, pageNo uint64, off, size int, buf []byte, typ PageType, lock LockChange, pin PinChange, mode WriteMode, recLSN *uint64) error {
	self := c.selfToken()
	c.mu.Lock()
	b, status, err := c.findBlockLocked(file, pageNo, 1, true, true)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	full := off == 0 && size == int(c.pageSize)
	if status == ToBeRead && !full {
		c.performReadLocked(b, file, pageNo)
	} else if status == ToBeRead {
		b.status |= StatusRead
	} else if status == WaitToBeRead {
		w := b.forRequested.Add(LeftUnlocked)
		c.mu.Unlock()
		<-w.Chan()
		c.mu.Lock()
	}

	if err := c.waitAcquireLocked(b, lock, self); err != nil {
		c.mu.Unlock()
		return err
	}
	c.applyPinLocked(b, pin)

	if !canUpgrade(b.typ, typ) {
		c.mu.Unlock()
		return ErrInvalidPageType
	}
	b.typ = typ

	copy(b.buf[off:off+size], buf[:size])

	switch mode {
	case WriteDelay:
		if recLSN != nil && b.recLSN == lsnMax {
			b.recLSN = *recLSN
		}
		if !b.dirty() {
			b.status |= StatusChanged
			c.unchainLocked(c.clean[file], b, false)
			c.chainInsert(c.changed[file], b, true)
		}
	case WriteDone:
		b.status |= StatusRead
		b.status &^= StatusChanged
		if file.ReadCb != nil {
			if err := file.ReadCb(b.buf, pageNo); err != nil {
				b.status |= StatusError
				b.errno = err
			}
		}
		b.forRequested.ReleaseAll()
	}

	c.mu.Unlock()
	return nil
}

// CheckAndSetLSN implements check_and_set_lsn for a resident page: it hands
// headerLSN to setHeader and links the block into the dirty chain if it
// wasn't already there. It does not read or compare the LSN already stored
// in the page header, so setHeader receives headerLSN even when it is not
// larger. A page that is not resident is left untouched.
func (c *PageCache) CheckAndSetLSN(file *FileHandle, pageNo uint64, headerLSN uint64, setHeader func(buf []byte, lsn uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	link := c.table.find(file, pageNo)
	if link == nil || link.block == nil {
		return
	}
	b := link.block
	setHeader(b.buf, headerLSN)
	if !b.dirty() {
		b.status |= StatusChanged
		c.unchainLocked(c.clean[file], b, false)
		c.chainInsert(c.changed[file], b, true)
	}
}

// Delete implements delete: optionally flushing the page before evicting
// its block entirely back to the free list. Deleting a block already
// IN_FLUSH is a silent success; the concurrent flusher finishes the write.
func (c *PageCache) Delete(file *FileHandle, pageNo uint64, lock LockChange, flush bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	link := c.table.find(file, pageNo)
	if link == nil || link.block == nil {
		return nil
	}
	b := link.block
	if b.status.has(StatusInFlush) {
		return nil
	}

	if flush && b.dirty() {
		c.evictDirtyLocked(b)
	}
	c.lru.remove(b.idx)
	c.unlinkBlockLocked(b)
	b.status = 0
	b.pins, b.wlocks, b.rlocks, b.rlocksQueue = 0, 0, 0, 0
	c.free = append(c.free, b.idx)
	b.forSaved.ReleaseAll()
	return nil
}

// Unlock releases a previously acquired lock/pin and wakes one compatible
// waiter on FOR_WRLOCK, letting queued readers and writers take turns.
func (c *PageCache) Unlock(b *Block, lock LockChange, pin PinChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b.applyLock(lock, 0)
	b.applyPin(pin)
	if lock == WriteUnlock || lock == WriteToRead {
		b.forWrlock.ReleaseOneByType(LeftUnlocked)
	} else if lock == ReadUnlock && b.rlocks == 0 && b.rlocksQueue == 0 {
		b.forWrlock.ReleaseOneByType(LockWrite)
	}
}

// Stats reports the LRU hit-rate counters, grounded on the teacher's own
// buffer_lru.go stats struct.
func (c *PageCache) Stats() (hits, misses uint64, hitRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.stats.hits, c.lru.stats.misses, c.lru.stats.hitRate()
}

// Close marks the cache unusable for further find_block calls. In-flight
// operations already holding the lock complete normally.
func (c *PageCache) Close() {
	c.closed.Store(true)
}
