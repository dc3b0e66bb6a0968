package pagecache

import "math"

// pageKey identifies a live (file, page_no) pair. HashLink and changed/file
// chains are both keyed by this.
type pageKey struct {
	file *FileHandle
	page uint64
}

// Block is a fixed-size page buffer plus its cache bookkeeping: hash/LRU/
// changed-list links, the read/write/pin lock state, temperature, and the
// three condition queues C7 suspends actors on.
type Block struct {
	buf []byte

	link *HashLink // owning HashLink, nil if free

	// LRU links (doubly linked via index into PageCache.blocks; -1 = none).
	lruPrev, lruNext int
	// changed_blocks[hash(file)] links.
	chgPrev, chgNext int
	// file_blocks[hash(file)] links (clean chain).
	filePrev, fileNext int
	idx                int // this block's own index, for link bookkeeping

	wlocks      uint32
	rlocks      uint32
	rlocksQueue uint32
	writeLocker int64 // goroutine-identifying token; 0 = none

	pins     uint32
	requests uint32

	status      Status
	temperature Temperature
	hitsLeft    uint32
	lastHit     uint64
	recLSN      uint64
	typ         PageType
	errno       error

	forRequested *WaitQueue
	forSaved     *WaitQueue
	forWrlock    *WaitQueue
}

const lsnMax = math.MaxUint64

func newBlock(pageSize uint32, idx int) *Block {
	return &Block{
		buf:          make([]byte, pageSize),
		idx:          idx,
		lruPrev:      -1,
		lruNext:      -1,
		chgPrev:      -1,
		chgNext:      -1,
		filePrev:     -1,
		fileNext:     -1,
		recLSN:       lsnMax,
		typ:          TypeEmpty,
		forRequested: NewWaitQueue(),
		forSaved:     NewWaitQueue(),
		forWrlock:    NewWaitQueue(),
	}
}

func (b *Block) dirty() bool { return b.status.has(StatusChanged) }

func (b *Block) key() pageKey {
	if b.link == nil {
		return pageKey{}
	}
	return pageKey{b.link.file, b.link.page}
}

// canAcquireWrite reports whether a write lock can be taken immediately by
// token self, per P2: a block with wlocks>0 has at most one write-locker,
// and acquiring write waits whenever any lock (read or write-by-another) is
// outstanding.
func (b *Block) canAcquireWrite(self int64) bool {
	if b.wlocks > 0 && b.writeLocker != self {
		return false
	}
	return b.rlocks == 0
}

// canAcquireRead reports whether a read lock becomes active immediately
// (false means either block-and-wait, or queue-behind-self's-write-lock).
func (b *Block) canAcquireRead(self int64) bool {
	if b.wlocks > 0 && b.writeLocker != self {
		return false
	}
	return true
}

// queuedBehindSelf reports whether an incoming read lock request should be
// queued (not yet active) because self already holds the write lock.
func (b *Block) queuedBehindSelf(self int64) bool {
	return b.wlocks > 0 && b.writeLocker == self
}

// applyLock performs the bookkeeping half of a LockChange once the caller
// has determined (via canAcquireWrite/canAcquireRead/queuedBehindSelf) that
// the transition may proceed without waiting.
func (b *Block) applyLock(lc LockChange, self int64) {
	switch lc {
	case LockWrite:
		b.wlocks++
		b.writeLocker = self
	case LockRead:
		if b.queuedBehindSelf(self) {
			b.rlocksQueue++
		} else {
			b.rlocks++
		}
	case ReadUnlock:
		if b.rlocksQueue > 0 && b.wlocks > 0 && b.writeLocker == self {
			b.rlocksQueue--
		} else if b.rlocks > 0 {
			b.rlocks--
		}
	case WriteUnlock:
		if b.wlocks > 0 {
			b.wlocks--
		}
		if b.wlocks == 0 {
			b.rlocks += b.rlocksQueue
			b.rlocksQueue = 0
			b.writeLocker = 0
		}
	case WriteToRead:
		if b.wlocks > 0 {
			b.wlocks--
		}
		if b.wlocks == 0 {
			b.rlocks += b.rlocksQueue + 1
			b.rlocksQueue = 0
			b.writeLocker = 0
		} else {
			b.rlocksQueue++
		}
	}
}

func (b *Block) applyPin(pc PinChange) {
	switch pc {
	case Pin:
		b.pins++
	case Unpin:
		if b.pins > 0 {
			b.pins--
		}
	}
}

func (b *Block) evictable() bool {
	return b.pins == 0 && b.wlocks == 0 && b.rlocks == 0 &&
		!b.status.has(StatusInSwitch) && !b.status.has(StatusInFlush)
}
