package pagecache

// Status is the Block status bitset.
type Status uint16

const (
	StatusRead       Status = 1 << iota // page contents are valid
	StatusChanged                       // dirty; linked into changed_blocks
	StatusInSwitch                      // being relocated to a new (file, page_no) or evicted
	StatusReassigned                    // relocation/eviction just completed, readers draining
	StatusInFlush                       // a flusher owns this block's write_cb/pwrite right now
	StatusError                         // last I/O on this block failed; Errno holds the cause
	StatusDirectW                       // last write bypassed the cache (forced direct write)
	StatusDelWrite                      // delete(flush=true) is writing out this block
)

func (s Status) has(bit Status) bool { return s&bit != 0 }

// Temperature buckets a block's position on the LRU for the "don't let a
// single full scan evict the working set" policy: a block only moves from
// WARM to HOT after surviving long enough past the age threshold.
type Temperature uint8

const (
	Cold Temperature = iota
	Warm
	Hot
)

// PageType is Block.type. PLAIN pages carry no LSN-ordering guarantee; LSN
// pages participate in checkpoint collection. READ_UNKNOWN covers a page
// read speculatively before its caller declared a type.
type PageType uint8

const (
	TypeEmpty PageType = iota
	TypePlain
	TypeLSN
	TypeReadUnknown
)

// canUpgrade reports whether a declared type change from cur to next is
// permitted: only a PLAIN page may be upgraded to LSN, and any type may be
// declared from EMPTY or READ_UNKNOWN.
func canUpgrade(cur, next PageType) bool {
	if cur == next {
		return true
	}
	if cur == TypeEmpty || cur == TypeReadUnknown {
		return true
	}
	return cur == TypePlain && next == TypeLSN
}

// LockChange is the block-lock transition a caller requests on find_block.
type LockChange uint8

const (
	LeftUnlocked LockChange = iota
	LeftReadlocked
	LeftWritelocked
	LockRead
	LockWrite
	ReadUnlock
	WriteUnlock
	WriteToRead
)

// PinChange is the independent pin-count transition requested alongside a
// LockChange. Pinning blocks eviction even with no lock held (bitmap pages).
type PinChange uint8

const (
	LeftPinned PinChange = iota
	LeftUnpinned
	Pin
	Unpin
)

// BlockStatus is find_block's placement outcome: whether the caller must
// perform the read itself, wait for one in flight, or the page was already
// resident.
type BlockStatus uint8

const (
	Read BlockStatus = iota
	ToBeRead
	WaitToBeRead
)

// WriteMode selects write_part's semantics.
type WriteMode uint8

const (
	// WriteDelay buffers the write in cache and marks the block dirty.
	WriteDelay WriteMode = iota
	// WriteDone injects authoritative content the caller guarantees is
	// already durable on disk; the block is not marked dirty.
	WriteDone
)

// FlushType selects flush_with_filter's disposition of clean vs. pinned
// blocks once written.
type FlushType uint8

const (
	FlushKeep FlushType = iota
	FlushKeepLazy
	FlushRelease
	FlushForceWrite
	FlushIgnoreChanged
)

// FilterResult is a flush filter callback's verdict on one candidate block.
type FilterResult uint8

const (
	FilterOK FilterResult = iota
	FilterSkipTryNext
	FilterSkipAll
)

// FlushFilter inspects a dirty block before it is queued for writeback.
type FlushFilter func(typ FlushType, pageNo uint64, recLSN uint64, arg interface{}) FilterResult

// FlushOutcome is flush_with_filter's result bitset.
type FlushOutcome uint8

const (
	FlushOK      FlushOutcome = 0
	FlushError   FlushOutcome = 1 << 0
	FlushPinned  FlushOutcome = 1 << 1
)

func (o FlushOutcome) HasError() bool  { return o&FlushError != 0 }
func (o FlushOutcome) HasPinned() bool { return o&FlushPinned != 0 }
