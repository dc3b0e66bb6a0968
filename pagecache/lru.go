package pagecache

// lru is the temperature-based LRU: a single doubly linked list over block
// indices, with used_ins marking the hot/warm split point (new blocks are
// inserted there rather than at the head, and only graduate to HOT after
// surviving past the age threshold) and used_last the tail a flusher/evictor
// pops from (the coldest, warm-end block).
//
// Grounded on the teacher's buffer_lru.go hit/miss stats (kept as lruStats
// below) but restructured around the single list + insertion-point split
// spec's find_block step 2 requires, rather than the teacher's separate
// young/old LRUCache interface.
type lru struct {
	blocks []*Block // indexed same as PageCache.blocks

	head, tail int // list ends; -1 if empty
	insPoint   int // used_ins: new/warm blocks insert here

	minWarm      int
	ageThreshold uint64
	clock        uint64

	stats lruStats
}

type lruStats struct {
	hits, misses uint64
}

func (s *lruStats) hit()  { s.hits++ }
func (s *lruStats) miss() { s.misses++ }

func (s *lruStats) hitRate() float64 {
	total := s.hits + s.misses
	if total == 0 {
		return 0
	}
	return float64(s.hits) / float64(total)
}

func newLRU(blocks []*Block, minWarm int, ageThreshold uint64) *lru {
	return &lru{blocks: blocks, head: -1, tail: -1, insPoint: -1, minWarm: minWarm, ageThreshold: ageThreshold}
}

func (l *lru) unlink(idx int) {
	b := l.blocks[idx]
	if b.lruPrev >= 0 {
		l.blocks[b.lruPrev].lruNext = b.lruNext
	} else if l.head == idx {
		l.head = b.lruNext
	}
	if b.lruNext >= 0 {
		l.blocks[b.lruNext].lruPrev = b.lruPrev
	} else if l.tail == idx {
		l.tail = b.lruPrev
	}
	if l.insPoint == idx {
		l.insPoint = b.lruPrev
	}
	b.lruPrev, b.lruNext = -1, -1
}

// insertAtHot pushes idx to the head of the list (hot end): used when a
// resident block is hit again and has already earned HOT status.
func (l *lru) insertAtHot(idx int) {
	b := l.blocks[idx]
	b.lruPrev = -1
	b.lruNext = l.head
	if l.head >= 0 {
		l.blocks[l.head].lruPrev = idx
	}
	l.head = idx
	if l.tail < 0 {
		l.tail = idx
	}
	if l.insPoint < 0 {
		l.insPoint = idx
	}
}

// insertAtWarm inserts idx at used_ins, the warm/hot boundary: the position
// new or re-read blocks enter at so a single full scan can't evict the hot
// working set.
func (l *lru) insertAtWarm(idx int) {
	b := l.blocks[idx]
	if l.insPoint < 0 {
		l.insertAtHot(idx)
		return
	}
	ins := l.blocks[l.insPoint]
	b.lruNext = ins.lruNext
	b.lruPrev = l.insPoint
	if ins.lruNext >= 0 {
		l.blocks[ins.lruNext].lruPrev = idx
	} else {
		l.tail = idx
	}
	ins.lruNext = idx
	l.insPoint = idx
}

// touch records a hit on idx. A HOT block moves to the hot end. Any other
// block is promoted to HOT and moved to the hot end once its hit budget
// (hitsLeft) is spent or at least ageThreshold ticks have passed since its
// previous hit (or its insertion); otherwise only its hit budget and
// last-hit time are updated.
func (l *lru) touch(idx int) {
	l.clock++
	b := l.blocks[idx]
	sinceLastHit := l.clock - b.lastHit
	b.lastHit = l.clock
	if b.temperature == Hot {
		if l.head != idx {
			l.unlink(idx)
			l.insertAtHot(idx)
		}
		return
	}
	if sinceLastHit >= l.ageThreshold || b.hitsLeft == 0 {
		b.temperature = Hot
		l.unlink(idx)
		l.insertAtHot(idx)
		return
	}
	if b.hitsLeft > 0 {
		b.hitsLeft--
	}
}

// insertFresh places a newly-filled block at the warm boundary with COLD
// temperature, per find_block step 2's "pop the warm end, insert new pages
// at used_ins" policy.
func (l *lru) insertFresh(idx int) {
	b := l.blocks[idx]
	b.temperature = Cold
	b.lastHit = l.clock
	b.hitsLeft = 1
	l.insertAtWarm(idx)
}

// popWarmEnd removes and returns the tail (coldest) block index, or -1 if
// the list is empty.
func (l *lru) popWarmEnd() int {
	idx := l.tail
	if idx < 0 {
		return -1
	}
	l.unlink(idx)
	return idx
}

func (l *lru) remove(idx int) {
	l.unlink(idx)
}
