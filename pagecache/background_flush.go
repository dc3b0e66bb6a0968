package pagecache

import (
	"sync"
	"time"
)

// BackgroundFlusher spreads the flushing of pages that were dirty at the
// last checkpoint evenly across the interval until the next one, rather
// than letting them all accumulate into one write burst right before
// recovery needs them durable. It rides ServiceThread (C8) for its
// sleep/kill loop and PageCache.FlushWithFilter(KeepLazy, ...) for the
// actual writeback.
type BackgroundFlusher struct {
	cache *PageCache
	files []*FileHandle
	tick  time.Duration

	svc *ServiceThread

	mu      sync.Mutex
	pending map[*FileHandle]map[uint64]struct{} // dirty-at-last-checkpoint, not yet flushed this cycle
	ticksLeft int
}

// NewBackgroundFlusher prepares a flusher that, once started, wakes every
// tick and writes out an even share of whatever was dirty across files at
// the moment ResetCycle was last called.
func NewBackgroundFlusher(cache *PageCache, files []*FileHandle, tick time.Duration) *BackgroundFlusher {
	return &BackgroundFlusher{
		cache:   cache,
		files:   files,
		tick:    tick,
		svc:     NewServiceThread(),
		pending: make(map[*FileHandle]map[uint64]struct{}),
	}
}

// ResetCycle snapshots the currently dirty pages for every registered file
// and sets the number of ticks (derived from the checkpoint interval) over
// which that snapshot should be drained. Call this once per checkpoint.
func (f *BackgroundFlusher) ResetCycle(ticksUntilNextCheckpoint int) {
	if ticksUntilNextCheckpoint < 1 {
		ticksUntilNextCheckpoint = 1
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = make(map[*FileHandle]map[uint64]struct{})
	for _, file := range f.files {
		pages := f.cache.dirtyPages(file)
		if len(pages) == 0 {
			continue
		}
		set := make(map[uint64]struct{}, len(pages))
		for _, p := range pages {
			set[p] = struct{}{}
		}
		f.pending[file] = set
	}
	f.ticksLeft = ticksUntilNextCheckpoint
}

// Start runs the flusher's sleep/wake loop in its own goroutine until Stop
// is called.
func (f *BackgroundFlusher) Start() {
	go f.svc.Run(f.tick, f.tickOnce)
}

// Stop signals the background goroutine to exit and waits for it.
func (f *BackgroundFlusher) Stop() {
	f.svc.End()
}

// tickOnce computes this tick's per-file budget (remaining snapshot size
// divided by remaining ticks, rounded up) and flushes up to that many pages
// per file via an even_filter closure over the snapshot. The filter sees
// candidates in changed-chain order (most recently dirtied first); the pages
// it admits are then written in page-number order.
func (f *BackgroundFlusher) tickOnce() {
	f.mu.Lock()
	if f.ticksLeft < 1 {
		f.ticksLeft = 1
	}
	ticksLeft := f.ticksLeft
	f.ticksLeft--
	files := make([]*FileHandle, 0, len(f.pending))
	for file := range f.pending {
		files = append(files, file)
	}
	f.mu.Unlock()

	for _, file := range files {
		f.mu.Lock()
		set := f.pending[file]
		if len(set) == 0 {
			f.mu.Unlock()
			continue
		}
		budget := (len(set) + ticksLeft - 1) / ticksLeft
		if budget < 1 {
			budget = 1
		}
		f.mu.Unlock()

		flushed := 0
		filter := func(typ FlushType, pageNo uint64, recLSN uint64, arg interface{}) FilterResult {
			f.mu.Lock()
			_, want := set[pageNo]
			f.mu.Unlock()
			if !want {
				return FilterSkipTryNext
			}
			if flushed >= budget {
				return FilterSkipAll
			}
			flushed++
			return FilterOK
		}
		f.cache.FlushWithFilter(file, FlushKeepLazy, filter, nil)

		f.mu.Lock()
		for p := range set {
			// filter admitted at most `budget` snapshot pages, in
			// changed-chain order; drop every snapshot page that is no
			// longer dirty so the next tick's budget is computed against
			// what's genuinely still dirty.
			if !f.cache.isDirty(file, p) {
				delete(set, p)
			}
		}
		f.mu.Unlock()
	}
}

// dirtyPages returns the page numbers currently in file's changed chain.
func (c *PageCache) dirtyPages(file *FileHandle) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.changed[file]
	if ch == nil {
		return nil
	}
	var pages []uint64
	for idx := ch.head; idx >= 0; idx = c.blocks[idx].chgNext {
		pages = append(pages, c.blocks[idx].link.page)
	}
	return pages
}

// isDirty reports whether page is still on file's changed chain.
func (c *PageCache) isDirty(file *FileHandle, page uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.changed[file]
	if ch == nil {
		return false
	}
	for idx := ch.head; idx >= 0; idx = c.blocks[idx].chgNext {
		if c.blocks[idx].link.page == page {
			return true
		}
	}
	return false
}
