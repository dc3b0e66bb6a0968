package pagecache

import "sort"

// flushEntry tracks the single flusher currently working a file, so a
// second flusher of the same file serializes behind it instead of racing
// writes (P6).
type flushEntry struct {
	queue *WaitQueue
}

// FlushWithFilter writes out the dirty blocks belonging to file, subject to
// an optional filter callback, then disposes of them per typ. Concurrent
// flushers of the same file are serialized through filesInFlush; KeepLazy
// short-circuits to success when another flusher already holds the file.
func (c *PageCache) FlushWithFilter(file *FileHandle, typ FlushType, filter FlushFilter, arg interface{}) FlushOutcome {
	c.mu.Lock()
	if resident, ok := c.filesInFlush[file]; ok {
		if typ == FlushKeepLazy {
			c.mu.Unlock()
			return FlushOK
		}
		w := resident.queue.Add(LeftUnlocked)
		c.mu.Unlock()
		<-w.Chan()
		c.mu.Lock()
	}
	self := &flushEntry{queue: NewWaitQueue()}
	c.filesInFlush[file] = self
	defer func() {
		c.mu.Lock()
		delete(c.filesInFlush, file)
		self.queue.ReleaseAll()
		c.mu.Unlock()
	}()

	var outcome FlushOutcome
	var firstInSwitch []int
	var batch []int

	ch := c.changed[file]
	if ch == nil {
		c.mu.Unlock()
		return FlushOK
	}

	idx := ch.head
	for idx >= 0 {
		b := c.blocks[idx]
		next := b.chgNext
		if filter != nil {
			switch filter(typ, b.link.page, b.recLSN, arg) {
			case FilterSkipTryNext:
				idx = next
				continue
			case FilterSkipAll:
				idx = -1
				continue
			}
		}
		if b.status.has(StatusInSwitch) {
			firstInSwitch = append(firstInSwitch, idx)
		} else {
			b.status |= StatusInFlush
			b.pins++
			batch = append(batch, idx)
			if len(batch) >= flushCacheSize {
				c.flushBatchLocked(file, batch, typ, &outcome)
				batch = batch[:0]
			}
		}
		idx = next
	}
	if len(batch) > 0 {
		c.flushBatchLocked(file, batch, typ, &outcome)
	}

	for _, idx := range firstInSwitch {
		b := c.blocks[idx]
		w := b.forSaved.Add(LeftUnlocked)
		c.mu.Unlock()
		<-w.Chan()
		c.mu.Lock()
	}

	if typ == FlushRelease || typ == FlushIgnoreChanged {
		c.evictCleanLocked(file)
	}

	c.mu.Unlock()
	return outcome
}

const flushCacheSize = 64

// flushBatchLocked sorts a batch by page number for sequential I/O, then
// writes each block out, skipping ones a reader/writer still holds (their
// outcome is recorded as PINNED rather than retried).
func (c *PageCache) flushBatchLocked(file *FileHandle, batch []int, typ FlushType, outcome *FlushOutcome) {
	sort.Slice(batch, func(i, j int) bool {
		return c.blocks[batch[i]].link.page < c.blocks[batch[j]].link.page
	})

	for _, idx := range batch {
		b := c.blocks[idx]
		if b.wlocks > 0 || (typ == FlushKeepLazy && b.pins > 1) {
			*outcome |= FlushPinned
			b.status &^= StatusInFlush
			if b.pins > 0 {
				b.pins--
			}
			continue
		}

		pageNo := b.link.page
		recLSN := b.recLSN
		buf := append([]byte(nil), b.buf...)
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
			*outcome |= FlushError
			c.stats.recordFlushErr()
			if file.WriteFailCb != nil {
				file.WriteFailCb(pageNo, err)
			}
		} else {
			c.stats.recordFlush()
		}

		b.status &^= StatusInFlush
		if b.pins > 0 {
			b.pins--
		}

		switch typ {
		case FlushKeep, FlushKeepLazy, FlushForceWrite:
			b.status &^= StatusChanged
			b.recLSN = lsnMax
			c.unchainLocked(c.changed[file], b, true)
			c.chainInsert(c.clean[file], b, false)
		case FlushRelease, FlushIgnoreChanged:
			c.unchainLocked(c.changed[file], b, true)
			c.freeBlockLocked(b)
		}
	}
}

// evictCleanLocked frees every remaining clean block belonging to file,
// used by Release/IgnoreChanged after the dirty sweep completes.
func (c *PageCache) evictCleanLocked(file *FileHandle) {
	ch := c.clean[file]
	if ch == nil {
		return
	}
	idx := ch.head
	for idx >= 0 {
		b := c.blocks[idx]
		next := b.fileNext
		if b.evictable() {
			c.unchainLocked(ch, b, false)
			c.freeBlockLocked(b)
		}
		idx = next
	}
}

func (c *PageCache) freeBlockLocked(b *Block) {
	c.lru.remove(b.idx)
	if b.link != nil {
		c.table.remove(b.link)
		b.link = nil
	}
	b.status = 0
	c.free = append(c.free, b.idx)
}
