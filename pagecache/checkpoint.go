package pagecache

// CheckpointRecord is one entry of a collect_changed_blocks_with_lsn
// snapshot: enough to let a WAL-based owner decide how far back recovery
// must start for this page.
type CheckpointRecord struct {
	ShortTableID  uint16
	IsIndexOrData uint8
	PageNo        uint64 // only the low 40 bits are meaningful
	RecLSN        uint64 // only the low 48 bits are meaningful
}

// CollectChangedBlocksWithLSN snapshots every dirty LSN-type block owned by
// a transactional file, under the cache lock, and returns the minimum
// rec_lsn across the snapshot (lsnMax if nothing is dirty). Before
// snapshotting it waits for any in-progress first-in-switch flush to drain,
// so no dirty page is transiently invisible to the checkpoint.
func (c *PageCache) CollectChangedBlocksWithLSN() ([]CheckpointRecord, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		blocked := false
		for file, ch := range c.changed {
			if !file.Transactional {
				continue
			}
			for idx := ch.head; idx >= 0; idx = c.blocks[idx].chgNext {
				if c.blocks[idx].status.has(StatusInSwitch) {
					blocked = true
					w := c.blocks[idx].forSaved.Add(LeftUnlocked)
					c.mu.Unlock()
					<-w.Chan()
					c.mu.Lock()
					break
				}
			}
			if blocked {
				break
			}
		}
		if !blocked {
			break
		}
	}

	var records []CheckpointRecord
	minLSN := uint64(lsnMax)
	for file, ch := range c.changed {
		if !file.Transactional {
			continue
		}
		for idx := ch.head; idx >= 0; idx = c.blocks[idx].chgNext {
			b := c.blocks[idx]
			if b.typ != TypeLSN {
				continue
			}
			records = append(records, CheckpointRecord{
				ShortTableID:  file.ShortTableID,
				IsIndexOrData: file.IsIndexOrData,
				PageNo:        b.link.page & 0xFFFFFFFFFF,
				RecLSN:        b.recLSN & 0xFFFFFFFFFFFF,
			})
			if b.recLSN < minLSN {
				minLSN = b.recLSN
			}
		}
	}
	return records, minLSN
}
