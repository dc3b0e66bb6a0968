package pagecache

import "sync/atomic"

// poolStats accumulates cache-wide counters beyond the LRU hit/miss ratio:
// eviction and flush activity that operators watch for write-burst
// detection.
type poolStats struct {
	evictions  uint64
	flushes    uint64
	flushIOErr uint64
}

func (s *poolStats) recordEviction() { atomic.AddUint64(&s.evictions, 1) }
func (s *poolStats) recordFlush()    { atomic.AddUint64(&s.flushes, 1) }
func (s *poolStats) recordFlushErr() { atomic.AddUint64(&s.flushIOErr, 1) }

// PoolStats is a point-in-time snapshot returned by PageCache.PoolStats.
type PoolStats struct {
	Hits, Misses   uint64
	HitRate        float64
	Evictions      uint64
	Flushes        uint64
	FlushIOErrors  uint64
	FreeBlocks     int
	TotalBlocks    int
}

// PoolStats reports cache occupancy and activity counters.
func (c *PageCache) PoolStats() PoolStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PoolStats{
		Hits:          c.lru.stats.hits,
		Misses:        c.lru.stats.misses,
		HitRate:       c.lru.stats.hitRate(),
		Evictions:     c.stats.evictions,
		Flushes:       c.stats.flushes,
		FlushIOErrors: c.stats.flushIOErr,
		FreeBlocks:    len(c.free),
		TotalBlocks:   len(c.blocks),
	}
}
