// Package pagecache implements a shared, thread-safe cache of fixed-size
// pages over multiple files: the same temperature-based LRU, hash-linked
// lookup, and cooperative flush design InnoDB's buf0buf/buf0lru/buf0flu use,
// generalized here into a standalone cache any file-backed component can
// open pages against.
//
// Grounded on the teacher's buffer_pool package (buffer_block.go,
// buffer_page.go, buffer_state.go, buffer_pool.go, buffer_lru.go) for the
// block/LRU/dirty-list shape; rebuilt around a single cache-wide mutex plus
// per-block condition variables since the teacher's lock-free/LRUCache
// interface split doesn't carry the reader/writer queueing this cache needs.
// See DESIGN.md's C7-C9 entries.
package pagecache
