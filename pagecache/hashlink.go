package pagecache

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// HashLink maps a (file, page_no) pair to its resident Block, if any. At
// most one HashLink exists per live pair (P1).
type HashLink struct {
	file     *FileHandle
	page     uint64
	block    *Block
	requests uint32
	next     *HashLink // bucket chain
}

// hashTable is the fixed-size bucket array sized at init to the next power
// of two >= blocks*5/4.
type hashTable struct {
	buckets []*HashLink
	mask    uint64
}

func newHashTable(size int) *hashTable {
	n := nextPow2(size)
	return &hashTable{buckets: make([]*HashLink, n), mask: uint64(n - 1)}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p < 1 {
		p = 1
	}
	return p
}

// index returns the bucket index for (file, page).
func (h *hashTable) index(file *FileHandle, page uint64) uint64 {
	return pageHash(file, page) & h.mask
}

// pageHash hashes a (file, page_no) key with xxhash64, the same hash the
// teacher's own key-hashing helper (util.HashCode) wrapped.
func pageHash(f *FileHandle, page uint64) uint64 {
	var key [8 + 8]byte
	binary.LittleEndian.PutUint64(key[:8], uint64(fileOrdinal(f)))
	binary.LittleEndian.PutUint64(key[8:], page)
	h := xxhash.New64()
	h.Write(key[:])
	return h.Sum64()
}

func (h *hashTable) find(file *FileHandle, page uint64) *HashLink {
	for l := h.buckets[h.index(file, page)]; l != nil; l = l.next {
		if l.file == file && l.page == page {
			return l
		}
	}
	return nil
}

func (h *hashTable) insert(l *HashLink) {
	i := h.index(l.file, l.page)
	l.next = h.buckets[i]
	h.buckets[i] = l
}

func (h *hashTable) remove(l *HashLink) {
	i := h.index(l.file, l.page)
	cur := h.buckets[i]
	if cur == l {
		h.buckets[i] = l.next
		return
	}
	for cur != nil {
		if cur.next == l {
			cur.next = l.next
			return
		}
		cur = cur.next
	}
}
