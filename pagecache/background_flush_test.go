package pagecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundFlusher_DrainsSnapshotAcrossTicks(t *testing.T) {
	pc, f, mf := newTestCache(t, 1024)

	page := make([]byte, 1024)
	for i := 0; i < 6; i++ {
		for j := range page {
			page[j] = byte(i + 1)
		}
		require.NoError(t, pc.WritePart(f, uint64(i), 0, len(page), page, TypePlain, WriteUnlock, Unpin, WriteDelay, nil))
	}

	bf := NewBackgroundFlusher(pc, []*FileHandle{f}, time.Millisecond)
	bf.ResetCycle(3) // 6 dirty pages over 3 ticks => 2 per tick

	bf.tickOnce()
	assert.LessOrEqual(t, len(pc.dirtyPages(f)), 4)

	bf.tickOnce()
	assert.LessOrEqual(t, len(pc.dirtyPages(f)), 2)

	bf.tickOnce()
	assert.Empty(t, pc.dirtyPages(f))

	for i := 0; i < 6; i++ {
		buf, err := mf.ReadAt(make([]byte, 1024), int64(i)*1024)
		require.Equal(t, 1024, buf)
		require.NoError(t, err)
	}
}

func TestBackgroundFlusher_StartStop(t *testing.T) {
	pc, f, _ := newTestCache(t, 1024)
	page := make([]byte, 1024)
	require.NoError(t, pc.WritePart(f, 0, 0, len(page), page, TypePlain, WriteUnlock, Unpin, WriteDelay, nil))

	bf := NewBackgroundFlusher(pc, []*FileHandle{f}, time.Millisecond)
	bf.ResetCycle(1)
	bf.Start()
	time.Sleep(5 * time.Millisecond)
	bf.Stop()

	assert.Empty(t, pc.dirtyPages(f))
}
