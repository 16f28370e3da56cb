package diskcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	reads  map[uint32]int
	writes map[uint32][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{reads: map[uint32]int{}, writes: map[uint32][]byte{}}
}

func (f *fakeBackend) ReadBlock(bno uint32) []byte {
	f.reads[bno]++
	if data, ok := f.writes[bno]; ok {
		out := make([]byte, blockSize)
		copy(out, data)
		return out
	}
	return make([]byte, blockSize)
}

func (f *fakeBackend) WriteBlock(bno uint32, buf []byte) {
	cp := make([]byte, blockSize)
	copy(cp, buf)
	f.writes[bno] = cp
}

func block(s string) []byte {
	b := make([]byte, blockSize)
	copy(b, s)
	return b
}

func TestGetMissesThenHits(t *testing.T) {
	backend := newFakeBackend()
	backend.writes[1] = block("one")
	c := New(backend, 2)

	got := c.Get(1)
	assert.Equal(t, block("one"), got)
	accesses, hits := c.Stats()
	assert.Equal(t, 1, accesses)
	assert.Equal(t, 0, hits)
	assert.Equal(t, 1, backend.reads[1])

	c.Get(1)
	accesses, hits = c.Stats()
	assert.Equal(t, 2, accesses)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, backend.reads[1], "second Get should be served from cache")
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	backend := newFakeBackend()
	backend.writes[1] = block("a")
	backend.writes[2] = block("b")
	backend.writes[3] = block("c")
	c := New(backend, 2)

	c.Get(1)
	c.Get(2)
	c.Get(3) // evicts block 1, the LRU entry

	c.Get(1)
	assert.Equal(t, 2, backend.reads[1], "block 1 should have been evicted and re-fetched")
	assert.Equal(t, 1, backend.reads[2])
}

func TestPutWritesThroughAndUpdatesCache(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend, 2)

	c.Put(1, block("x"))
	require.Equal(t, block("x"), backend.writes[1])

	got := c.Get(1)
	assert.Equal(t, block("x"), got)
	assert.Equal(t, 0, backend.reads[1], "Put should have populated the cache, avoiding a read-through")
}

func TestClearResetsCountersAndEntries(t *testing.T) {
	backend := newFakeBackend()
	backend.writes[1] = block("a")
	c := New(backend, 2)

	c.Get(1)
	c.Get(1)
	c.Clear()

	accesses, hits := c.Stats()
	assert.Equal(t, 0, accesses)
	assert.Equal(t, 0, hits)

	c.Get(1)
	assert.Equal(t, 2, backend.reads[1], "after Clear the entry should be gone, forcing a re-fetch")
}
