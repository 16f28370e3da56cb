// Package diskcache is a small fixed-capacity LRU cache of 512-byte blocks
// sitting between the file-system engine and the disk client stub.
package diskcache

import "github.com/opsys/blockfs/internal/metrics"

const blockSize = 512

// DefaultCapacity matches the original design's cache size.
const DefaultCapacity = 2

type entry struct {
	bno     uint32
	data    [blockSize]byte
	tracked bool
	prev    *entry
	next    *entry
}

// Backend is the thing the cache fetches from and writes through to.
type Backend interface {
	ReadBlock(bno uint32) []byte
	WriteBlock(bno uint32, buf []byte)
}

// Cache is an LRU over 512-byte blocks backed by a fixed array of entries
// linked in most-to-least-recently-used order (no dynamic allocation once
// warmed up).
type Cache struct {
	backend  Backend
	capacity int
	slots    []*entry
	byBlock  map[uint32]*entry
	head     *entry // most recently used
	tail     *entry // least recently used

	accesses int
	hits     int
}

// New builds a Cache of the given capacity (at least 1) in front of backend.
func New(backend Backend, capacity int) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	slots := make([]*entry, capacity)
	for i := range slots {
		slots[i] = &entry{}
	}
	return &Cache{
		backend:  backend,
		capacity: capacity,
		slots:    slots,
		byBlock:  make(map[uint32]*entry, capacity),
	}
}

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if c.head == e {
		c.head = e.next
	}
	if c.tail == e {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *Cache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) moveToFront(e *entry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

// freeSlot returns an entry not currently tracking a block, preferring an
// unused array slot before evicting the LRU entry.
func (c *Cache) freeSlot() *entry {
	for _, s := range c.slots {
		if !s.inUse() {
			return s
		}
	}
	victim := c.tail
	c.unlink(victim)
	delete(c.byBlock, victim.bno)
	victim.reset()
	return victim
}

func (e *entry) inUse() bool {
	return e.tracked
}

func (e *entry) reset() {
	e.bno = 0
	e.data = [blockSize]byte{}
	e.tracked = false
}

func (c *Cache) insert(bno uint32, data []byte) *entry {
	e := c.freeSlot()
	e.bno = bno
	copy(e.data[:], data)
	e.tracked = true
	c.byBlock[bno] = e
	c.pushFront(e)
	return e
}

// Get returns the 512-byte contents of block bno, serving from cache when
// possible and recording a cache hit/miss either way.
func (c *Cache) Get(bno uint32) []byte {
	c.accesses++
	if e, ok := c.byBlock[bno]; ok {
		c.hits++
		metrics.CacheAccess(true)
		c.moveToFront(e)
		out := make([]byte, blockSize)
		copy(out, e.data[:])
		return out
	}
	metrics.CacheAccess(false)
	data := c.backend.ReadBlock(bno)
	c.insert(bno, data)
	out := make([]byte, blockSize)
	copy(out, data)
	return out
}

// Put writes buf through to the backend and, on success, updates the cache
// entry for bno (inserting it if absent).
func (c *Cache) Put(bno uint32, buf []byte) {
	c.backend.WriteBlock(bno, buf)
	if e, ok := c.byBlock[bno]; ok {
		copy(e.data[:], buf)
		c.moveToFront(e)
		return
	}
	c.insert(bno, buf)
}

// Clear invalidates all entries and resets the hit/access counters.
func (c *Cache) Clear() {
	for _, s := range c.slots {
		s.reset()
		s.prev, s.next = nil, nil
	}
	c.byBlock = make(map[uint32]*entry, c.capacity)
	c.head, c.tail = nil, nil
	c.accesses, c.hits = 0, 0
}

// Stats returns (accesses, hits) since the last Clear.
func (c *Cache) Stats() (accesses, hits int) {
	return c.accesses, c.hits
}
