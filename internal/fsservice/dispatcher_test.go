package fsservice

import (
	"testing"

	"github.com/opsys/blockfs/internal/fsengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	blocks map[uint32][]byte
}

func newMemStore() *memStore { return &memStore{blocks: make(map[uint32][]byte)} }

func (m *memStore) Get(bno uint32) []byte {
	if b, ok := m.blocks[bno]; ok {
		out := make([]byte, 512)
		copy(out, b)
		return out
	}
	return make([]byte, 512)
}

func (m *memStore) Put(bno uint32, buf []byte) {
	cp := make([]byte, 512)
	copy(cp, buf)
	m.blocks[bno] = cp
}

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	engine := fsengine.New(newMemStore())
	engine.Load()
	return NewDispatcher(engine, 4, 8, nil)
}

func dispatch(t *testing.T, d *Dispatcher, line string) string {
	t.Helper()
	reply, keepGoing := d.Dispatch([]byte(line))
	require.True(t, keepGoing, "unexpected disconnect on %q", line)
	return string(reply)
}

func TestFormatMkWriteCat(t *testing.T) {
	d := newDispatcher(t)
	dispatch(t, d, "login 1")
	assert.Equal(t, "Format Successfully", dispatch(t, d, "f"))
	assert.Equal(t, "File created successfully", dispatch(t, d, "mk hello"))
	assert.Equal(t, "Write file successfully", dispatch(t, d, "w hello 5 hello"))
	assert.Equal(t, "hello", dispatch(t, d, "cat hello"))
}

func TestUnknownCommand(t *testing.T) {
	d := newDispatcher(t)
	assert.Equal(t, "Unknown command", dispatch(t, d, "frobnicate"))
}

func TestPromptEmptyWhenLoggedOut(t *testing.T) {
	d := newDispatcher(t)
	assert.Equal(t, "", dispatch(t, d, "p"))
}

func TestPromptReflectsSession(t *testing.T) {
	d := newDispatcher(t)
	dispatch(t, d, "login 1")
	dispatch(t, d, "f")
	assert.Equal(t, "user_1:/$", dispatch(t, d, "p"))
}

func TestLsTableHeaderAndRow(t *testing.T) {
	d := newDispatcher(t)
	dispatch(t, d, "login 1")
	dispatch(t, d, "f")
	dispatch(t, d, "mk a")

	reply := dispatch(t, d, "ls")
	assert.Contains(t, reply, "name")
	assert.Contains(t, reply, "last modify")
	assert.Contains(t, reply, "a")
	assert.Contains(t, reply, "FILE")
}

func TestLogoutDisconnects(t *testing.T) {
	store := newMemStore()
	formatter := fsengine.New(store)
	formatter.Load()
	df := NewDispatcher(formatter, 4, 8, nil)
	dispatch(t, df, "login 1")
	dispatch(t, df, "f")

	engine := fsengine.New(store)
	engine.Load()
	d := NewDispatcher(engine, 4, 8, nil)
	dispatch(t, d, "login 2")

	reply, keepGoing := d.Dispatch([]byte("logout"))
	assert.Equal(t, "User logout and directory deleted", string(reply))
	assert.False(t, keepGoing)
}

func TestSuperuserLogoutDenied(t *testing.T) {
	d := newDispatcher(t)
	dispatch(t, d, "login 1")
	dispatch(t, d, "f")

	reply, keepGoing := d.Dispatch([]byte("logout"))
	assert.Equal(t, "Superuser cannot logout", string(reply))
	assert.True(t, keepGoing)
}

func TestExitDisconnects(t *testing.T) {
	d := newDispatcher(t)
	reply, keepGoing := d.Dispatch([]byte("e"))
	assert.Equal(t, "Bye!", string(reply))
	assert.False(t, keepGoing)
}

func TestWriteWithEmbeddedSpacesInPayload(t *testing.T) {
	d := newDispatcher(t)
	dispatch(t, d, "login 1")
	dispatch(t, d, "f")
	dispatch(t, d, "mk note")

	assert.Equal(t, "Write file successfully", dispatch(t, d, "w note 11 hello world"))
	assert.Equal(t, "hello world", dispatch(t, d, "cat note"))
}

// TestPermissionDeniedReply covers scenario 5. uid 1 (superuser) can never
// log out once sessioned, so the second user is reached the way a real
// deployment would: a fresh dispatcher/engine over the same store, as if
// the service had restarted after uid 1's changes were flushed.
func TestPermissionDeniedReply(t *testing.T) {
	store := newMemStore()
	engine1 := fsengine.New(store)
	engine1.Load()
	d1 := NewDispatcher(engine1, 4, 8, nil)
	dispatch(t, d1, "login 1")
	dispatch(t, d1, "f")
	dispatch(t, d1, "mk s")
	dispatch(t, d1, "chmod s 0")

	engine2 := fsengine.New(store)
	engine2.Load()
	d2 := NewDispatcher(engine2, 4, 8, nil)
	dispatch(t, d2, "login 2")
	assert.Equal(t, "Permission denied", dispatch(t, d2, "cat s"))
}
