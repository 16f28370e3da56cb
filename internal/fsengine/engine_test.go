package fsengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory BlockStore for tests: no disk, no cache, just a
// map keyed by block number.
type memStore struct {
	blocks map[uint32][]byte
}

func newMemStore() *memStore {
	return &memStore{blocks: make(map[uint32][]byte)}
}

func (m *memStore) Get(bno uint32) []byte {
	if b, ok := m.blocks[bno]; ok {
		out := make([]byte, BSize)
		copy(out, b)
		return out
	}
	return make([]byte, BSize)
}

func (m *memStore) Put(bno uint32, buf []byte) {
	cp := make([]byte, BSize)
	copy(cp, buf)
	m.blocks[bno] = cp
}

// setupEngine formats a fresh volume, following the same bootstrap
// sequence spec scenario 1 does: Login on an unformatted volume reports
// an error (there is no root inode to load yet) but still latches uid,
// which is what lets the following superuser-only Format succeed.
func setupEngine(t *testing.T, ncyl, nsec int) *Engine {
	t.Helper()
	e := New(newMemStore())
	e.Load()
	e.Login(1)
	requireOK(t, e.Format(ncyl, nsec))
	return e
}

func requireOK(t *testing.T, err *Error) {
	t.Helper()
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func requireKind(t *testing.T, err *Error, kind Kind) {
	t.Helper()
	require.NotNil(t, err)
	assert.Equal(t, kind, err.Kind)
}

func TestFormatAndHello(t *testing.T) {
	e := setupEngine(t, 4, 8)
	requireOK(t, e.Mk("hello"))
	requireOK(t, e.W("hello", 5, []byte("hello")))
	data, err := e.Cat("hello")
	requireOK(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestInsertDeleteRoundtrip(t *testing.T) {
	e := setupEngine(t, 4, 8)
	requireOK(t, e.Mk("t"))
	requireOK(t, e.W("t", 5, []byte("ABCDE")))
	requireOK(t, e.I("t", 2, 3, []byte("XYZ")))
	requireOK(t, e.D("t", 0, 2))
	data, err := e.Cat("t")
	requireOK(t, err)
	assert.Equal(t, "XYZCDE", string(data))
}

func TestDirectoryListing(t *testing.T) {
	e := setupEngine(t, 4, 8)
	requireOK(t, e.Mkdir("a"))
	requireOK(t, e.Mkdir("b"))
	requireOK(t, e.Mk("c"))

	entries, err := e.Ls()
	requireOK(t, err)
	require.Len(t, entries, 3)

	byName := map[string]Entry{}
	for _, ent := range entries {
		byName[ent.Name] = ent
	}
	assert.Equal(t, uint16(TDir), byName["a"].Type)
	assert.Equal(t, uint16(TDir), byName["b"].Type)
	assert.Equal(t, uint16(TFile), byName["c"].Type)
}

func TestRecursiveRemove(t *testing.T) {
	e := setupEngine(t, 4, 8)
	requireOK(t, e.Mkdir("a"))
	requireOK(t, e.Cd("a"))
	requireOK(t, e.Mk("x"))
	requireOK(t, e.W("x", 3, []byte("abc")))
	requireOK(t, e.Cd(".."))
	requireOK(t, e.Rmdir("a"))

	entries, err := e.Ls()
	requireOK(t, err)
	assert.Empty(t, entries)
}

// TestPermissionEnforcement covers scenario 5. The superuser (uid 1) can
// never log out once sessioned (§4.7), so reaching a second user is
// modeled the way a real deployment would: a fresh process (here, a new
// Engine over the same store) picking the session back up after uid 1's
// changes were already flushed to disk.
func TestPermissionEnforcement(t *testing.T) {
	store := newMemStore()
	e1 := New(store)
	e1.Load()
	e1.Login(1)
	requireOK(t, e1.Format(4, 8))
	requireOK(t, e1.Mk("s"))
	requireOK(t, e1.Chmod("s", PermNone, false))

	e2 := New(store)
	e2.Load()
	requireOK(t, e2.Login(2))
	_, err := e2.Cat("s")
	requireKind(t, err, PermissionDenied)
}

// TestLoginCreatesHome covers scenario 6. uid 1 cannot log out, so uid 7
// arrives through a fresh Engine over the same store, as in
// TestPermissionEnforcement.
func TestLoginCreatesHome(t *testing.T) {
	store := newMemStore()
	e1 := New(store)
	e1.Load()
	e1.Login(1)
	requireOK(t, e1.Format(4, 8))

	e := New(store)
	e.Load()
	requireOK(t, e.Login(7))
	requireOK(t, e.Cd("/"))
	entries, err := e.Ls()
	requireOK(t, err)

	var found *Entry
	for i := range entries {
		if entries[i].Name == "7" {
			found = &entries[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, uint16(TDir), found.Type)
	assert.Equal(t, uint32(7), found.Owner)
	assert.Equal(t, uint16(PermWrite), found.Perm)
}

func TestDirectBlockBoundary(t *testing.T) {
	e := setupEngine(t, 16, 16)
	requireOK(t, e.Mk("big"))

	exact := make([]byte, NDirect*BSize)
	for i := range exact {
		exact[i] = byte(i)
	}
	requireOK(t, e.W("big", uint32(len(exact)), exact))
	data, err := e.Cat("big")
	requireOK(t, err)
	assert.Equal(t, exact, data)

	withIndirect := make([]byte, NDirect*BSize+1)
	copy(withIndirect, exact)
	withIndirect[len(withIndirect)-1] = 0xAB
	requireOK(t, e.W("big", uint32(len(withIndirect)), withIndirect))
	data, err = e.Cat("big")
	requireOK(t, err)
	assert.Equal(t, withIndirect, data)
}

func TestMkdirRmdirRoundtripLeavesListingUnchanged(t *testing.T) {
	e := setupEngine(t, 4, 8)
	before, err := e.Ls()
	requireOK(t, err)

	requireOK(t, e.Mkdir("d"))
	requireOK(t, e.Rmdir("d"))

	after, err := e.Ls()
	requireOK(t, err)
	assert.Equal(t, before, after)
}

func TestNotLoggedInAndNotFormatted(t *testing.T) {
	e := New(newMemStore())
	e.Load()
	requireKind(t, e.Mk("x"), NotLoggedIn)

	// Login reports Generic (no root inode yet) but still latches uid 1.
	requireKind(t, e.Login(1), Generic)
	requireKind(t, e.Mk("x"), NotFormatted)
}

func TestSuperuserCannotLogout(t *testing.T) {
	e := setupEngine(t, 4, 8)
	requireKind(t, e.Logout(), PermissionDenied)
}
