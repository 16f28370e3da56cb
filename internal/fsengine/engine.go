package fsengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/opsys/blockfs/internal/logger"
)

// BlockStore is the block-level I/O surface the engine needs: read-through
// cache semantics over a remote disk. *diskcache.Cache satisfies this.
type BlockStore interface {
	Get(bno uint32) []byte
	Put(bno uint32, buf []byte)
}

// Engine holds every piece of process-wide state the original design keeps
// as globals: the superblock, the current session, and the block store.
// A single coarse mutex serialises all commands, matching the
// single-client-at-a-time assumption the command API was designed under.
type Engine struct {
	mu sync.Mutex

	store BlockStore
	sb    superblock

	// session state
	uid     uint32
	cwd     *inode
	cwdPath string
}

// New wraps store with a fresh, unformatted Engine. Call Load or Format
// before issuing file-system commands.
func New(store BlockStore) *Engine {
	return &Engine{store: store, cwdPath: "/"}
}

// Load reads the superblock from block 0. It does not fail on an
// unformatted volume — Magic simply will not match FSMagic, and every
// command but Format and Login checks that explicitly.
func (e *Engine) Load() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sb = decodeSuperblock(e.store.Get(0))
	if e.sb.Magic != FSMagic {
		logger.Warnf("fsengine: volume not formatted or corrupt")
	}
}

func (e *Engine) readBlock(bno uint32) []byte {
	return e.store.Get(bno)
}

func (e *Engine) writeBlock(bno uint32, buf []byte) {
	e.store.Put(bno, buf)
}

func (e *Engine) zeroBlock(bno uint32) {
	e.writeBlock(bno, make([]byte, BSize))
}

func (e *Engine) formatted() bool {
	return e.sb.Magic == FSMagic
}

// LoggedIn reports whether a session is currently active.
func (e *Engine) LoggedIn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uid != 0
}

// CurrentUID returns the active session's uid, or 0 if none.
func (e *Engine) CurrentUID() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uid
}

// Prompt returns the "p" command's reply shape: "user_<uid>:<path>$" when
// logged in, or empty otherwise.
func (e *Engine) Prompt() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cwd == nil || e.uid == 0 {
		return ""
	}
	return fmt.Sprintf("user_%d:%s$", e.uid, e.cwdPath)
}

func now() uint32 {
	return uint32(time.Now().Unix())
}
