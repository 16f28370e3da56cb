package fsengine

import (
	"strconv"
	"strings"

	"github.com/opsys/blockfs/internal/logger"
)

func (e *Engine) hasPermission(ip *inode, required uint16) bool {
	if e.uid == 1 || e.uid == ip.Owner {
		return true
	}
	return ip.Perm >= required
}

// Format wipes and reinitialises the volume with nblocks = ncyl*nsec
// blocks. Only the superuser (uid 1) may call it, and it may be called
// again on an already-formatted volume to overwrite it.
func (e *Engine) Format(ncyl, nsec int) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.uid == 0 {
		return errKind(NotLoggedIn, "")
	}
	if e.uid != 1 {
		return errKind(PermissionDenied, "")
	}
	nblocks := uint32(ncyl) * uint32(nsec)
	if nblocks == 0 {
		return errKind(Generic, "empty geometry")
	}

	nbitmap := (nblocks + bitsPerBlock - 1) / bitsPerBlock

	e.sb = superblock{
		Magic:     FSMagic,
		Size:      nblocks,
		BmapStart: 1,
		DataStart: 1 + nbitmap,
	}

	zero := make([]byte, BSize)
	for i := uint32(0); i < nbitmap; i++ {
		e.writeBlock(e.sb.BmapStart+i, zero)
	}
	// Mark block 0 and every bitmap block itself allocated.
	for b := uint32(0); b <= nbitmap; b++ {
		mapBlk := e.bitmapBlock(b)
		buf := e.readBlock(mapBlk)
		byteIdx := (b % bitsPerBlock) / 8
		bit := (b % bitsPerBlock) % 8
		buf[byteIdx] |= 1 << bit
		e.writeBlock(mapBlk, buf)
	}

	root := e.ialloc(TDir)
	if root == nil {
		return errKind(Generic, "failed to allocate root inode")
	}
	e.dirAdd(root, ".", TDir, root.Inum)
	e.dirAdd(root, "..", TDir, root.Inum)
	e.iupdate(root)

	e.cwd = e.iget(root.Inum)
	e.writeBlock(0, e.sb.encode())
	e.cwdPath = "/"

	return nil
}

// Login starts a session for auid, creating its home directory under root
// on first login.
func (e *Engine) Login(auid uint32) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if auid == 0 {
		return errKind(Generic, "invalid uid")
	}
	if e.uid != 0 {
		return errKind(PermissionDenied, "already logged in")
	}
	// uid is latched before the root lookup below, intentionally: on a
	// freshly-zeroed, not-yet-formatted volume iget(0) has nothing to
	// return, but the session's uid must already be set so that a
	// following Format(1) call (superuser-only) can bootstrap the volume.
	e.uid = auid

	root := e.iget(0)
	if root == nil {
		return errKind(Generic, "root inode missing")
	}
	e.cwd = root

	username := strconv.FormatUint(uint64(auid), 10)
	if _, _, ok := e.dirLookup(root, username); !ok {
		root.Perm = PermWrite
		e.mkdirLocked(username)
		root.Perm = PermRead
		e.iupdate(root)
		// Home directories default to permission level 2 (read+write) for
		// their owner, unlike mkdirLocked's usual PermRead default.
		if err := e.chmodLocked(username, PermWrite, true); err != nil {
			logger.Warnf("fsengine: login: failed to set home directory permission for %d: %v", auid, err)
		}
	}
	e.cwdPath = "/"
	logger.Infof("fsengine: user %d logged in", auid)
	return nil
}

// Logout deletes the caller's home directory tree and ends the session.
// The superuser may never log out.
func (e *Engine) Logout() *Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.uid == 0 {
		return errKind(NotLoggedIn, "")
	}
	if e.uid == 1 {
		return errKind(PermissionDenied, "superuser cannot log out")
	}
	if !e.formatted() {
		return errKind(NotFormatted, "")
	}

	username := strconv.FormatUint(uint64(e.uid), 10)
	root := e.iget(0)
	if root == nil {
		return errKind(Generic, "root inode missing")
	}
	_, inum, ok := e.dirLookup(root, username)
	if !ok {
		return errKind(Generic, "home directory missing")
	}
	home := e.iget(inum)
	if home == nil || home.Type != TDir {
		return errKind(Generic, "home directory missing")
	}

	e.recursiveDelete(home)
	e.dirRemove(root, username)
	e.iupdate(root)

	e.cwd = nil
	e.uid = 0
	e.cwdPath = "/"
	return nil
}

func (e *Engine) requireSession() *Error {
	if e.uid == 0 {
		return errKind(NotLoggedIn, "")
	}
	if !e.formatted() {
		return errKind(NotFormatted, "")
	}
	return nil
}

// Mk creates a new regular file named name in cwd.
func (e *Engine) Mk(name string) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	if !e.hasPermission(e.cwd, PermWrite) {
		return errKind(PermissionDenied, "")
	}
	if _, _, ok := e.dirLookup(e.cwd, name); ok {
		return errKind(Generic, "name already exists")
	}
	ip := e.ialloc(TFile)
	if ip == nil {
		return errKind(Generic, "no free inode")
	}
	if !e.dirAdd(e.cwd, name, TFile, ip.Inum) {
		return errKind(Generic, "failed to add directory entry")
	}
	e.iupdate(e.cwd)
	return nil
}

// Mkdir creates a new directory named name in cwd, pre-populated with "."
// and "..".
func (e *Engine) Mkdir(name string) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	if !e.hasPermission(e.cwd, PermWrite) {
		return errKind(PermissionDenied, "")
	}
	if !e.mkdirLocked(name) {
		return errKind(Generic, "failed to create directory")
	}
	return nil
}

// mkdirLocked implements Mkdir without acquiring the engine lock, so Login
// can reuse it while already holding the lock.
func (e *Engine) mkdirLocked(name string) bool {
	if _, _, ok := e.dirLookup(e.cwd, name); ok {
		return false
	}
	ip := e.ialloc(TDir)
	if ip == nil {
		return false
	}
	e.dirAdd(ip, ".", TDir, ip.Inum)
	e.dirAdd(ip, "..", TDir, e.cwd.Inum)
	e.iupdate(ip)

	if !e.dirAdd(e.cwd, name, TDir, ip.Inum) {
		return false
	}
	e.iupdate(e.cwd)
	return true
}

// Rm removes a file named name from cwd. Data blocks the file owned are
// not freed (see DESIGN.md).
func (e *Engine) Rm(name string) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	_, inum, ok := e.dirLookup(e.cwd, name)
	if !ok {
		return errKind(Generic, "not found")
	}
	ip := e.iget(inum)
	if ip == nil {
		return errKind(Generic, "inode missing")
	}
	if !e.hasPermission(ip, PermWrite) || !e.hasPermission(e.cwd, PermWrite) {
		return errKind(PermissionDenied, "")
	}
	if ip.Type != TFile {
		return errKind(Generic, "not a file")
	}
	e.dirRemove(e.cwd, name)
	e.iupdate(e.cwd)
	e.ifree(ip)
	return nil
}

// Rmdir recursively deletes a subdirectory named name from cwd.
func (e *Engine) Rmdir(name string) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	_, inum, ok := e.dirLookup(e.cwd, name)
	if !ok {
		return errKind(Generic, "not found")
	}
	ip := e.iget(inum)
	if ip == nil {
		return errKind(Generic, "inode missing")
	}
	if !e.hasPermission(ip, PermWrite) || !e.hasPermission(e.cwd, PermWrite) {
		return errKind(PermissionDenied, "")
	}
	if ip.Type != TDir {
		return errKind(Generic, "not a directory")
	}
	e.recursiveDelete(ip)
	e.dirRemove(e.cwd, name)
	e.iupdate(e.cwd)
	return nil
}

// Cd changes cwd to the directory named by path (absolute or relative)
// and updates the display path.
func (e *Engine) Cd(path string) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	ip, _, ok := e.resolvePath(path)
	if !ok || ip.Type != TDir {
		return errKind(Generic, "not a directory")
	}
	if !e.hasPermission(ip, PermRead) {
		return errKind(PermissionDenied, "")
	}
	e.cwd = ip

	switch {
	case strings.HasPrefix(path, "/"):
		e.cwdPath = path
	case path == "..":
		if idx := strings.LastIndex(e.cwdPath, "/"); idx > 0 {
			e.cwdPath = e.cwdPath[:idx]
		} else {
			e.cwdPath = "/"
		}
	case path == ".":
		// unchanged
	default:
		if e.cwdPath != "/" {
			e.cwdPath += "/"
		}
		e.cwdPath += path
	}
	return nil
}

// Ls enumerates the live entries of cwd, reporting each entry's owner,
// permission, timestamps, and — for directories — the recursive sum of
// all contained file sizes.
func (e *Engine) Ls() ([]Entry, *Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return nil, err
	}

	var out []Entry
	buf := make([]byte, direntSize)
	for off := uint32(0); off+direntSize <= e.cwd.Size; off += direntSize {
		e.readi(e.cwd, buf, off, direntSize)
		ent := decodeDirent(buf)
		name := nameString(ent.Name)
		if ent.Type == TFree || name == "." || name == ".." {
			continue
		}
		ip := e.iget(ent.Inum)
		if ip == nil {
			continue
		}
		size := ip.Size
		if ip.Type == TDir {
			size = e.calcTotalFileSize(ip)
		}
		out = append(out, Entry{
			Name:  name,
			Type:  ip.Type,
			Inum:  ent.Inum,
			Size:  size,
			Mtime: ip.Mtime,
			Ctime: ip.Ctime,
			Owner: ip.Owner,
			Perm:  ip.Perm,
		})
	}
	return out, nil
}

// Cat returns the full contents of the file named name in cwd.
func (e *Engine) Cat(name string) ([]byte, *Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	_, inum, ok := e.dirLookup(e.cwd, name)
	if !ok {
		return nil, errKind(Generic, "not found")
	}
	ip := e.iget(inum)
	if ip == nil {
		return nil, errKind(Generic, "inode missing")
	}
	if !e.hasPermission(ip, PermRead) {
		return nil, errKind(PermissionDenied, "")
	}
	if ip.Type != TFile {
		return nil, errKind(Generic, "not a file")
	}
	buf := make([]byte, ip.Size)
	e.readi(ip, buf, 0, ip.Size)
	return buf, nil
}

// W overwrites the file named name with data[0:length] at offset 0.
func (e *Engine) W(name string, length uint32, data []byte) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	_, inum, ok := e.dirLookup(e.cwd, name)
	if !ok {
		return errKind(Generic, "not found")
	}
	ip := e.iget(inum)
	if ip == nil {
		return errKind(Generic, "inode missing")
	}
	if !e.hasPermission(ip, PermWrite) || !e.hasPermission(e.cwd, PermWrite) {
		return errKind(PermissionDenied, "")
	}
	if ip.Type != TFile {
		return errKind(Generic, "not a file")
	}
	e.writei(ip, data, 0, length)
	return nil
}

// I inserts data[0:length] into the file named name at offset pos,
// shifting the existing suffix to make room. pos beyond the current size
// is clamped to it.
func (e *Engine) I(name string, pos, length uint32, data []byte) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	_, inum, ok := e.dirLookup(e.cwd, name)
	if !ok {
		return errKind(Generic, "not found")
	}
	ip := e.iget(inum)
	if ip == nil {
		return errKind(Generic, "inode missing")
	}
	if !e.hasPermission(ip, PermWrite) || !e.hasPermission(e.cwd, PermWrite) {
		return errKind(PermissionDenied, "")
	}
	if ip.Type != TFile {
		return errKind(Generic, "not a file")
	}

	if pos > ip.Size {
		pos = ip.Size
	}
	tmp := make([]byte, ip.Size+length)
	e.readi(ip, tmp, 0, pos)
	copy(tmp[pos:pos+length], data[:length])
	e.readi(ip, tmp[pos+length:], pos, ip.Size-pos)
	e.writei(ip, tmp, 0, uint32(len(tmp)))
	return nil
}

// D deletes up to length bytes from the file named name starting at pos,
// shifting the remaining suffix left. pos at or beyond the current size
// is a no-op.
func (e *Engine) D(name string, pos, length uint32) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	_, inum, ok := e.dirLookup(e.cwd, name)
	if !ok {
		return errKind(Generic, "not found")
	}
	ip := e.iget(inum)
	if ip == nil {
		return errKind(Generic, "inode missing")
	}
	if !e.hasPermission(ip, PermWrite) || !e.hasPermission(e.cwd, PermWrite) {
		return errKind(PermissionDenied, "")
	}
	if ip.Type != TFile {
		return errKind(Generic, "not a file")
	}

	if pos >= ip.Size {
		return nil
	}
	oldSize := ip.Size
	actualDel := min32(length, oldSize-pos)
	newLen := oldSize - actualDel

	tmp := make([]byte, newLen)
	e.readi(ip, tmp, 0, pos)
	e.readi(ip, tmp[pos:], pos+actualDel, oldSize-pos-actualDel)
	e.writei(ip, tmp, 0, newLen)
	ip.Size = newLen
	e.iupdate(ip)
	return nil
}

// Chmod sets name's permission level. Only the owner, the superuser, or a
// caller passing kernel=true may change it.
func (e *Engine) Chmod(name string, perm uint16, kernel bool) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	return e.chmodLocked(name, perm, kernel)
}

// chmodLocked implements Chmod without acquiring the engine lock, so Login
// can set a freshly created home directory's permission while already
// holding it.
func (e *Engine) chmodLocked(name string, perm uint16, kernel bool) *Error {
	if perm > PermWrite {
		return errKind(Generic, "invalid permission level")
	}
	_, inum, ok := e.dirLookup(e.cwd, name)
	if !ok {
		return errKind(Generic, "not found")
	}
	ip := e.iget(inum)
	if ip == nil {
		return errKind(Generic, "inode missing")
	}
	if !kernel && ip.Owner != e.uid && e.uid != 1 {
		return errKind(PermissionDenied, "")
	}
	ip.Perm = perm
	e.iupdate(ip)
	return nil
}
