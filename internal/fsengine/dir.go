package fsengine

import "github.com/opsys/blockfs/internal/logger"

// dirLookup linear-scans dp's entries for name, returning its type and
// inode number. ok is false if no live entry matches.
func (e *Engine) dirLookup(dp *inode, name string) (typ uint16, inum uint32, ok bool) {
	buf := make([]byte, direntSize)
	for off := uint32(0); off+direntSize <= dp.Size; off += direntSize {
		e.readi(dp, buf, off, direntSize)
		ent := decodeDirent(buf)
		if nameString(ent.Name) == name && ent.Type != TFree {
			return ent.Type, ent.Inum, true
		}
	}
	return 0, 0, false
}

// dirAdd appends a new entry to dp. Returns false if name already exists
// or the write failed to extend the directory file.
func (e *Engine) dirAdd(dp *inode, name string, typ uint16, inum uint32) bool {
	if _, _, ok := e.dirLookup(dp, name); ok {
		return false
	}
	ent := dirent{Name: nameBytes(name), Type: typ, Inum: inum}
	buf := ent.encode()
	off := dp.Size
	written := e.writei(dp, buf, off, uint32(len(buf)))
	if written != uint32(len(buf)) {
		return false
	}
	e.iupdate(dp)
	return true
}

// dirRemove zeroes the entry named name in place, leaving a tombstone; the
// directory file does not shrink and the slot is not reused by dirAdd.
func (e *Engine) dirRemove(dp *inode, name string) bool {
	buf := make([]byte, direntSize)
	empty := make([]byte, direntSize)
	for off := uint32(0); off+direntSize <= dp.Size; off += direntSize {
		e.readi(dp, buf, off, direntSize)
		ent := decodeDirent(buf)
		if nameString(ent.Name) == name && ent.Type != TFree {
			e.writei(dp, empty, off, direntSize)
			return true
		}
	}
	return false
}

// recursiveDelete frees ip and, if it is a directory, every live
// descendant beneath it. A child that fails to load is logged and
// skipped — recursion prioritises progress over atomicity since there is
// no journal to roll back to.
func (e *Engine) recursiveDelete(ip *inode) {
	if ip.Type == TFile {
		e.ifree(ip)
		return
	}

	buf := make([]byte, direntSize)
	for off := uint32(0); off+direntSize <= ip.Size; off += direntSize {
		e.readi(ip, buf, off, direntSize)
		ent := decodeDirent(buf)
		name := nameString(ent.Name)
		if ent.Type == TFree || name == "." || name == ".." {
			continue
		}
		child := e.iget(ent.Inum)
		if child == nil {
			logger.Warnf("fsengine: recursiveDelete: missing child inode %d for %q", ent.Inum, name)
			continue
		}
		e.recursiveDelete(child)
	}
	e.ifree(ip)
}

// calcTotalFileSize recursively sums the byte size of every file
// transitively contained in dir, used to report a directory's "size" in
// listings.
func (e *Engine) calcTotalFileSize(dir *inode) uint32 {
	var total uint32
	buf := make([]byte, direntSize)
	for off := uint32(0); off+direntSize <= dir.Size; off += direntSize {
		e.readi(dir, buf, off, direntSize)
		ent := decodeDirent(buf)
		name := nameString(ent.Name)
		if ent.Type == TFree || name == "." || name == ".." {
			continue
		}
		child := e.iget(ent.Inum)
		if child == nil {
			continue
		}
		switch child.Type {
		case TFile:
			total += child.Size
		case TDir:
			total += e.calcTotalFileSize(child)
		}
	}
	return total
}
