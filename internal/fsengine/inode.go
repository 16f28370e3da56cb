package fsengine

import (
	"encoding/binary"

	"github.com/opsys/blockfs/internal/logger"
)

func (e *Engine) iblock(inum uint32) uint32 {
	return e.sb.InodeBlock[inum/inodesPerBlock]
}

func ioffset(inum uint32) uint32 {
	return inum % inodesPerBlock
}

// iget loads inode number inum. It returns nil if the slot is free or the
// number is out of range. Every returned handle is an independent snapshot;
// there is no shared cache, so concurrent handles on the same inum do not
// observe each other's writes until iupdate/iget round-trips through disk.
func (e *Engine) iget(inum uint32) *inode {
	if inum/inodesPerBlock >= e.sb.NInodeBlock {
		logger.Warnf("fsengine: iget: invalid inode number %d", inum)
		return nil
	}
	buf := e.readBlock(e.iblock(inum))
	d := decodeDinode(buf[ioffset(inum)*dinodeSize:])
	if d.Type == TFree {
		return nil
	}
	return &inode{
		Inum:   inum,
		Type:   d.Type,
		Perm:   d.Perm,
		Size:   d.Size,
		Blocks: d.Blocks,
		Addrs:  d.Addrs,
		Mtime:  d.Mtime,
		Ctime:  d.Ctime,
		Owner:  d.Owner,
	}
}

// iupdate writes ip's in-memory fields back to its containing inode block.
func (e *Engine) iupdate(ip *inode) {
	blk := e.iblock(ip.Inum)
	buf := e.readBlock(blk)
	d := dinode{
		Type:   ip.Type,
		Perm:   ip.Perm,
		Size:   ip.Size,
		Blocks: ip.Blocks,
		Addrs:  ip.Addrs,
		Mtime:  ip.Mtime,
		Ctime:  ip.Ctime,
		Owner:  ip.Owner,
	}
	d.encode(buf[ioffset(ip.Inum)*dinodeSize:])
	e.writeBlock(blk, buf)
}

// ifree zeroes ip's on-disk record so its slot can be reused by ialloc.
// It does not free the data blocks ip addressed — a known, intentionally
// preserved limitation (see DESIGN.md).
func (e *Engine) ifree(ip *inode) {
	blk := e.iblock(ip.Inum)
	buf := e.readBlock(blk)
	empty := make([]byte, dinodeSize)
	copy(buf[ioffset(ip.Inum)*dinodeSize:], empty)
	e.writeBlock(blk, buf)
}

// ialloc claims the first free inode slot, growing the scattered
// inode-block list from the data region as needed, and returns a handle to
// the freshly initialised inode.
func (e *Engine) ialloc(typ uint16) *inode {
	maxInodes := uint32(MaxInodeBlocks) * inodesPerBlock

	var curBlock uint32 = ^uint32(0)
	var buf []byte
	for inum := uint32(0); inum < maxInodes; inum++ {
		if inum/inodesPerBlock == e.sb.NInodeBlock {
			if e.sb.NInodeBlock >= MaxInodeBlocks {
				break
			}
			e.sb.InodeBlock[e.sb.NInodeBlock] = e.allocate()
			e.sb.NInodeBlock++
			e.writeBlock(0, e.sb.encode())
		}
		blk := e.iblock(inum)
		if blk != curBlock {
			buf = e.readBlock(blk)
			curBlock = blk
		}
		off := ioffset(inum) * dinodeSize
		d := decodeDinode(buf[off:])
		if d.Type == TFree {
			d = dinode{
				Type:  typ,
				Perm:  PermRead,
				Ctime: now(),
				Mtime: now(),
				Owner: e.uid,
			}
			d.encode(buf[off:])
			e.writeBlock(blk, buf)
			logger.Tracef("fsengine: ialloc: allocated inode %d type %d", inum, typ)
			return e.iget(inum)
		}
	}
	logger.Warnf("fsengine: ialloc: no free inode available")
	return nil
}

// getDataBlock maps logical block number lbn of ip to a physical block
// number, allocating direct and single-indirect blocks on demand when
// alloc is true. Returns 0 when the mapping does not exist and alloc is
// false, or when lbn falls beyond the supported address range.
func (e *Engine) getDataBlock(ip *inode, lbn uint32, alloc bool) uint32 {
	if lbn < NDirect {
		if ip.Addrs[lbn] == 0 && alloc {
			ip.Addrs[lbn] = e.allocate()
			ip.Blocks++
		}
		return ip.Addrs[lbn]
	}

	lbn -= NDirect
	if lbn < APB {
		if ip.Addrs[NDirect] == 0 {
			if !alloc {
				return 0
			}
			ip.Addrs[NDirect] = e.allocate()
			ip.Blocks++
		}
		indirect := e.readBlock(ip.Addrs[NDirect])
		off := lbn * 4
		target := binary.LittleEndian.Uint32(indirect[off:])
		if target == 0 && alloc {
			target = e.allocate()
			binary.LittleEndian.PutUint32(indirect[off:], target)
			e.writeBlock(ip.Addrs[NDirect], indirect)
			ip.Blocks++
		}
		return target
	}

	// Second-level indirection is not implemented.
	return 0
}

// readi transfers up to n bytes from ip starting at off into dst, stopping
// at end of file or the first unmapped block. Returns the byte count
// actually transferred.
func (e *Engine) readi(ip *inode, dst []byte, off, n uint32) uint32 {
	if off >= ip.Size {
		return 0
	}
	if off+n > ip.Size {
		n = ip.Size - off
	}
	var total uint32
	for total < n {
		lbn := (off + total) / BSize
		blockOff := (off + total) % BSize
		toRead := min32(BSize-blockOff, n-total)
		bno := e.getDataBlock(ip, lbn, false)
		if bno == 0 {
			break
		}
		buf := e.readBlock(bno)
		copy(dst[total:total+toRead], buf[blockOff:blockOff+toRead])
		total += toRead
	}
	return total
}

// writei transfers n bytes from src into ip starting at off, allocating
// blocks as needed, growing Size when the write extends past it, and
// flushing the inode. Returns the byte count actually transferred.
func (e *Engine) writei(ip *inode, src []byte, off, n uint32) uint32 {
	var total uint32
	for total < n {
		lbn := (off + total) / BSize
		blockOff := (off + total) % BSize
		toWrite := min32(BSize-blockOff, n-total)
		bno := e.getDataBlock(ip, lbn, true)
		if bno == 0 {
			break
		}
		buf := e.readBlock(bno)
		copy(buf[blockOff:blockOff+toWrite], src[total:total+toWrite])
		e.writeBlock(bno, buf)
		total += toWrite
	}
	if off+total > ip.Size {
		ip.Size = off + total
	}
	ip.Mtime = now()
	e.iupdate(ip)
	return total
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
