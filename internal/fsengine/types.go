// Package fsengine implements the on-disk file system: superblock, bitmap
// allocator, inode layer, directory layer, path resolution, and the command
// API layered on top of a 512-byte block cache.
package fsengine

import "encoding/binary"

const (
	// BSize is the fixed block size in bytes. Every on-disk structure is
	// laid out to fit inside, or an exact multiple of, one block.
	BSize = 512

	// FSMagic identifies a formatted volume when read back from block 0.
	FSMagic = 0x2303A514

	// NDirect is the number of direct block addresses in a dinode.
	NDirect = 8

	// APB is addresses per block: how many uint32 block pointers fit in
	// one indirect block.
	APB = BSize / 4

	// MaxName is the longest name (excluding NUL padding) a directory
	// entry can hold.
	MaxName = 12

	// MaxInodeBlocks bounds the superblock's scattered inode-block list.
	MaxInodeBlocks = 123

	// MaxFileBytes is the largest file size addressable with direct and
	// single-indirect blocks only; second-level indirection is not
	// implemented.
	MaxFileBytes = (NDirect + APB) * BSize
)

// Inode types, stored in the on-disk dinode's Type field. Zero means free.
const (
	TFree = 0
	TDir  = 1
	TFile = 2
)

// Permission levels: none, read-only, read+write.
const (
	PermNone  = 0
	PermRead  = 1
	PermWrite = 2
)

// superblock occupies block 0 in its entirety: 5 uint32 header fields plus
// MaxInodeBlocks uint32 entries is exactly 512 bytes.
type superblock struct {
	Magic       uint32
	Size        uint32
	BmapStart   uint32
	DataStart   uint32
	NInodeBlock uint32
	InodeBlock  [MaxInodeBlocks]uint32
}

func (sb *superblock) encode() []byte {
	buf := make([]byte, BSize)
	binary.LittleEndian.PutUint32(buf[0:], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:], sb.Size)
	binary.LittleEndian.PutUint32(buf[8:], sb.BmapStart)
	binary.LittleEndian.PutUint32(buf[12:], sb.DataStart)
	binary.LittleEndian.PutUint32(buf[16:], sb.NInodeBlock)
	for i, v := range sb.InodeBlock {
		binary.LittleEndian.PutUint32(buf[20+4*i:], v)
	}
	return buf
}

func decodeSuperblock(buf []byte) superblock {
	var sb superblock
	sb.Magic = binary.LittleEndian.Uint32(buf[0:])
	sb.Size = binary.LittleEndian.Uint32(buf[4:])
	sb.BmapStart = binary.LittleEndian.Uint32(buf[8:])
	sb.DataStart = binary.LittleEndian.Uint32(buf[12:])
	sb.NInodeBlock = binary.LittleEndian.Uint32(buf[16:])
	for i := range sb.InodeBlock {
		sb.InodeBlock[i] = binary.LittleEndian.Uint32(buf[20+4*i:])
	}
	return sb
}

// dinode is the on-disk inode record. Its encoded size (64 bytes) divides
// BSize exactly, giving 8 inodes per inode block.
type dinode struct {
	Type   uint16
	Perm   uint16
	Size   uint32
	Blocks uint32
	Addrs  [NDirect + 2]uint32
	Mtime  uint32
	Ctime  uint32
	Owner  uint32
}

const dinodeSize = 2 + 2 + 4 + 4 + 4*(NDirect+2) + 4 + 4 + 4

const inodesPerBlock = BSize / dinodeSize

func (d *dinode) encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:], d.Type)
	binary.LittleEndian.PutUint16(buf[2:], d.Perm)
	binary.LittleEndian.PutUint32(buf[4:], d.Size)
	binary.LittleEndian.PutUint32(buf[8:], d.Blocks)
	off := 12
	for _, a := range d.Addrs {
		binary.LittleEndian.PutUint32(buf[off:], a)
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], d.Mtime)
	binary.LittleEndian.PutUint32(buf[off+4:], d.Ctime)
	binary.LittleEndian.PutUint32(buf[off+8:], d.Owner)
}

func decodeDinode(buf []byte) dinode {
	var d dinode
	d.Type = binary.LittleEndian.Uint16(buf[0:])
	d.Perm = binary.LittleEndian.Uint16(buf[2:])
	d.Size = binary.LittleEndian.Uint32(buf[4:])
	d.Blocks = binary.LittleEndian.Uint32(buf[8:])
	off := 12
	for i := range d.Addrs {
		d.Addrs[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}
	d.Mtime = binary.LittleEndian.Uint32(buf[off:])
	d.Ctime = binary.LittleEndian.Uint32(buf[off+4:])
	d.Owner = binary.LittleEndian.Uint32(buf[off+8:])
	return d
}

// inode is the in-memory handle returned by iget: an owned snapshot of a
// dinode plus its number. There is no shared cache across callers — two
// concurrent handles on the same inum see independent copies.
type inode struct {
	Inum   uint32
	Type   uint16
	Perm   uint16
	Size   uint32
	Blocks uint32
	Addrs  [NDirect + 2]uint32
	Mtime  uint32
	Ctime  uint32
	Owner  uint32
}

// direntSize is the on-disk size of a directory entry record.
const direntSize = MaxName + 2 + 4 + 4 + 4 + 4 + 4 + 2

// dirent is a directory entry: a name bound to an inode number, plus
// display-only fields cmd_ls reports without a second lookup cost in the
// original design (here they are simply recomputed at read time in Ls).
type dirent struct {
	Name  [MaxName]byte
	Type  uint16
	Inum  uint32
	Size  uint32
	Mtime uint32
	Ctime uint32
	Owner uint32
	Perm  uint16
}

func (e *dirent) encode() []byte {
	buf := make([]byte, direntSize)
	copy(buf[0:MaxName], e.Name[:])
	off := MaxName
	binary.LittleEndian.PutUint16(buf[off:], e.Type)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], e.Inum)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], e.Size)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], e.Mtime)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], e.Ctime)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], e.Owner)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], e.Perm)
	return buf
}

func decodeDirent(buf []byte) dirent {
	var e dirent
	copy(e.Name[:], buf[0:MaxName])
	off := MaxName
	e.Type = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	e.Inum = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.Size = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.Mtime = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.Ctime = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.Owner = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.Perm = binary.LittleEndian.Uint16(buf[off:])
	return e
}

func nameBytes(name string) [MaxName]byte {
	var b [MaxName]byte
	copy(b[:], name)
	return b
}

func nameString(b [MaxName]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// Entry is the public, display-ready view of a directory entry returned by
// Ls.
type Entry struct {
	Name  string
	Type  uint16
	Inum  uint32
	Size  uint32
	Mtime uint32
	Ctime uint32
	Owner uint32
	Perm  uint16
}
