package fsengine

import (
	"github.com/opsys/blockfs/internal/logger"
	"github.com/opsys/blockfs/internal/metrics"
)

// bitsPerBlock is the number of blocks one bitmap block can describe.
const bitsPerBlock = BSize * 8

// bitmapBlock returns which bitmap block describes volume block b.
func (e *Engine) bitmapBlock(b uint32) uint32 {
	return b/bitsPerBlock + e.sb.BmapStart
}

// allocate scans from the data region through the end of the volume for
// the first clear bit, sets it, zero-fills the block, and returns its
// number. Returns 0 (never a valid data block) when the volume is full.
func (e *Engine) allocate() uint32 {
	for b := e.sb.DataStart; b < e.sb.Size; b++ {
		bmapBlk := e.bitmapBlock(b)
		buf := e.readBlock(bmapBlk)
		byteIdx := (b % bitsPerBlock) / 8
		bit := (b % bitsPerBlock) % 8
		if buf[byteIdx]&(1<<bit) == 0 {
			buf[byteIdx] |= 1 << bit
			e.writeBlock(bmapBlk, buf)
			e.zeroBlock(b)
			return b
		}
	}
	logger.Warnf("fsengine: allocate: volume full")
	metrics.AllocatorExhausted()
	return 0
}

// free marks bno clear in the bitmap and zero-fills it. Block 0 and any
// out-of-range block are refused.
func (e *Engine) free(bno uint32) {
	if bno == 0 || bno >= e.sb.Size {
		logger.Warnf("fsengine: free: invalid block number %d", bno)
		return
	}
	e.zeroBlock(bno)
	bmapBlk := e.bitmapBlock(bno)
	buf := e.readBlock(bmapBlk)
	byteIdx := (bno % bitsPerBlock) / 8
	bit := (bno % bitsPerBlock) % 8
	buf[byteIdx] &^= 1 << bit
	e.writeBlock(bmapBlk, buf)
}
