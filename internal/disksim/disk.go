// Package disksim simulates a cylinder/sector block device backed by a
// regular file, with a track-to-track seek delay charged on every access
// whose cylinder differs from the last one served. It is the external
// collaborator spec.md calls the "disk backend" — out of scope for the
// file-system engine's invariants, but implemented here so the stack runs
// end to end.
package disksim

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const blockSize = 512

// Disk is a single simulated disk: a file of ncyl*nsec*512 bytes addressed
// by (cylinder, sector), with a configurable seek delay.
type Disk struct {
	mu     sync.Mutex
	file   *os.File
	ncyl   int
	nsec   int
	seekMS int
	curCyl int
}

// Open creates (or truncates) path to hold ncyl*nsec blocks and returns a
// Disk ready to serve requests. seekMS is the per-cylinder track-to-track
// delay in milliseconds.
func Open(path string, ncyl, nsec, seekMS int) (*Disk, error) {
	if ncyl <= 0 || nsec <= 0 {
		return nil, fmt.Errorf("disksim: ncyl and nsec must be positive, got %d/%d", ncyl, nsec)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("disksim: open %s: %w", path, err)
	}
	size := int64(ncyl) * int64(nsec) * blockSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("disksim: truncate %s: %w", path, err)
	}
	return &Disk{file: f, ncyl: ncyl, nsec: nsec, seekMS: seekMS}, nil
}

// Close releases the backing file.
func (d *Disk) Close() error {
	return d.file.Close()
}

// Geometry returns the disk's (cylinders, sectors-per-cylinder).
func (d *Disk) Geometry() (ncyl, nsec int) {
	return d.ncyl, d.nsec
}

func (d *Disk) seek(cyl int) {
	delta := cyl - d.curCyl
	if delta < 0 {
		delta = -delta
	}
	if delta > 0 && d.seekMS > 0 {
		time.Sleep(time.Duration(delta*d.seekMS) * time.Millisecond)
	}
	d.curCyl = cyl
}

func (d *Disk) validAddress(cyl, sec int) bool {
	return cyl >= 0 && cyl < d.ncyl && sec >= 0 && sec < d.nsec
}

// ReadSector reads the full 512-byte block at (cyl, sec).
func (d *Disk) ReadSector(cyl, sec int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.validAddress(cyl, sec) {
		return nil, fmt.Errorf("disksim: invalid address cyl=%d sec=%d", cyl, sec)
	}
	d.seek(cyl)

	buf := make([]byte, blockSize)
	off := int64(cyl*d.nsec+sec) * blockSize
	if _, err := d.file.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("disksim: read at %d: %w", off, err)
	}
	return buf, nil
}

// WriteSector writes data (at most 512 bytes) to (cyl, sec), zero-padding
// any remainder of the block.
func (d *Disk) WriteSector(cyl, sec int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.validAddress(cyl, sec) {
		return fmt.Errorf("disksim: invalid address cyl=%d sec=%d", cyl, sec)
	}
	if len(data) == 0 || len(data) > blockSize {
		return fmt.Errorf("disksim: invalid data length %d (must be 1-%d)", len(data), blockSize)
	}
	d.seek(cyl)

	buf := make([]byte, blockSize)
	copy(buf, data)
	off := int64(cyl*d.nsec+sec) * blockSize
	if _, err := d.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("disksim: write at %d: %w", off, err)
	}
	return nil
}
