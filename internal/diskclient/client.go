// Package diskclient is the disk client stub: it turns 512-byte block
// numbers into (cylinder, sector) requests against a disksim.Server and
// back again, over the disk wire protocol.
package diskclient

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/opsys/blockfs/internal/logger"
	"github.com/opsys/blockfs/internal/metrics"
	"github.com/opsys/blockfs/internal/netproto"
)

const blockSize = 512

// Client is a connection to a disk service. It is not safe for concurrent
// use by multiple goroutines — the file-system engine serializes all block
// I/O behind its own lock (spec.md §5).
type Client struct {
	conn  net.Conn
	proto *netproto.LengthConn
	ncyl  int
	nsec  int
}

// Dial connects to the disk service at addr and fetches its geometry.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("diskclient: dial %s: %w", addr, err)
	}
	c := &Client{conn: conn, proto: netproto.NewLengthConn(conn, conn)}

	if err := c.proto.WriteMessage([]byte("I")); err != nil {
		conn.Close()
		return nil, fmt.Errorf("diskclient: request geometry: %w", err)
	}
	msg, err := c.proto.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("diskclient: read geometry reply: %w", err)
	}
	var ncyl, nsec int
	if _, err := fmt.Sscanf(string(msg), "Yes %d %d", &ncyl, &nsec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("diskclient: bad geometry reply %q", msg)
	}
	c.ncyl, c.nsec = ncyl, nsec
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Geometry returns the disk's (cylinders, sectors-per-cylinder).
func (c *Client) Geometry() (ncyl, nsec int) {
	return c.ncyl, c.nsec
}

func (c *Client) blockAddress(bno uint32) (cyl, sec int) {
	return int(bno) / c.nsec, int(bno) % c.nsec
}

// ReadBlock reads block bno (512 bytes). A disk-side failure is logged and
// yields a zero-filled block, matching the simulator's documented property
// that read misses never abort the caller (spec.md §4.1, §4.8).
func (c *Client) ReadBlock(bno uint32) []byte {
	start := time.Now()
	cyl, sec := c.blockAddress(bno)

	if err := c.proto.WriteMessage([]byte(fmt.Sprintf("R %d %d", cyl, sec))); err != nil {
		logger.Warnf("diskclient: send read request for block %d: %v", bno, err)
		return make([]byte, blockSize)
	}
	msg, err := c.proto.ReadMessage()
	metrics.DiskRoundTrip(time.Since(start).Seconds())
	if err != nil {
		logger.Warnf("diskclient: read reply for block %d: %v", bno, err)
		return make([]byte, blockSize)
	}
	if !bytes.HasPrefix(msg, []byte("Yes ")) {
		metrics.DiskFailure("read")
		logger.Warnf("diskclient: read_block: failed to read block %d", bno)
		return make([]byte, blockSize)
	}
	payload := msg[len("Yes "):]
	if len(payload) != blockSize {
		metrics.DiskFailure("read")
		logger.Warnf("diskclient: read_block: short reply for block %d (%d bytes)", bno, len(payload))
		return make([]byte, blockSize)
	}
	buf := make([]byte, blockSize)
	copy(buf, payload)
	return buf
}

// WriteBlock writes the 512-byte buf to block bno. A disk-side failure is
// logged but does not return an error to the caller (spec.md §4.8).
func (c *Client) WriteBlock(bno uint32, buf []byte) {
	start := time.Now()
	cyl, sec := c.blockAddress(bno)

	header := fmt.Sprintf("W %d %d %d ", cyl, sec, blockSize)
	payload := make([]byte, 0, len(header)+blockSize)
	payload = append(payload, header...)
	payload = append(payload, buf...)

	if err := c.proto.WriteMessage(payload); err != nil {
		logger.Warnf("diskclient: send write request for block %d: %v", bno, err)
		return
	}
	msg, err := c.proto.ReadMessage()
	metrics.DiskRoundTrip(time.Since(start).Seconds())
	if err != nil {
		logger.Warnf("diskclient: write reply for block %d: %v", bno, err)
		return
	}
	if string(msg) != "Yes" {
		metrics.DiskFailure("write")
		logger.Warnf("diskclient: write_block: failed to write block %d", bno)
	}
}
