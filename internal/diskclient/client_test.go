package diskclient

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/opsys/blockfs/internal/disksim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestDiskServer(t *testing.T) string {
	t.Helper()
	disk, err := disksim.Open(filepath.Join(t.TempDir(), "disk.img"), 4, 8, 0)
	require.NoError(t, err)
	t.Cleanup(func() { disk.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	srv := disksim.NewServer(disk)
	go srv.Serve(ln)

	return ln.Addr().String()
}

func TestDialFetchesGeometry(t *testing.T) {
	addr := startTestDiskServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	ncyl, nsec := c.Geometry()
	assert.Equal(t, 4, ncyl)
	assert.Equal(t, 8, nsec)
}

func TestWriteThenReadBlock(t *testing.T) {
	addr := startTestDiskServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	buf := make([]byte, blockSize)
	copy(buf, "hello block")
	c.WriteBlock(3, buf)

	got := c.ReadBlock(3)
	assert.Equal(t, buf, got)
}

func TestReadUnwrittenBlockIsZero(t *testing.T) {
	addr := startTestDiskServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	got := c.ReadBlock(5)
	assert.Equal(t, make([]byte, blockSize), got)
}

func TestBlockAddressMapping(t *testing.T) {
	addr := startTestDiskServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	cyl, sec := c.blockAddress(10)
	assert.Equal(t, 1, cyl)
	assert.Equal(t, 2, sec)
}
