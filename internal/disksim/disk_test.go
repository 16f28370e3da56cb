package disksim

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "disk.img"), 4, 8, 0)
	require.NoError(t, err)
	defer d.Close()

	payload := bytes("hello")
	require.NoError(t, d.WriteSector(1, 2, payload))

	got, err := d.ReadSector(1, 2)
	require.NoError(t, err)
	assert.Equal(t, payload, got[:len(payload)])
	assert.Equal(t, make([]byte, blockSize-len(payload)), got[len(payload):])
}

func TestInvalidAddressRejected(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "disk.img"), 2, 2, 0)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.ReadSector(5, 0)
	assert.Error(t, err)
	err = d.WriteSector(0, 9, bytes("x"))
	assert.Error(t, err)
}

func TestGeometry(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "disk.img"), 4, 8, 0)
	require.NoError(t, err)
	defer d.Close()

	ncyl, nsec := d.Geometry()
	assert.Equal(t, 4, ncyl)
	assert.Equal(t, 8, nsec)
}

func bytes(s string) []byte { return []byte(s) }
