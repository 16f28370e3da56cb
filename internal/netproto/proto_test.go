package netproto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadMessage(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf, &buf)

	require.NoError(t, c.WriteMessage([]byte("Yes 4 8")))
	require.NoError(t, c.WriteMessage([]byte("No")))

	msg, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "Yes 4 8", string(msg))

	msg, err = c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "No", string(msg))

	_, err = c.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMessageCanContainEmbeddedNewlines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf, &buf)
	payload := []byte("W 0 0 5 a\nb c")

	require.NoError(t, c.WriteMessage(payload))

	msg, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, msg)
}

func TestLengthConnWriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	c := NewLengthConn(&buf, &buf)

	require.NoError(t, c.WriteMessage([]byte("Yes 4 8")))
	require.NoError(t, c.WriteMessage([]byte("No")))

	msg, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "Yes 4 8", string(msg))

	msg, err = c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "No", string(msg))

	_, err = c.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLengthConnPayloadCanContainEmbeddedNULs(t *testing.T) {
	var buf bytes.Buffer
	c := NewLengthConn(&buf, &buf)

	block := make([]byte, 512)
	copy(block, "Yes ")
	// the rest of block is already zero: a realistic 512-byte disk block
	// with plenty of embedded NUL bytes, which a NUL-terminated framing
	// would truncate at the first one.
	payload := append([]byte("Yes "), block...)

	require.NoError(t, c.WriteMessage(payload))

	msg, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, msg)
}
