// Package netproto implements the two wire framings this stack's services
// use: Conn, a NUL-terminated, whitespace-tokenized line framing for the
// file-system service's text commands (matching the original fs server),
// and LengthConn, a 4-byte length-prefixed framing for the disk service,
// whose replies and writes carry raw binary blocks that a NUL terminator
// would corrupt (matching the original disk server's length-framed
// transport).
package netproto

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// splitNUL is a bufio.SplitFunc that frames on a NUL byte instead of '\n'.
func splitNUL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[0:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Conn wraps a byte stream with NUL-framed message read/write.
type Conn struct {
	r *bufio.Scanner
	w io.Writer
}

// NewConn wraps rw for NUL-framed message exchange.
func NewConn(r io.Reader, w io.Writer) *Conn {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	scanner.Split(splitNUL)
	return &Conn{r: scanner, w: w}
}

// ReadMessage returns the next NUL-terminated message, without its
// terminator. io.EOF is returned when the peer closed the stream cleanly.
func (c *Conn) ReadMessage() ([]byte, error) {
	if !c.r.Scan() {
		if err := c.r.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return c.r.Bytes(), nil
}

// WriteMessage sends payload followed by a single NUL terminator.
func (c *Conn) WriteMessage(payload []byte) error {
	if _, err := c.w.Write(payload); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if _, err := c.w.Write([]byte{0}); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}
	return nil
}

// LengthConn frames each message with a 4-byte big-endian length prefix
// instead of a NUL terminator. The disk protocol's replies and writes carry
// raw 512-byte blocks that routinely contain zero bytes — a zeroed block, a
// superblock's unused InodeBlock tail, an empty inode slot — so framing on
// NUL would truncate them. Length framing carries any byte sequence intact,
// matching the original disk server's length-prefixed transport.
type LengthConn struct {
	r io.Reader
	w io.Writer
}

// NewLengthConn wraps rw for length-framed message exchange.
func NewLengthConn(r io.Reader, w io.Writer) *LengthConn {
	return &LengthConn{r: r, w: w}
}

// ReadMessage reads a 4-byte length prefix followed by exactly that many
// payload bytes. io.EOF is returned when the peer closed the stream cleanly
// before sending another length prefix.
func (c *LengthConn) ReadMessage() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return nil, fmt.Errorf("read message payload: %w", err)
	}
	return payload, nil
}

// WriteMessage sends a 4-byte big-endian length prefix followed by payload.
func (c *LengthConn) WriteMessage(payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := c.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := c.w.Write(payload); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
