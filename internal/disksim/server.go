package disksim

import (
	"bytes"
	"fmt"
	"io"
	"net"

	"github.com/opsys/blockfs/internal/logger"
	"github.com/opsys/blockfs/internal/netproto"
	"golang.org/x/sync/errgroup"
)

// Server accepts disk-protocol connections and serves them against a single
// Disk. The original server handled one client at a time; a reimplementation
// may serve several connections concurrently since each request is
// independently addressed and the Disk guards its own state.
type Server struct {
	disk *Disk
}

// NewServer wraps disk for serving over the disk wire protocol.
func NewServer(disk *Disk) *Server {
	return &Server{disk: disk}
}

// Serve accepts connections on ln until it returns an error (including when
// ln is closed), then waits for every already-accepted connection to finish
// so a single panic or listener-close can't outrun its own cleanup.
func (s *Server) Serve(ln net.Listener) error {
	var g errgroup.Group
	acceptErr := func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			g.Go(func() error {
				s.handleConn(conn)
				return nil
			})
		}
	}()
	_ = g.Wait()
	return acceptErr
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	c := netproto.NewLengthConn(conn, conn)
	for {
		msg, err := c.ReadMessage()
		if err != nil {
			if err != io.EOF {
				logger.Warnf("disksim: read error: %v", err)
			}
			return
		}
		reply, keepGoing := s.dispatch(msg)
		if err := c.WriteMessage(reply); err != nil {
			logger.Warnf("disksim: write error: %v", err)
			return
		}
		if !keepGoing {
			return
		}
	}
}

func (s *Server) dispatch(msg []byte) (reply []byte, keepGoing bool) {
	fields := bytes.Fields(msg)
	if len(fields) == 0 {
		return []byte("No"), true
	}
	verb := string(fields[0])
	switch verb {
	case "I":
		ncyl, nsec := s.disk.Geometry()
		return []byte(fmt.Sprintf("Yes %d %d", ncyl, nsec)), true
	case "R":
		return s.handleRead(fields), true
	case "W":
		return s.handleWrite(msg, fields), true
	case "E":
		return []byte("Bye!"), false
	default:
		return []byte("No"), true
	}
}

func (s *Server) handleRead(fields [][]byte) []byte {
	var cyl, sec int
	if len(fields) != 3 {
		return []byte("No")
	}
	if _, err := fmt.Sscanf(string(fields[1])+" "+string(fields[2]), "%d %d", &cyl, &sec); err != nil {
		return []byte("No")
	}
	data, err := s.disk.ReadSector(cyl, sec)
	if err != nil {
		logger.Warnf("disksim: read failed: %v", err)
		return []byte("No")
	}
	out := make([]byte, 0, 4+len(data))
	out = append(out, "Yes "...)
	out = append(out, data...)
	return out
}

func (s *Server) handleWrite(msg []byte, fields [][]byte) []byte {
	if len(fields) < 4 {
		return []byte("No")
	}
	var cyl, sec, length int
	if _, err := fmt.Sscanf(string(fields[1])+" "+string(fields[2])+" "+string(fields[3]), "%d %d %d", &cyl, &sec, &length); err != nil {
		return []byte("No")
	}

	// The payload follows the 4th space-separated token; locate it by
	// skipping exactly that many leading fields in the raw message so
	// embedded spaces in the payload are not mistaken for more fields.
	data, ok := payloadAfterFields(msg, 4)
	if !ok || len(data) < length {
		return []byte("No")
	}
	if err := s.disk.WriteSector(cyl, sec, data[:length]); err != nil {
		logger.Warnf("disksim: write failed: %v", err)
		return []byte("No")
	}
	return []byte("Yes")
}

// payloadAfterFields returns the bytes of msg following the n-th
// space-separated field (1-indexed by the count of leading fields to skip).
func payloadAfterFields(msg []byte, n int) ([]byte, bool) {
	idx := 0
	for i := 0; i < n; i++ {
		next := bytes.IndexByte(msg[idx:], ' ')
		if next < 0 {
			return nil, false
		}
		idx += next + 1
	}
	return msg[idx:], true
}
