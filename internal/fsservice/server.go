package fsservice

import (
	"net"

	"github.com/google/uuid"
	"github.com/opsys/blockfs/internal/logger"
	"github.com/opsys/blockfs/internal/netproto"
	"golang.org/x/sync/errgroup"
)

// Server accepts connections and answers each command line through a
// Dispatcher. One goroutine serves each connection; the underlying
// Engine serialises concurrent commands behind its own lock.
type Server struct {
	dispatcher *Dispatcher
}

// NewServer builds a Server around dispatcher.
func NewServer(dispatcher *Dispatcher) *Server {
	return &Server{dispatcher: dispatcher}
}

// Serve accepts connections on ln until it returns an error (including on
// ln.Close from another goroutine), then waits for every already-accepted
// connection to finish.
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

// handleConn stamps the connection with a session ID used only for log
// correlation; it plays no part in any on-disk or engine-level state.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	session := uuid.New().String()
	logger.Infof("fsservice: session %s connecting from %s", session, conn.RemoteAddr())
	c := netproto.NewConn(conn, conn)

	for {
		msg, err := c.ReadMessage()
		if err != nil {
			logger.Infof("fsservice: session %s leaving %s", session, conn.RemoteAddr())
			return
		}
		reply, keepGoing := s.dispatcher.Dispatch(msg)
		if err := c.WriteMessage(reply); err != nil {
			logger.Warnf("fsservice: session %s write reply to %s: %v", session, conn.RemoteAddr(), err)
			return
		}
		if !keepGoing {
			return
		}
	}
}
