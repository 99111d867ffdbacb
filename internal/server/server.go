// Package server accepts TCP connections and runs one session loop per
// client.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/edirooss/zkv-server/internal/command"
	"github.com/edirooss/zkv-server/internal/config"
	"github.com/edirooss/zkv-server/internal/metrics"
	"github.com/edirooss/zkv-server/internal/pubsub"
	"github.com/edirooss/zkv-server/internal/repl"
	"github.com/edirooss/zkv-server/internal/resp"
	"github.com/edirooss/zkv-server/internal/session"
)

// Server is the listener/acceptor.
type Server struct {
	log      *zap.Logger
	cfg      *config.Config
	dispatch *command.Dispatcher
	hub      *pubsub.Hub
	repl     *repl.State

	ln net.Listener
}

// New wires the acceptor.
func New(log *zap.Logger, cfg *config.Config, dispatch *command.Dispatcher, hub *pubsub.Hub, rs *repl.State) *Server {
	return &Server{
		log:      log.Named("server"),
		cfg:      cfg,
		dispatch: dispatch,
		hub:      hub,
		repl:     rs,
	}
}

// Listen binds the TCP socket. Kept separate from Serve so startup can
// fail fast when the port is taken.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.ln = ln
	s.log.Info("listening", zap.Int("port", s.cfg.Port), zap.String("role", s.repl.Role()))
	return nil
}

// Addr returns the bound address; valid after Listen.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts until the context is canceled, spawning a session
// goroutine per connection.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("accept loop stopped")
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// handleConn is the per-connection session loop: read one frame,
// dispatch, write the reply under the session's write lock, repeat
// until EOF or a protocol violation.
func (s *Server) handleConn(conn net.Conn) {
	metrics.ConnectedClients.Inc()
	defer metrics.ConnectedClients.Dec()

	sess := session.New(s.log, conn)
	log := s.log.With(zap.String("sid", sess.ID), zap.String("peer", conn.RemoteAddr().String()))
	log.Debug("client connected")

	defer func() {
		s.hub.UnsubscribeAll(sess)
		if sess.ReplicaIndex >= 0 {
			s.repl.RemoveReplica(sess.ReplicaIndex)
		}
		conn.Close()
		log.Debug("client disconnected")
	}()

	r := resp.NewReader(conn)
	for {
		args, raw, err := r.ReadCommand()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var perr *resp.ProtocolError
			if errors.As(err, &perr) {
				log.Warn("protocol error, closing connection", zap.Error(err))
			} else {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}

		reply := s.dispatch.Dispatch(sess, args, raw)
		if reply == nil {
			continue
		}
		if err := sess.Write(reply); err != nil {
			return
		}
	}
}
