// Package session holds per-connection state.
package session

import (
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queued is one command buffered between MULTI and EXEC: its pre-split
// arguments plus the raw frame bytes for replica propagation.
type Queued struct {
	Args []string
	Raw  []byte
}

// Session is the state of one client connection. The write mutex
// serializes everyone who writes to the socket: the session's own
// replies and pub/sub fan-out from other connections.
type Session struct {
	ID   string
	Conn net.Conn

	log *zap.Logger
	wmu sync.Mutex

	// Transaction state, touched only by the owning connection
	// goroutine.
	InTx    bool
	TxQueue []Queued

	// Subscribe mode: the set of subscribed channels. Non-empty set
	// means the command filter is active.
	Channels map[string]struct{}

	// ReplicaIndex is the slot in the primary's replica list, -1 for
	// ordinary clients.
	ReplicaIndex int

	// Silent marks the dummy session the replica link executes the
	// primary's command stream under: handlers run, replies are
	// discarded.
	Silent bool
}

// New builds a session for an accepted connection.
func New(log *zap.Logger, conn net.Conn) *Session {
	id := uuid.NewString()
	return &Session{
		ID:           id,
		Conn:         conn,
		log:          log.Named("session").With(zap.String("sid", id)),
		Channels:     make(map[string]struct{}),
		ReplicaIndex: -1,
	}
}

// NewSilent builds the dummy session the replica link dispatches
// through.
func NewSilent(log *zap.Logger) *Session {
	return &Session{
		ID:           uuid.NewString(),
		log:          log.Named("session.replica-link"),
		Channels:     make(map[string]struct{}),
		ReplicaIndex: -1,
		Silent:       true,
	}
}

// Write sends raw reply bytes under the socket write lock. Silent
// sessions drop the bytes.
func (s *Session) Write(b []byte) error {
	if s.Silent || len(b) == 0 {
		return nil
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.Conn.Write(b)
	if err != nil {
		s.log.Debug("socket write failed", zap.Error(err))
	}
	return err
}

// InSubscribeMode reports whether the subscribe-mode command filter is
// active.
func (s *Session) InSubscribeMode() bool { return len(s.Channels) > 0 }
