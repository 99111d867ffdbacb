// Package repl implements primary→replica replication: the primary's
// replica roster, write propagation and WAIT coordination, and the
// replica side's handshake plus command-stream consumer.
package repl

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/zkv-server/internal/resp"
	"github.com/edirooss/zkv-server/internal/session"
)

// Role names follow the wire protocol's vocabulary (INFO replication).
const (
	RoleMaster = "master"
	RoleSlave  = "slave"
)

// Replica is one connected replica on the primary side.
type Replica struct {
	Sess *session.Session
	ack  int64
}

// State is the process-wide replication record. One mutex guards the
// roster and the offset; acknowledgment updates broadcast on the
// condition variable WAIT sleeps on. The mutex is independent of the
// keyspace lock.
type State struct {
	log    *zap.Logger
	role   string
	replID string

	mu     sync.Mutex
	cond   *sync.Cond
	offset int64
	// Slots are stable: a removed replica leaves a nil hole so the
	// indices recorded in sessions stay valid.
	replicas []*Replica
}

// NewState builds the replication record for the given role.
func NewState(log *zap.Logger, role, replID string) *State {
	s := &State{
		log:    log.Named("repl"),
		role:   role,
		replID: replID,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Role returns "master" or "slave".
func (s *State) Role() string { return s.role }

// IsPrimary reports whether writes should propagate from here.
func (s *State) IsPrimary() bool { return s.role == RoleMaster }

// ReplID returns the 40-character replication identifier.
func (s *State) ReplID() string { return s.replID }

// Offset returns the current propagation byte offset.
func (s *State) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// AddReplica registers a session that completed PSYNC and returns its
// slot index.
func (s *State) AddReplica(sess *session.Session) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replicas = append(s.replicas, &Replica{Sess: sess})
	idx := len(s.replicas) - 1
	s.log.Info("replica attached", zap.Int("slot", idx), zap.String("sid", sess.ID))
	return idx
}

// RemoveReplica detaches the replica in the given slot, if any.
func (s *State) RemoveReplica(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= 0 && idx < len(s.replicas) && s.replicas[idx] != nil {
		s.replicas[idx] = nil
		s.log.Info("replica detached", zap.Int("slot", idx))
	}
}

// ReplicaCount reports the number of attached replicas.
func (s *State) ReplicaCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

func (s *State) countLocked() int {
	n := 0
	for _, r := range s.replicas {
		if r != nil {
			n++
		}
	}
	return n
}

// Propagate forwards one write command's raw frame to every replica
// and advances the propagation offset by the frame's byte length.
// A replica whose socket fails is dropped from the roster.
func (s *State) Propagate(raw []byte) {
	s.mu.Lock()
	targets := make([]*Replica, len(s.replicas))
	copy(targets, s.replicas)
	s.offset += int64(len(raw))
	s.mu.Unlock()

	for i, r := range targets {
		if r == nil {
			continue
		}
		if err := r.Sess.Write(raw); err != nil {
			s.log.Warn("propagation failed, dropping replica",
				zap.Int("slot", i), zap.Error(err))
			s.RemoveReplica(i)
		}
	}
}

// AckUpdate records a replica's acknowledged offset and wakes WAIT
// callers.
func (s *State) AckUpdate(idx int, offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.replicas) || s.replicas[idx] == nil {
		return
	}
	if offset > s.replicas[idx].ack {
		s.replicas[idx].ack = offset
	}
	s.cond.Broadcast()
}

var getAckFrame = resp.Command("REPLCONF", "GETACK", "*")

// Wait blocks until numReplicas replicas acknowledge everything
// propagated so far, or timeout elapses, and returns the acknowledged
// count at wake-up. With nothing propagated yet every replica is
// trivially in sync.
func (s *State) Wait(numReplicas int, timeout time.Duration) int {
	s.mu.Lock()
	required := s.offset
	if required == 0 {
		n := s.countLocked()
		s.mu.Unlock()
		return n
	}
	// GETACK rides the same stream as writes and counts toward the
	// offset like any propagated frame.
	targets := make([]*Replica, len(s.replicas))
	copy(targets, s.replicas)
	s.offset += int64(len(getAckFrame))
	s.mu.Unlock()

	for _, r := range targets {
		if r != nil {
			_ = r.Sess.Write(getAckFrame)
		}
	}

	expired := false
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			s.mu.Lock()
			expired = true
			s.cond.Broadcast()
			s.mu.Unlock()
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		n := 0
		for _, r := range s.replicas {
			if r != nil && r.ack >= required {
				n++
			}
		}
		if n >= numReplicas || expired {
			if timer != nil {
				timer.Stop()
			}
			return n
		}
		s.cond.Wait()
	}
}
