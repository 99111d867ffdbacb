// Package store implements the typed in-memory keyspace and the
// blocking-wait coordination built on top of it.
package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrWrongType means the key exists but holds a different type.
	// The text is the wire-level message.
	ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

	// ErrNotInteger means a string value could not be treated as a
	// 64-bit integer, or the increment would overflow.
	ErrNotInteger = errors.New("ERR value is not an integer or out of range")
)

// ValueType tags a keyspace entry.
type ValueType uint8

const (
	TypeString ValueType = iota
	TypeList
	TypeStream
	TypeZSet
)

// Name returns the wire-level type name.
func (t ValueType) Name() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeStream:
		return "stream"
	case TypeZSet:
		return "zset"
	}
	return "none"
}

// noExpiry is the "never expires" sentinel, distinct from every valid
// absolute millisecond timestamp.
const noExpiry int64 = -1

// entry is one keyspace slot: a tagged value plus optional expiry.
// A string entry keeps the integer form alongside the text when the
// last mutation produced one, so INCR chains never reparse.
type entry struct {
	typ       ValueType
	str       string
	num       int64
	isInt     bool
	list      []string
	stream    *stream
	zset      *sortedSet
	expiresAt int64 // absolute ms since epoch, or noExpiry
}

func (e *entry) expired(nowMs int64) bool {
	return e.expiresAt != noExpiry && e.expiresAt <= nowMs
}

// Store is the concurrent keyspace.
//
// Concurrency Model:
//   - Thread-safe for concurrent use by all connection goroutines in
//     the process.
//   - A single RWMutex guards the keyspace: readers share, one writer
//     excludes all. The lock is held across the whole user-visible
//     operation, which is what makes every single command atomic.
//   - Every operation has a *Locked inner variant that assumes the
//     lock is already held. EXEC acquires the write lock once and runs
//     each queued command through the inner layer, composing a batch
//     of heterogeneous operations into one atomic step.
//   - The two wait registries (list and stream waiters) carry their
//     own mutexes, independent of the keyspace lock. Lock order is
//     keyspace → registry → per-waiter; never the reverse.
//
// Expiry:
//   - Checked lazily on every read or write that touches a key.
//     An expired entry is removed in place and treated as absent.
//     There is no background sweeper.
//
// Ownership:
//   - The store owns all values. Reads return copies; callers never
//     hold references into live entries.
type Store struct {
	log *zap.Logger

	mu   sync.RWMutex
	data map[string]*entry

	listWaiters   listWaitRegistry
	streamWaiters streamWaitRegistry
}

// New constructs an empty keyspace.
func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		log:  log.Named("store"),
		data: make(map[string]*entry),
		listWaiters: listWaitRegistry{
			queues: make(map[string][]*listWaiter),
		},
		streamWaiters: streamWaitRegistry{
			lists: make(map[string][]*streamWaiter),
		},
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// getEntry fetches the live entry for key, purging it if expired.
// Callers must hold the lock (write lock if the entry may be purged;
// purge under RLock is avoided by treating the expired entry as
// absent and leaving removal to the next writer).
func (s *Store) getEntry(key string, canDelete bool) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if e.expired(nowMs()) {
		if canDelete {
			delete(s.data, key)
		}
		return nil
	}
	return e
}

// Lock exposes the keyspace write lock for EXEC, which holds it across
// an entire queued batch.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the keyspace write lock taken by Lock.
func (s *Store) Unlock() { s.mu.Unlock() }

// Type reports the wire-level type name of key, "none" if absent.
func (s *Store) Type(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.TypeLocked(key)
}

// TypeLocked is Type on a held lock.
func (s *Store) TypeLocked(key string) string {
	e := s.getEntry(key, false)
	if e == nil {
		return "none"
	}
	return e.typ.Name()
}

// Keys returns the keys matching pattern. Supported forms are literal
// equality, "*", and "<prefix>*"; an embedded "*" anywhere else
// matches literally. Expired entries met during the scan are purged.
func (s *Store) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.KeysLocked(pattern)
}

// KeysLocked is Keys on a held lock.
func (s *Store) KeysLocked(pattern string) []string {
	now := nowMs()
	out := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if e.expired(now) {
			delete(s.data, k)
			continue
		}
		if matchPattern(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}

func matchPattern(pattern, key string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(key, pattern[:len(pattern)-1])
	default:
		return pattern == key
	}
}

// Len reports the number of live keys. Serves the admin surface only;
// expired-but-unpurged entries may be counted.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
