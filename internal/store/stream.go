package store

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidStreamID means an entry ID could not be parsed.
	ErrInvalidStreamID = errors.New("ERR Invalid stream ID specified as stream command argument")

	// ErrStreamIDTooSmall means the chosen ID does not advance the
	// stream.
	ErrStreamIDTooSmall = errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")

	// ErrStreamIDZero rejects the reserved minimal ID 0-0.
	ErrStreamIDZero = errors.New("ERR The ID specified in XADD must be greater than 0-0")
)

// StreamID orders stream entries: (ms, seq) compared lexicographically.
type StreamID struct {
	Ms  uint64
	Seq uint64
}

// Less reports a < b.
func (a StreamID) Less(b StreamID) bool {
	if a.Ms != b.Ms {
		return a.Ms < b.Ms
	}
	return a.Seq < b.Seq
}

func (a StreamID) String() string {
	return fmt.Sprintf("%d-%d", a.Ms, a.Seq)
}

// ParseStreamID parses a fully explicit "<ms>-<seq>" ID.
func ParseStreamID(s string) (StreamID, error) {
	ms, seq, ok := splitID(s)
	if !ok {
		return StreamID{}, ErrInvalidStreamID
	}
	return StreamID{Ms: ms, Seq: seq}, nil
}

func splitID(s string) (ms, seq uint64, ok bool) {
	i := strings.IndexByte(s, '-')
	if i < 0 {
		return 0, 0, false
	}
	ms, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return ms, seq, true
}

// StreamEntry is one immutable stream element: an ID plus a flat
// field/value pair list.
type StreamEntry struct {
	ID     StreamID
	Fields []string
}

// stream keeps entries in insertion order, which IDs make ascending,
// plus the high-water ID used for auto-generation and monotonicity.
type stream struct {
	entries []StreamEntry
	lastID  StreamID
}

// resolveID turns an XADD id spec into a concrete ID:
//
//	*          auto: (now, 0), or (last.ms, last.seq+1) when the wall
//	           clock lags the stream top (clock skew never refuses)
//	<ms>-*     auto seq within an explicit ms
//	<ms>-<seq> taken verbatim
func (st *stream) resolveID(spec string, now uint64) (StreamID, error) {
	if spec == "*" {
		if now > st.lastID.Ms {
			return StreamID{Ms: now}, nil
		}
		return StreamID{Ms: st.lastID.Ms, Seq: st.lastID.Seq + 1}, nil
	}
	if ms, ok := strings.CutSuffix(spec, "-*"); ok {
		n, err := strconv.ParseUint(ms, 10, 64)
		if err != nil {
			return StreamID{}, ErrInvalidStreamID
		}
		switch {
		case n == st.lastID.Ms:
			return StreamID{Ms: n, Seq: st.lastID.Seq + 1}, nil
		case n > st.lastID.Ms:
			return StreamID{Ms: n}, nil
		default:
			return StreamID{}, ErrStreamIDTooSmall
		}
	}
	return ParseStreamID(spec)
}

// XAdd appends an entry to the stream at key, creating the stream if
// absent, and wakes blocked readers whose threshold the new ID passes.
// The chosen ID must be strictly greater than the stream's last ID and
// never 0-0; on error nothing is mutated.
func (s *Store) XAdd(key, idSpec string, fields []string) (StreamID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.XAddLocked(key, idSpec, fields)
}

// XAddLocked is XAdd on a held lock.
func (s *Store) XAddLocked(key, idSpec string, fields []string) (StreamID, error) {
	e := s.getEntry(key, true)
	if e != nil && e.typ != TypeStream {
		return StreamID{}, ErrWrongType
	}

	var st *stream
	if e != nil {
		st = e.stream
	} else {
		st = &stream{}
	}

	id, err := st.resolveID(idSpec, uint64(time.Now().UnixMilli()))
	if err != nil {
		return StreamID{}, err
	}
	if id == (StreamID{}) {
		return StreamID{}, ErrStreamIDZero
	}
	if len(st.entries) > 0 || st.lastID != (StreamID{}) {
		if !st.lastID.Less(id) {
			return StreamID{}, ErrStreamIDTooSmall
		}
	}

	fcopy := make([]string, len(fields))
	copy(fcopy, fields)
	st.entries = append(st.entries, StreamEntry{ID: id, Fields: fcopy})
	st.lastID = id

	if e == nil {
		s.data[key] = &entry{typ: TypeStream, stream: st, expiresAt: noExpiry}
	}

	s.streamWaiters.notify(key, id)
	return id, nil
}

// XLen reports the number of entries in the stream at key.
func (s *Store) XLen(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.XLenLocked(key)
}

// XLenLocked is XLen on a held lock.
func (s *Store) XLenLocked(key string) (int64, error) {
	e := s.getEntry(key, false)
	if e == nil {
		return 0, nil
	}
	if e.typ != TypeStream {
		return 0, ErrWrongType
	}
	return int64(len(e.stream.entries)), nil
}

// parseRangeBound parses an XRANGE bound. "-" and "+" denote the
// extremes; a bare millisecond value resolves to seq 0 on the low side
// and the maximal seq on the high side.
func parseRangeBound(spec string, high bool) (StreamID, error) {
	switch spec {
	case "-":
		return StreamID{}, nil
	case "+":
		return StreamID{Ms: math.MaxUint64, Seq: math.MaxUint64}, nil
	}
	if !strings.ContainsRune(spec, '-') {
		ms, err := strconv.ParseUint(spec, 10, 64)
		if err != nil {
			return StreamID{}, ErrInvalidStreamID
		}
		if high {
			return StreamID{Ms: ms, Seq: math.MaxUint64}, nil
		}
		return StreamID{Ms: ms}, nil
	}
	return ParseStreamID(spec)
}

// XRange returns the entries of key with start <= id <= end.
func (s *Store) XRange(key, startSpec, endSpec string) ([]StreamEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.XRangeLocked(key, startSpec, endSpec)
}

// XRangeLocked is XRange on a held lock.
func (s *Store) XRangeLocked(key, startSpec, endSpec string) ([]StreamEntry, error) {
	start, err := parseRangeBound(startSpec, false)
	if err != nil {
		return nil, err
	}
	end, err := parseRangeBound(endSpec, true)
	if err != nil {
		return nil, err
	}

	e := s.getEntry(key, false)
	if e == nil {
		return nil, nil
	}
	if e.typ != TypeStream {
		return nil, ErrWrongType
	}

	var out []StreamEntry
	for _, ent := range e.stream.entries {
		if ent.ID.Less(start) {
			continue
		}
		if end.Less(ent.ID) {
			break
		}
		out = append(out, ent)
	}
	return out, nil
}

// StreamResult is one stream's slice of an XREAD reply.
type StreamResult struct {
	Key     string
	Entries []StreamEntry
}

// XRead returns, per watched stream, the entries strictly greater than
// the caller's threshold ID. The "$" sentinel resolves to the stream's
// current last ID under the initial read lock, exactly once; a blocked
// retry reuses the resolved value, otherwise it would skip the very
// entry that woke it. With block=false (or when the probe finds data)
// the probe result is returned as is. Otherwise the caller suspends
// until an XADD passes one of its thresholds or blockMs elapses;
// blockMs <= 0 waits forever.
func (s *Store) XRead(keys, idSpecs []string, count int64, block bool, blockMs int64) ([]StreamResult, error) {
	s.mu.RLock()
	thresholds, err := s.resolveThresholdsLocked(keys, idSpecs)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	res := s.probeLocked(keys, thresholds, count)
	s.mu.RUnlock()

	if len(res) > 0 || !block {
		return res, nil
	}

	ctrl := newStreamController()
	s.streamWaiters.add(ctrl, keys, thresholds)

	var timerCh <-chan time.Time
	if blockMs > 0 {
		t := time.NewTimer(time.Duration(blockMs) * time.Millisecond)
		defer t.Stop()
		timerCh = t.C
	}
	select {
	case <-ctrl.ready:
	case <-timerCh:
	}

	s.streamWaiters.remove(ctrl, keys)

	s.mu.RLock()
	res = s.probeLocked(keys, thresholds, count)
	s.mu.RUnlock()
	return res, nil
}

// XReadLocked is the non-blocking probe on a held lock, for EXEC.
func (s *Store) XReadLocked(keys, idSpecs []string, count int64) ([]StreamResult, error) {
	thresholds, err := s.resolveThresholdsLocked(keys, idSpecs)
	if err != nil {
		return nil, err
	}
	return s.probeLocked(keys, thresholds, count), nil
}

// resolveThresholdsLocked parses each stream's threshold spec, turning
// "$" into the stream's current last ID ((0,0) when absent).
func (s *Store) resolveThresholdsLocked(keys, idSpecs []string) ([]StreamID, error) {
	thresholds := make([]StreamID, len(keys))
	for i, spec := range idSpecs {
		if spec == "$" {
			if e := s.getEntry(keys[i], false); e != nil && e.typ == TypeStream {
				thresholds[i] = e.stream.lastID
			}
			continue
		}
		id, err := parseRangeBound(spec, false)
		if err != nil {
			return nil, err
		}
		thresholds[i] = id
	}
	return thresholds, nil
}

// probeLocked collects entries above each threshold, skipping streams
// with nothing new. count <= 0 means unbounded.
func (s *Store) probeLocked(keys []string, thresholds []StreamID, count int64) []StreamResult {
	var out []StreamResult
	for i, key := range keys {
		e := s.getEntry(key, false)
		if e == nil || e.typ != TypeStream {
			continue
		}
		var entries []StreamEntry
		for _, ent := range e.stream.entries {
			if !thresholds[i].Less(ent.ID) {
				continue
			}
			entries = append(entries, ent)
			if count > 0 && int64(len(entries)) == count {
				break
			}
		}
		if len(entries) > 0 {
			out = append(out, StreamResult{Key: key, Entries: entries})
		}
	}
	return out
}
