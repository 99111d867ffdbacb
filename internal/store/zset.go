package store

import "sort"

// zmember is one (score, member) pair in the ordered index.
type zmember struct {
	score  float64
	member string
}

// sortedSet keeps a dual index: member → score for O(1) lookups and a
// slice ordered by (score, member) for ranks and ranges. Every
// mutation updates both; they always hold identical pairs.
type sortedSet struct {
	scores  map[string]float64
	ordered []zmember
}

func newSortedSet() *sortedSet {
	return &sortedSet{scores: make(map[string]float64)}
}

// rank returns the position of (score, member) in the ordered index,
// or the insertion point if absent.
func (z *sortedSet) rank(score float64, member string) int {
	return sort.Search(len(z.ordered), func(i int) bool {
		m := z.ordered[i]
		if m.score != score {
			return m.score >= score
		}
		return m.member >= member
	})
}

// insert places (score, member) into the ordered index.
func (z *sortedSet) insert(score float64, member string) {
	i := z.rank(score, member)
	z.ordered = append(z.ordered, zmember{})
	copy(z.ordered[i+1:], z.ordered[i:])
	z.ordered[i] = zmember{score: score, member: member}
}

// removeOrdered drops (score, member) from the ordered index.
func (z *sortedSet) removeOrdered(score float64, member string) {
	i := z.rank(score, member)
	if i < len(z.ordered) && z.ordered[i].member == member && z.ordered[i].score == score {
		z.ordered = append(z.ordered[:i], z.ordered[i+1:]...)
	}
}

// zsetEntry fetches key's sorted set. Only the create path may purge
// an expired entry in place; readers hold the shared lock and must
// treat it as absent without touching the map.
func (s *Store) zsetEntry(key string, create bool) (*entry, error) {
	e := s.getEntry(key, create)
	if e == nil {
		if !create {
			return nil, nil
		}
		e = &entry{typ: TypeZSet, zset: newSortedSet(), expiresAt: noExpiry}
		s.data[key] = e
		return e, nil
	}
	if e.typ != TypeZSet {
		return nil, ErrWrongType
	}
	return e, nil
}

// ZAdd sets member's score in the sorted set at key, creating the set
// if absent. An existing member has its ordered pair replaced
// atomically. Returns 1 for a newly added member, 0 for an update.
func (s *Store) ZAdd(key string, score float64, member string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ZAddLocked(key, score, member)
}

// ZAddLocked is ZAdd on a held lock.
func (s *Store) ZAddLocked(key string, score float64, member string) (int64, error) {
	e, err := s.zsetEntry(key, true)
	if err != nil {
		return 0, err
	}
	z := e.zset
	if old, ok := z.scores[member]; ok {
		if old != score {
			z.removeOrdered(old, member)
			z.insert(score, member)
			z.scores[member] = score
		}
		return 0, nil
	}
	z.scores[member] = score
	z.insert(score, member)
	return 1, nil
}

// ZScore returns member's score, absent if the member or key is not
// there.
func (s *Store) ZScore(key, member string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ZScoreLocked(key, member)
}

// ZScoreLocked is ZScore on a held lock.
func (s *Store) ZScoreLocked(key, member string) (float64, bool, error) {
	e, err := s.zsetEntry(key, false)
	if err != nil || e == nil {
		return 0, false, err
	}
	score, ok := e.zset.scores[member]
	return score, ok, nil
}

// ZRank returns member's zero-based position in the (score, member)
// order.
func (s *Store) ZRank(key, member string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ZRankLocked(key, member)
}

// ZRankLocked is ZRank on a held lock.
func (s *Store) ZRankLocked(key, member string) (int64, bool, error) {
	e, err := s.zsetEntry(key, false)
	if err != nil || e == nil {
		return 0, false, err
	}
	z := e.zset
	score, ok := z.scores[member]
	if !ok {
		return 0, false, nil
	}
	return int64(z.rank(score, member)), true, nil
}

// ZRange returns the members in the inclusive [start, end] rank
// window; negative bounds count from the tail like LRANGE.
func (s *Store) ZRange(key string, start, end int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ZRangeLocked(key, start, end)
}

// ZRangeLocked is ZRange on a held lock.
func (s *Store) ZRangeLocked(key string, start, end int64) ([]string, error) {
	e, err := s.zsetEntry(key, false)
	if err != nil || e == nil {
		return nil, err
	}
	z := e.zset
	n := int64(len(z.ordered))
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n {
		return nil, nil
	}
	out := make([]string, 0, end-start+1)
	for _, m := range z.ordered[start : end+1] {
		out = append(out, m.member)
	}
	return out, nil
}

// ZCard reports the cardinality of the sorted set at key.
func (s *Store) ZCard(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ZCardLocked(key)
}

// ZCardLocked is ZCard on a held lock.
func (s *Store) ZCardLocked(key string) (int64, error) {
	e, err := s.zsetEntry(key, false)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.zset.ordered)), nil
}

// ZRem removes member from both indices. Returns 1 if the member was
// present. An emptied sorted set keeps its key, matching the source
// behavior for this type.
func (s *Store) ZRem(key, member string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ZRemLocked(key, member)
}

// ZRemLocked is ZRem on a held lock.
func (s *Store) ZRemLocked(key, member string) (int64, error) {
	e, err := s.zsetEntry(key, false)
	if err != nil || e == nil {
		return 0, err
	}
	z := e.zset
	score, ok := z.scores[member]
	if !ok {
		return 0, nil
	}
	delete(z.scores, member)
	z.removeOrdered(score, member)
	return 1, nil
}
