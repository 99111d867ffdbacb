package store

import "time"

// RPush appends items to the list at key, creating it if absent.
// Items are handed directly to blocked poppers first, in waiter FIFO
// order; handed items never touch the stored list but still count in
// the returned length.
func (s *Store) RPush(key string, items []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.RPushLocked(key, items)
}

// RPushLocked is RPush on a held lock.
func (s *Store) RPushLocked(key string, items []string) (int64, error) {
	return s.pushLocked(key, items, false)
}

// LPush prepends items to the list at key. Each item is prepended in
// argument order, so the last argument ends up at the head.
func (s *Store) LPush(key string, items []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LPushLocked(key, items)
}

// LPushLocked is LPush on a held lock.
func (s *Store) LPushLocked(key string, items []string) (int64, error) {
	return s.pushLocked(key, items, true)
}

func (s *Store) pushLocked(key string, items []string, front bool) (int64, error) {
	e := s.getEntry(key, true)
	if e != nil && e.typ != TypeList {
		return 0, ErrWrongType
	}

	// Waiters drain from the front of the incoming batch; only the
	// remainder is stored.
	handed := 0
	for handed < len(items) {
		if !s.listWaiters.fulfill(key, items[handed]) {
			break
		}
		handed++
	}
	rest := items[handed:]

	if len(rest) == 0 {
		// Everything went to waiters; an existing empty list would
		// violate the no-empty-lists invariant, but pushes never see
		// one because emptied lists are deleted on the spot.
		if e != nil {
			return int64(len(e.list) + handed), nil
		}
		return int64(handed), nil
	}

	if e == nil {
		e = &entry{typ: TypeList, expiresAt: noExpiry}
		s.data[key] = e
	}
	if front {
		for _, it := range rest {
			e.list = append([]string{it}, e.list...)
		}
	} else {
		e.list = append(e.list, rest...)
	}
	return int64(len(e.list) + handed), nil
}

// LRange returns the inclusive [start, end] window of the list at key.
// Negative indices count from the tail; out-of-range bounds clamp.
func (s *Store) LRange(key string, start, end int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LRangeLocked(key, start, end)
}

// LRangeLocked is LRange on a held lock.
func (s *Store) LRangeLocked(key string, start, end int64) ([]string, error) {
	e := s.getEntry(key, false)
	if e == nil {
		return nil, nil
	}
	if e.typ != TypeList {
		return nil, ErrWrongType
	}
	n := int64(len(e.list))
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
	out := make([]string, end-start+1)
	copy(out, e.list[start:end+1])
	return out, nil
}

// LLen reports the stored length of the list at key.
func (s *Store) LLen(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LLenLocked(key)
}

// LLenLocked is LLen on a held lock.
func (s *Store) LLenLocked(key string) (int64, error) {
	e := s.getEntry(key, false)
	if e == nil {
		return 0, nil
	}
	if e.typ != TypeList {
		return 0, ErrWrongType
	}
	return int64(len(e.list)), nil
}

// LPop removes and returns up to n items from the head of the list at
// key, deleting the key when the list empties.
func (s *Store) LPop(key string, n int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LPopLocked(key, n)
}

// LPopLocked is LPop on a held lock.
func (s *Store) LPopLocked(key string, n int64) ([]string, error) {
	e := s.getEntry(key, true)
	if e == nil {
		return nil, nil
	}
	if e.typ != TypeList {
		return nil, ErrWrongType
	}
	if n <= 0 {
		return nil, nil
	}
	if n > int64(len(e.list)) {
		n = int64(len(e.list))
	}
	out := make([]string, n)
	copy(out, e.list[:n])
	e.list = e.list[n:]
	if len(e.list) == 0 {
		delete(s.data, key)
	}
	return out, nil
}

// BLPop pops from the first non-empty list among keys, or suspends the
// caller until a push hands an item over or the timeout elapses.
// timeout <= 0 waits forever. On return the waiter has left every
// queue it joined.
func (s *Store) BLPop(keys []string, timeout time.Duration) (string, string, bool) {
	s.mu.Lock()
	for _, key := range keys {
		items, err := s.LPopLocked(key, 1)
		if err == nil && len(items) == 1 {
			s.mu.Unlock()
			return key, items[0], true
		}
	}

	w := newListWaiter()
	s.listWaiters.add(w, keys)
	s.mu.Unlock()

	var timerCh <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timerCh = t.C
	}
	select {
	case <-w.ready:
	case <-timerCh:
	}

	s.listWaiters.remove(w, keys)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.fulfilled {
		return "", "", false
	}
	return w.key, w.item, true
}
