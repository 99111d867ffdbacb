package store

import (
	"math"
	"strconv"
)

// Set stores a string value, overwriting any existing entry regardless
// of type. ttlMs <= 0 means no expiry.
func (s *Store) Set(key, value string, ttlMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetLocked(key, value, ttlMs)
}

// SetLocked is Set on a held lock.
func (s *Store) SetLocked(key, value string, ttlMs int64) {
	e := &entry{typ: TypeString, str: value, expiresAt: noExpiry}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		e.num = n
		e.isInt = true
	}
	if ttlMs > 0 {
		e.expiresAt = nowMs() + ttlMs
	}
	s.data[key] = e
}

// Restore installs a string entry with an absolute expiry timestamp.
// The snapshot loader uses it; entries already past their expiry are
// dropped by the caller.
func (s *Store) Restore(key, value string, expiresAtMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{typ: TypeString, str: value, expiresAt: noExpiry}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		e.num = n
		e.isInt = true
	}
	if expiresAtMs > 0 {
		e.expiresAt = expiresAtMs
	}
	s.data[key] = e
}

// Get returns the string at key. Absent, expired, or wrongly-typed
// keys all read as absent.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.GetLocked(key)
}

// GetLocked is Get on a held lock.
func (s *Store) GetLocked(key string) (string, bool) {
	e := s.getEntry(key, false)
	if e == nil || e.typ != TypeString {
		return "", false
	}
	if e.isInt && e.str == "" {
		return strconv.FormatInt(e.num, 10), true
	}
	return e.str, true
}

// Incr increments the integer at key by one, creating the key at 1 if
// absent. A non-integer value or 64-bit overflow is an error and
// leaves the entry untouched.
func (s *Store) Incr(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IncrLocked(key)
}

// IncrLocked is Incr on a held lock.
func (s *Store) IncrLocked(key string) (int64, error) {
	e := s.getEntry(key, true)
	if e == nil {
		s.data[key] = &entry{typ: TypeString, num: 1, isInt: true, str: "1", expiresAt: noExpiry}
		return 1, nil
	}
	if e.typ != TypeString {
		return 0, ErrWrongType
	}
	n := e.num
	if !e.isInt {
		parsed, err := strconv.ParseInt(e.str, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		n = parsed
	}
	if n == math.MaxInt64 {
		return 0, ErrNotInteger
	}
	n++
	e.num = n
	e.isInt = true
	e.str = strconv.FormatInt(n, 10)
	return n, nil
}
