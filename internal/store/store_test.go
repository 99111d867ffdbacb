package store

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore() *Store { return New(zap.NewNop()) }

func TestSetGet(t *testing.T) {
	s := newTestStore()

	s.Set("foo", "bar", 0)
	v, ok := s.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)

	// Binary and empty payloads survive untouched.
	s.Set("bin", "\x00\r\n\x01", 0)
	v, ok = s.Get("bin")
	require.True(t, ok)
	assert.Equal(t, "\x00\r\n\x01", v)

	s.Set("empty", "", 0)
	v, ok = s.Get("empty")
	require.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestSetOverwritesType(t *testing.T) {
	s := newTestStore()
	_, err := s.RPush("k", []string{"a"})
	require.NoError(t, err)

	s.Set("k", "now a string", 0)
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "now a string", v)
	assert.Equal(t, "string", s.Type("k"))
}

func TestGetFailsSoftOnWrongType(t *testing.T) {
	s := newTestStore()
	_, err := s.RPush("xs", []string{"a"})
	require.NoError(t, err)

	_, ok := s.Get("xs")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	s := newTestStore()
	s.Set("k", "v", 40)

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	time.Sleep(60 * time.Millisecond)
	_, ok = s.Get("k")
	assert.False(t, ok, "entry must lazily expire")

	// Expired entry behaves as absent for writers too.
	n, err := s.Incr("k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIncr(t *testing.T) {
	s := newTestStore()

	n, err := s.Incr("counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Incr("counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	s.Set("str", "41", 0)
	n, err = s.Incr("str")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	s.Set("word", "not-a-number", 0)
	_, err = s.Incr("word")
	assert.ErrorIs(t, err, ErrNotInteger)

	_, err = s.RPush("xs", []string{"a"})
	require.NoError(t, err)
	_, err = s.Incr("xs")
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestIncrOverflowLeavesValue(t *testing.T) {
	s := newTestStore()
	max := strconv.FormatInt(int64(1)<<62+(int64(1)<<62-1), 10) // 9223372036854775807
	s.Set("k", max, 0)

	_, err := s.Incr("k")
	require.ErrorIs(t, err, ErrNotInteger)

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, max, v, "failed INCR must not mutate")
}

func TestTypeNames(t *testing.T) {
	s := newTestStore()
	s.Set("s", "v", 0)
	_, err := s.RPush("l", []string{"a"})
	require.NoError(t, err)
	_, err = s.XAdd("x", "1-1", []string{"f", "v"})
	require.NoError(t, err)
	_, err = s.ZAdd("z", 1, "m")
	require.NoError(t, err)

	assert.Equal(t, "string", s.Type("s"))
	assert.Equal(t, "list", s.Type("l"))
	assert.Equal(t, "stream", s.Type("x"))
	assert.Equal(t, "zset", s.Type("z"))
	assert.Equal(t, "none", s.Type("nope"))
}

func TestKeysPatterns(t *testing.T) {
	s := newTestStore()
	s.Set("user:1", "a", 0)
	s.Set("user:2", "b", 0)
	s.Set("other", "c", 0)

	assert.ElementsMatch(t, []string{"user:1", "user:2", "other"}, s.Keys("*"))
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, s.Keys("user:*"))
	assert.ElementsMatch(t, []string{"other"}, s.Keys("other"))
	assert.Empty(t, s.Keys("missing"))
}

func TestKeysPurgesExpired(t *testing.T) {
	s := newTestStore()
	s.Set("gone", "v", 10)
	s.Set("kept", "v", 0)
	time.Sleep(25 * time.Millisecond)

	assert.ElementsMatch(t, []string{"kept"}, s.Keys("*"))
	assert.Equal(t, 1, s.Len())
}
