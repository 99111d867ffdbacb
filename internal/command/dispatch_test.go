package command

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edirooss/zkv-server/internal/config"
	"github.com/edirooss/zkv-server/internal/pubsub"
	"github.com/edirooss/zkv-server/internal/repl"
	"github.com/edirooss/zkv-server/internal/resp"
	"github.com/edirooss/zkv-server/internal/session"
	"github.com/edirooss/zkv-server/internal/store"
)

type testRig struct {
	d    *Dispatcher
	sess *session.Session
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	log := zap.NewNop()
	cfg, err := config.Load(nil)
	require.NoError(t, err)

	st := store.New(log)
	hub := pubsub.New(log)
	rs := repl.NewState(log, repl.RoleMaster, cfg.ReplID)
	d := NewDispatcher(log, cfg, st, hub, rs)

	client, srv := net.Pipe()
	t.Cleanup(func() { client.Close(); srv.Close() })
	go io.Copy(io.Discard, client)

	return &testRig{d: d, sess: session.New(log, srv)}
}

// do runs one command through the full dispatch pipeline.
func (r *testRig) do(args ...string) []byte {
	return r.d.Dispatch(r.sess, args, resp.Command(args...))
}

func TestDispatchUnknownAndArity(t *testing.T) {
	r := newTestRig(t)

	reply := r.do("NOSUCH", "x")
	assert.Contains(t, string(reply), "unknown command")

	reply = r.do("SET", "onlykey")
	assert.Contains(t, string(reply), "wrong number of arguments")
}

func TestDispatchCaseInsensitive(t *testing.T) {
	r := newTestRig(t)
	assert.Equal(t, resp.Simple("OK"), r.do("set", "k", "v"))
	assert.Equal(t, resp.Bulk("v"), r.do("GeT", "k"))
}

func TestSetGetPing(t *testing.T) {
	r := newTestRig(t)

	assert.Equal(t, resp.Simple("PONG"), r.do("PING"))
	assert.Equal(t, resp.Bulk("hi"), r.do("ECHO", "hi"))
	assert.Equal(t, resp.Simple("OK"), r.do("SET", "foo", "bar"))
	assert.Equal(t, resp.Bulk("bar"), r.do("GET", "foo"))
	assert.Equal(t, resp.NullBulk(), r.do("GET", "missing"))
}

func TestSetIgnoresUnknownOptions(t *testing.T) {
	r := newTestRig(t)
	assert.Equal(t, resp.Simple("OK"), r.do("SET", "k", "v", "WIBBLE"))
	assert.Equal(t, resp.Bulk("v"), r.do("GET", "k"))
}

func TestConfigGet(t *testing.T) {
	r := newTestRig(t)
	assert.Equal(t, resp.BulkArray("dir", "."), r.do("CONFIG", "GET", "dir"))
	assert.Equal(t, resp.BulkArray("dbfilename", "dump.rdb"), r.do("CONFIG", "GET", "dbfilename"))
}

func TestTransactionLifecycle(t *testing.T) {
	r := newTestRig(t)

	assert.Equal(t, resp.Simple("OK"), r.do("MULTI"))
	assert.Equal(t, resp.Error("ERR MULTI calls can not be nested"), r.do("MULTI"))
	assert.Equal(t, resp.Simple("QUEUED"), r.do("SET", "k", "1"))
	assert.Equal(t, resp.Simple("QUEUED"), r.do("INCR", "k"))

	// Nothing executed yet.
	assert.False(t, r.d.store.Len() > 0)

	reply := r.do("EXEC")
	want := append(resp.ArrayHeader(2), resp.Simple("OK")...)
	want = append(want, resp.Integer(2)...)
	assert.Equal(t, want, reply)

	assert.Equal(t, resp.Bulk("2"), r.do("GET", "k"))
}

func TestExecWithoutMulti(t *testing.T) {
	r := newTestRig(t)
	assert.Equal(t, resp.Error("ERR EXEC without MULTI"), r.do("EXEC"))
	assert.Equal(t, resp.Error("ERR DISCARD without MULTI"), r.do("DISCARD"))
}

func TestDiscardDropsQueue(t *testing.T) {
	r := newTestRig(t)
	r.do("MULTI")
	r.do("SET", "k", "v")
	assert.Equal(t, resp.Simple("OK"), r.do("DISCARD"))
	assert.Equal(t, resp.NullBulk(), r.do("GET", "k"))
	// The session left transaction state entirely.
	assert.Equal(t, resp.Error("ERR EXEC without MULTI"), r.do("EXEC"))
}

func TestExecEmptyQueue(t *testing.T) {
	r := newTestRig(t)
	r.do("MULTI")
	assert.Equal(t, resp.ArrayHeader(0), r.do("EXEC"))
}

func TestExecErrorDoesNotAbortBatch(t *testing.T) {
	r := newTestRig(t)
	r.do("SET", "word", "abc")

	r.do("MULTI")
	r.do("INCR", "word") // will fail: not an integer
	r.do("SET", "after", "yes")
	reply := r.do("EXEC")

	assert.Contains(t, string(reply), "*2\r\n")
	assert.Contains(t, string(reply), "not an integer")
	assert.Equal(t, resp.Bulk("yes"), r.do("GET", "after"))
}

func TestSubscribeModeFilter(t *testing.T) {
	r := newTestRig(t)

	reply := r.do("SUBSCRIBE", "news")
	want := append(resp.ArrayHeader(3), resp.Bulk("subscribe")...)
	want = append(want, resp.Bulk("news")...)
	want = append(want, resp.Integer(1)...)
	assert.Equal(t, want, reply)

	// Ordinary commands are refused in subscribe mode.
	reply = r.do("GET", "k")
	assert.Contains(t, string(reply), "only (P)SUBSCRIBE")

	// PING answers in array form while subscribed.
	assert.Equal(t, resp.BulkArray("pong", ""), r.do("PING"))

	reply = r.do("UNSUBSCRIBE", "news")
	assert.Contains(t, string(reply), "unsubscribe")
	// Back to normal.
	assert.Equal(t, resp.Simple("PONG"), r.do("PING"))
}

func TestPublishCountsRecipients(t *testing.T) {
	r := newTestRig(t)
	assert.Equal(t, resp.Integer(0), r.do("PUBLISH", "nowhere", "msg"))
}

func TestWaitWithoutWrites(t *testing.T) {
	r := newTestRig(t)
	// Nothing propagated: every (zero) replica is trivially in sync.
	assert.Equal(t, resp.Integer(0), r.do("WAIT", "0", "100"))
}

func TestInfoReplication(t *testing.T) {
	r := newTestRig(t)
	reply := string(r.do("INFO", "replication"))
	assert.Contains(t, reply, "role:master")
	assert.Contains(t, reply, "master_repl_offset:0")
	assert.Contains(t, reply, "master_replid:")
}

func TestLPopReplyShapeFollowsItemCount(t *testing.T) {
	r := newTestRig(t)
	r.do("RPUSH", "xs", "a", "b", "c")

	// An explicit count of 1 still yields a plain bulk, and a count
	// popping several items yields an array.
	assert.Equal(t, resp.Bulk("a"), r.do("LPOP", "xs", "1"))
	assert.Equal(t, resp.BulkArray("b", "c"), r.do("LPOP", "xs", "2"))

	// Nothing left to pop reads as a null bulk in every form.
	assert.Equal(t, resp.NullBulk(), r.do("LPOP", "xs"))
	assert.Equal(t, resp.NullBulk(), r.do("LPOP", "xs", "5"))
	assert.Equal(t, resp.NullBulk(), r.do("LPOP", "xs", "0"))
}

func TestQuitClosesConnection(t *testing.T) {
	r := newTestRig(t)

	reply := r.do("QUIT")
	assert.Nil(t, reply, "QUIT acknowledges on the socket itself")

	// The socket is gone; further writes fail.
	assert.Error(t, r.sess.Write(resp.Simple("PONG")))
}

func TestQuitAllowedInSubscribeMode(t *testing.T) {
	r := newTestRig(t)
	r.do("SUBSCRIBE", "news")

	reply := r.do("QUIT")
	assert.Nil(t, reply)
}

func TestBLPopInsideExecDoesNotBlock(t *testing.T) {
	r := newTestRig(t)
	r.do("RPUSH", "q", "x")

	r.do("MULTI")
	r.do("BLPOP", "q", "0")
	r.do("BLPOP", "empty", "0")
	reply := r.do("EXEC")

	want := append(resp.ArrayHeader(2), resp.BulkArray("q", "x")...)
	want = append(want, resp.NullArray()...)
	assert.Equal(t, want, reply)
}
