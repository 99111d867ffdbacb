package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edirooss/zkv-server/internal/command"
	"github.com/edirooss/zkv-server/internal/config"
	"github.com/edirooss/zkv-server/internal/pubsub"
	"github.com/edirooss/zkv-server/internal/repl"
	"github.com/edirooss/zkv-server/internal/store"
)

// rig is one fully wired server on an ephemeral port.
type rig struct {
	addr string
	st   *store.Store
	rs   *repl.State
}

// startRig boots a server; extra flags stack on top of --port 0.
func startRig(t *testing.T, extra ...string) *rig {
	t.Helper()
	log := zap.NewNop()

	cfg, err := config.Load(append([]string{"--port", "0"}, extra...))
	require.NoError(t, err)

	st := store.New(log)
	role := repl.RoleMaster
	if cfg.IsReplica() {
		role = repl.RoleSlave
	}
	rs := repl.NewState(log, role, cfg.ReplID)
	hub := pubsub.New(log)
	dispatch := command.NewDispatcher(log, cfg, st, hub, rs)
	srv := New(log, cfg, dispatch, hub, rs)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx)

	if cfg.IsReplica() {
		link := repl.NewLink(log, cfg, st, rs, dispatch.Apply)
		go link.Run(ctx)
	}

	return &rig{addr: srv.Addr().String(), st: st, rs: rs}
}

func (r *rig) client(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:             r.addr,
		Protocol:         2,
		DisableIndentity: true,
		DialTimeout:      2 * time.Second,
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     2 * time.Second,
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStringsEndToEnd(t *testing.T) {
	r := startRig(t)
	c := r.client(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "foo", "bar", 0).Err())
	got, err := c.Get(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, "bar", got)

	_, err = c.Get(ctx, "missing").Result()
	assert.ErrorIs(t, err, redis.Nil)

	pong, err := c.Ping(ctx).Result()
	require.NoError(t, err)
	assert.Equal(t, "PONG", pong)

	echoed, err := c.Echo(ctx, "hello").Result()
	require.NoError(t, err)
	assert.Equal(t, "hello", echoed)
}

func TestExpiryEndToEnd(t *testing.T) {
	r := startRig(t)
	c := r.client(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fleeting", "v", 80*time.Millisecond).Err())
	got, err := c.Get(ctx, "fleeting").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	time.Sleep(120 * time.Millisecond)
	_, err = c.Get(ctx, "fleeting").Result()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestListsEndToEnd(t *testing.T) {
	r := startRig(t)
	c := r.client(t)
	ctx := context.Background()

	n, err := c.RPush(ctx, "xs", "a", "b", "c").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := c.LRange(ctx, "xs", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, all)

	popped, err := c.LPopCount(ctx, "xs", 2).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, popped)

	llen, err := c.LLen(ctx, "xs").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), llen)
}

func TestBLPopAcrossClients(t *testing.T) {
	r := startRig(t)
	waiter := r.client(t)
	pusher := r.client(t)
	ctx := context.Background()

	resCh := make(chan []string, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := waiter.BLPop(ctx, 3*time.Second, "q").Result()
		if err != nil {
			errCh <- err
			return
		}
		resCh <- res
	}()

	time.Sleep(100 * time.Millisecond)
	n, err := pusher.RPush(ctx, "q", "hello").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	select {
	case res := <-resCh:
		assert.Equal(t, []string{"q", "hello"}, res)
	case err := <-errCh:
		t.Fatalf("BLPOP failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("BLPOP never unblocked")
	}

	// The exchange left nothing behind.
	llen, err := pusher.LLen(ctx, "q").Result()
	require.NoError(t, err)
	assert.Zero(t, llen)
	typ, err := pusher.Type(ctx, "q").Result()
	require.NoError(t, err)
	assert.Equal(t, "none", typ)
}

func TestBLPopTimeoutEndToEnd(t *testing.T) {
	r := startRig(t)
	c := r.client(t)
	ctx := context.Background()

	start := time.Now()
	_, err := c.BLPop(ctx, 100*time.Millisecond, "nonexistent").Result()
	assert.ErrorIs(t, err, redis.Nil)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestTransactionEndToEnd(t *testing.T) {
	r := startRig(t)
	c := r.client(t)
	ctx := context.Background()

	cmds, err := c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, "k", "1", 0)
		p.Incr(ctx, "k")
		return nil
	})
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, int64(2), cmds[1].(*redis.IntCmd).Val())

	got, err := c.Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestIncrEndToEnd(t *testing.T) {
	r := startRig(t)
	c := r.client(t)
	ctx := context.Background()

	n, err := c.Incr(ctx, "counter").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, c.Set(ctx, "word", "abc", 0).Err())
	err = c.Incr(ctx, "word").Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an integer")
}

func TestStreamsEndToEnd(t *testing.T) {
	r := startRig(t)
	c := r.client(t)
	ctx := context.Background()

	id, err := c.XAdd(ctx, &redis.XAddArgs{
		Stream: "s", ID: "1-1", Values: []string{"f", "v"},
	}).Result()
	require.NoError(t, err)
	assert.Equal(t, "1-1", id)

	err = c.XAdd(ctx, &redis.XAddArgs{
		Stream: "s", ID: "1-1", Values: []string{"g", "w"},
	}).Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "equal or smaller")

	msgs, err := c.XRange(ctx, "s", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "1-1", msgs[0].ID)
	assert.Equal(t, map[string]interface{}{"f": "v"}, msgs[0].Values)

	xlen, err := c.XLen(ctx, "s").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), xlen)
}

func TestSortedSetsEndToEnd(t *testing.T) {
	r := startRig(t)
	c := r.client(t)
	ctx := context.Background()

	for member, score := range map[string]float64{"a": 1, "b": 2, "c": 3} {
		n, err := c.ZAdd(ctx, "z", redis.Z{Score: score, Member: member}).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}

	members, err := c.ZRange(ctx, "z", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, members)

	rank, err := c.ZRank(ctx, "z", "b").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)

	card, err := c.ZCard(ctx, "z").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), card)

	score, err := c.ZScore(ctx, "z", "c").Result()
	require.NoError(t, err)
	assert.Equal(t, float64(3), score)

	removed, err := c.ZRem(ctx, "z", "a").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestPubSubEndToEnd(t *testing.T) {
	r := startRig(t)
	sub := r.client(t)
	pub := r.client(t)
	ctx := context.Background()

	ps := sub.Subscribe(ctx, "news")
	defer ps.Close()
	_, err := ps.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	n, err := pub.Publish(ctx, "news", "breaking").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	select {
	case msg := <-ps.Channel():
		assert.Equal(t, "news", msg.Channel)
		assert.Equal(t, "breaking", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("published message never arrived")
	}
}

func TestKeysAndConfigEndToEnd(t *testing.T) {
	r := startRig(t)
	c := r.client(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:1", "a", 0).Err())
	require.NoError(t, c.Set(ctx, "user:2", "b", 0).Err())

	keys, err := c.Keys(ctx, "user:*").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, keys)

	vals, err := c.ConfigGet(ctx, "dir").Result()
	require.NoError(t, err)
	assert.Equal(t, ".", vals["dir"])
}

func TestReplicationEndToEnd(t *testing.T) {
	primary := startRig(t)
	replica := startRig(t, "--replicaof", fmt.Sprintf("127.0.0.1 %d", portOf(t, primary.addr)))

	// Wait for the handshake to attach the replica.
	require.Eventually(t, func() bool {
		return primary.rs.ReplicaCount() == 1
	}, 3*time.Second, 20*time.Millisecond, "replica never attached")

	pc := primary.client(t)
	rc := replica.client(t)
	ctx := context.Background()

	require.NoError(t, pc.Set(ctx, "k", "v", 0).Err())

	// The write flows down the command stream.
	require.Eventually(t, func() bool {
		v, err := rc.Get(ctx, "k").Result()
		return err == nil && v == "v"
	}, 3*time.Second, 20*time.Millisecond, "write never reached replica")

	// WAIT sees the replica acknowledge everything propagated so far.
	acked, err := pc.Do(ctx, "WAIT", 1, 1000).Int()
	require.NoError(t, err)
	assert.Equal(t, 1, acked)

	// The replica reports its role in INFO replication.
	info, err := rc.Info(ctx, "replication").Result()
	require.NoError(t, err)
	assert.Contains(t, info, "role:slave")
}

func portOf(t *testing.T, addr string) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}
