package repl

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/zkv-server/internal/config"
	"github.com/edirooss/zkv-server/internal/rdb"
	"github.com/edirooss/zkv-server/internal/resp"
	"github.com/edirooss/zkv-server/internal/session"
	"github.com/edirooss/zkv-server/internal/store"
)

// Link is the replica side of replication: it dials the primary, runs
// the handshake, loads the snapshot, then consumes the command stream
// silently for the life of the process.
type Link struct {
	log   *zap.Logger
	cfg   *config.Config
	st    *store.Store
	state *State

	// Apply runs one replicated command through the dispatcher under
	// the silent session: the local store mutates, no reply is
	// produced.
	Apply func(sess *session.Session, args []string, raw []byte)
}

// NewLink builds the replica link.
func NewLink(log *zap.Logger, cfg *config.Config, st *store.Store, state *State, apply func(*session.Session, []string, []byte)) *Link {
	return &Link{
		log:   log.Named("repl.link"),
		cfg:   cfg,
		st:    st,
		state: state,
		Apply: apply,
	}
}

// Run connects and follows the primary until the context is canceled
// or the link fails.
func (l *Link) Run(ctx context.Context) error {
	addr := l.cfg.ReplicaOf.Addr()
	l.log.Info("connecting to primary", zap.String("addr", addr))

	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("repl: dial primary: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop on shutdown.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	r := resp.NewReader(conn)
	if err := l.handshake(conn, r); err != nil {
		return err
	}

	snapshot, err := r.ReadRDB()
	if err != nil {
		return fmt.Errorf("repl: read snapshot: %w", err)
	}
	if err := rdb.LoadBytes(l.log, snapshot, l.st); err != nil {
		l.log.Warn("snapshot load failed, continuing with empty keyspace", zap.Error(err))
	}
	l.log.Info("full resync complete", zap.Int("snapshot_bytes", len(snapshot)))

	return l.consume(ctx, conn, r)
}

// handshake walks the fixed PING → REPLCONF ×2 → PSYNC sequence.
func (l *Link) handshake(conn net.Conn, r *resp.Reader) error {
	steps := []struct {
		cmd    []string
		expect string
	}{
		{[]string{"PING"}, "PONG"},
		{[]string{"REPLCONF", "listening-port", strconv.Itoa(l.cfg.Port)}, "OK"},
		{[]string{"REPLCONF", "capa", "psync2"}, "OK"},
	}
	for _, step := range steps {
		if _, err := conn.Write(resp.Command(step.cmd...)); err != nil {
			return fmt.Errorf("repl: handshake send %s: %w", step.cmd[0], err)
		}
		v, err := r.ReadValue()
		if err != nil {
			return fmt.Errorf("repl: handshake read after %s: %w", step.cmd[0], err)
		}
		if v.Type != resp.TypeSimple || v.Str != step.expect {
			return fmt.Errorf("repl: handshake %s: want +%s, got %q", step.cmd[0], step.expect, v.Str)
		}
	}

	if _, err := conn.Write(resp.Command("PSYNC", "?", "-1")); err != nil {
		return fmt.Errorf("repl: handshake send PSYNC: %w", err)
	}
	v, err := r.ReadValue()
	if err != nil {
		return fmt.Errorf("repl: handshake read after PSYNC: %w", err)
	}
	if v.Type != resp.TypeSimple || !strings.HasPrefix(v.Str, "FULLRESYNC") {
		return fmt.Errorf("repl: handshake PSYNC: want +FULLRESYNC, got %q", v.Str)
	}
	l.log.Info("handshake complete", zap.String("fullresync", v.Str))
	return nil
}

// consume reads the primary's command stream. Every frame is executed
// through the dispatcher under a silent session; nothing is written
// back upstream except REPLCONF GETACK, which is answered with the
// byte offset consumed so far. The offset counts a frame only after
// that frame is processed, so the first GETACK reports the bytes
// before it.
func (l *Link) consume(ctx context.Context, conn net.Conn, r *resp.Reader) error {
	sess := session.NewSilent(l.log)
	var offset int64

	for {
		args, raw, err := r.ReadCommand()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("repl: command stream: %w", err)
		}

		if isGetAck(args) {
			ack := resp.Command("REPLCONF", "ACK", strconv.FormatInt(offset, 10))
			if _, err := conn.Write(ack); err != nil {
				return fmt.Errorf("repl: send ACK: %w", err)
			}
		} else {
			l.Apply(sess, args, raw)
		}
		offset += int64(len(raw))
	}
}

func isGetAck(args []string) bool {
	return len(args) >= 2 &&
		strings.EqualFold(args[0], "REPLCONF") &&
		strings.EqualFold(args[1], "GETACK")
}
