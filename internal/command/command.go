// Package command maps wire command names to handlers and runs the
// dispatch pipeline: argument validation, transaction queueing,
// subscribe-mode filtering, execution, and write propagation.
package command

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/edirooss/zkv-server/internal/config"
	"github.com/edirooss/zkv-server/internal/metrics"
	"github.com/edirooss/zkv-server/internal/pubsub"
	"github.com/edirooss/zkv-server/internal/repl"
	"github.com/edirooss/zkv-server/internal/resp"
	"github.com/edirooss/zkv-server/internal/session"
	"github.com/edirooss/zkv-server/internal/store"
)

// Ctx carries one invocation through a handler.
type Ctx struct {
	Sess *session.Session
	Args []string
	Raw  []byte

	// Locked means the keyspace write lock is already held (EXEC runs
	// its queued batch under one acquisition); handlers use the
	// *Locked store layer instead of re-acquiring.
	Locked bool
}

// Handler is one table entry.
type Handler struct {
	Name  string
	Arity int // minimum argument count, command name included
	Write bool
	Fn    func(d *Dispatcher, c *Ctx) []byte
}

// Dispatcher owns the command table and the collaborators handlers
// act on.
type Dispatcher struct {
	log   *zap.Logger
	cfg   *config.Config
	store *store.Store
	hub   *pubsub.Hub
	repl  *repl.State

	table map[string]*Handler
}

// NewDispatcher wires the table.
func NewDispatcher(log *zap.Logger, cfg *config.Config, st *store.Store, hub *pubsub.Hub, rs *repl.State) *Dispatcher {
	d := &Dispatcher{
		log:   log.Named("command"),
		cfg:   cfg,
		store: st,
		hub:   hub,
		repl:  rs,
		table: make(map[string]*Handler),
	}
	for _, h := range handlers {
		d.table[h.Name] = h
	}
	return d
}

// subscribeModeAllowed lists the commands a session in subscribe mode
// may still issue.
var subscribeModeAllowed = map[string]struct{}{
	"SUBSCRIBE": {}, "UNSUBSCRIBE": {}, "PSUBSCRIBE": {}, "PUNSUBSCRIBE": {},
	"PING": {}, "QUIT": {},
}

// Dispatch runs one parsed frame through the pipeline and returns the
// reply bytes, or nil when the handler wrote to the socket itself.
func (d *Dispatcher) Dispatch(sess *session.Session, args []string, raw []byte) []byte {
	name := strings.ToUpper(args[0])
	h, ok := d.table[name]
	if !ok {
		return resp.Error(fmt.Sprintf("ERR unknown command '%s'", args[0]))
	}
	if len(args) < h.Arity {
		return resp.Error(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
	}

	if sess.InSubscribeMode() {
		if _, ok := subscribeModeAllowed[name]; !ok {
			return resp.Error(fmt.Sprintf(
				"ERR Can't execute '%s': only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT are allowed in this context",
				strings.ToLower(name)))
		}
	}

	// MULTI passes through so nesting reports its error instead of
	// queueing.
	if sess.InTx && name != "EXEC" && name != "DISCARD" && name != "MULTI" {
		sess.TxQueue = append(sess.TxQueue, session.Queued{Args: args, Raw: raw})
		return resp.Simple("QUEUED")
	}

	metrics.CommandsTotal.WithLabelValues(name).Inc()
	reply := h.Fn(d, &Ctx{Sess: sess, Args: args, Raw: raw})

	if h.Write && d.repl.IsPrimary() {
		d.repl.Propagate(raw)
	}
	return reply
}

// Apply executes a replicated command from the primary's stream. The
// session is silent, so handlers that write directly produce nothing,
// and the slave role keeps propagation off.
func (d *Dispatcher) Apply(sess *session.Session, args []string, raw []byte) {
	_ = d.Dispatch(sess, args, raw)
}

// lookup returns the handler for name, nil if unknown.
func (d *Dispatcher) lookup(name string) *Handler {
	return d.table[strings.ToUpper(name)]
}
