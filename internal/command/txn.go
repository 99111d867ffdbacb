package command

import (
	"github.com/edirooss/zkv-server/internal/resp"
	"github.com/edirooss/zkv-server/internal/session"
)

func cmdMulti(d *Dispatcher, c *Ctx) []byte {
	if c.Sess.InTx {
		return resp.Error("ERR MULTI calls can not be nested")
	}
	c.Sess.InTx = true
	c.Sess.TxQueue = nil
	return resp.Simple("OK")
}

// cmdExec runs the queued batch atomically: the keyspace write lock is
// taken once and every queued handler runs through the *Locked store
// layer under it. Replies splice into a single array frame, so no
// other client's command can interleave. A failing queued command
// contributes its error frame and the batch continues.
func cmdExec(d *Dispatcher, c *Ctx) []byte {
	sess := c.Sess
	if !sess.InTx {
		return resp.Error("ERR EXEC without MULTI")
	}
	queue := sess.TxQueue
	sess.InTx = false
	sess.TxQueue = nil

	replies := make([][]byte, 0, len(queue))
	var writes []session.Queued

	d.store.Lock()
	for _, q := range queue {
		h := d.lookup(q.Args[0])
		if h == nil {
			// Queueing validated the name; an unknown handler here
			// would be a table mutation, which never happens.
			replies = append(replies, resp.Error("ERR unknown command"))
			continue
		}
		reply := h.Fn(d, &Ctx{Sess: sess, Args: q.Args, Raw: q.Raw, Locked: true})
		replies = append(replies, reply)
		if h.Write {
			writes = append(writes, q)
		}
	}
	d.store.Unlock()

	if d.repl.IsPrimary() {
		for _, q := range writes {
			d.repl.Propagate(q.Raw)
		}
	}

	out := resp.ArrayHeader(len(replies))
	for _, r := range replies {
		out = append(out, r...)
	}
	return out
}

func cmdDiscard(d *Dispatcher, c *Ctx) []byte {
	if !c.Sess.InTx {
		return resp.Error("ERR DISCARD without MULTI")
	}
	c.Sess.InTx = false
	c.Sess.TxQueue = nil
	return resp.Simple("OK")
}
