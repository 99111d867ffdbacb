package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/edirooss/zkv-server/internal/rdb"
	"github.com/edirooss/zkv-server/internal/resp"
)

// cmdReplConf serves the primary side of REPLCONF. The handshake
// negotiations get +OK; ACK updates the sending replica's offset and
// produces no reply at all.
func cmdReplConf(d *Dispatcher, c *Ctx) []byte {
	switch strings.ToUpper(c.Args[1]) {
	case "LISTENING-PORT", "CAPA":
		return resp.Simple("OK")
	case "ACK":
		if len(c.Args) < 3 {
			return nil
		}
		offset, err := strconv.ParseInt(c.Args[2], 10, 64)
		if err != nil {
			return nil
		}
		d.repl.AckUpdate(c.Sess.ReplicaIndex, offset)
		return nil
	case "GETACK":
		// Answered by the replica link loop, never by the table.
		return nil
	default:
		return resp.Simple("OK")
	}
}

// cmdPSync turns the session into a replica: it joins the roster,
// receives +FULLRESYNC and the snapshot blob, and from then on only
// propagated write frames flow to it. The snapshot frame carries no
// trailing CRLF.
func cmdPSync(d *Dispatcher, c *Ctx) []byte {
	idx := d.repl.AddReplica(c.Sess)
	c.Sess.ReplicaIndex = idx

	full := resp.Simple("FULLRESYNC " + d.repl.ReplID() + " 0")
	if err := c.Sess.Write(full); err != nil {
		return nil
	}
	_ = c.Sess.Write(resp.RDB(rdb.EmptySnapshot()))
	return nil
}

func cmdWait(d *Dispatcher, c *Ctx) []byte {
	numReplicas, err := strconv.Atoi(c.Args[1])
	if err != nil {
		return resp.Error("ERR value is not an integer or out of range")
	}
	timeoutMs, err := strconv.ParseInt(c.Args[2], 10, 64)
	if err != nil || timeoutMs < 0 {
		return resp.Error("ERR timeout is not an integer or out of range")
	}
	n := d.repl.Wait(numReplicas, time.Duration(timeoutMs)*time.Millisecond)
	return resp.Integer(int64(n))
}
