package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edirooss/zkv-server/internal/resp"
)

func cmdPing(d *Dispatcher, c *Ctx) []byte {
	if c.Sess.InSubscribeMode() {
		return resp.BulkArray("pong", "")
	}
	return resp.Simple("PONG")
}

func cmdEcho(d *Dispatcher, c *Ctx) []byte {
	return resp.Bulk(c.Args[1])
}

// cmdQuit acknowledges and closes the socket; the session loop
// observes the closed connection and runs its usual teardown.
func cmdQuit(d *Dispatcher, c *Ctx) []byte {
	_ = c.Sess.Write(resp.Simple("OK"))
	if c.Sess.Conn != nil {
		c.Sess.Conn.Close()
	}
	return nil
}

func cmdSet(d *Dispatcher, c *Ctx) []byte {
	key, value := c.Args[1], c.Args[2]

	// PX/EX are honored; unknown trailing options are silently
	// ignored, matching the primary's behavior so replica streams
	// never diverge on them.
	var ttlMs int64
	for i := 3; i < len(c.Args); i++ {
		switch strings.ToUpper(c.Args[i]) {
		case "PX":
			if i+1 >= len(c.Args) {
				return resp.Error("ERR syntax error")
			}
			ms, err := strconv.ParseInt(c.Args[i+1], 10, 64)
			if err != nil || ms <= 0 {
				return resp.Error("ERR invalid expire time in 'set' command")
			}
			ttlMs = ms
			i++
		case "EX":
			if i+1 >= len(c.Args) {
				return resp.Error("ERR syntax error")
			}
			secs, err := strconv.ParseInt(c.Args[i+1], 10, 64)
			if err != nil || secs <= 0 {
				return resp.Error("ERR invalid expire time in 'set' command")
			}
			ttlMs = secs * 1000
			i++
		}
	}

	if c.Locked {
		d.store.SetLocked(key, value, ttlMs)
	} else {
		d.store.Set(key, value, ttlMs)
	}
	return resp.Simple("OK")
}

func cmdGet(d *Dispatcher, c *Ctx) []byte {
	var (
		value string
		ok    bool
	)
	if c.Locked {
		value, ok = d.store.GetLocked(c.Args[1])
	} else {
		value, ok = d.store.Get(c.Args[1])
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Bulk(value)
}

func cmdIncr(d *Dispatcher, c *Ctx) []byte {
	var (
		n   int64
		err error
	)
	if c.Locked {
		n, err = d.store.IncrLocked(c.Args[1])
	} else {
		n, err = d.store.Incr(c.Args[1])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Integer(n)
}

func cmdType(d *Dispatcher, c *Ctx) []byte {
	if c.Locked {
		return resp.Simple(d.store.TypeLocked(c.Args[1]))
	}
	return resp.Simple(d.store.Type(c.Args[1]))
}

func cmdKeys(d *Dispatcher, c *Ctx) []byte {
	var keys []string
	if c.Locked {
		keys = d.store.KeysLocked(c.Args[1])
	} else {
		keys = d.store.Keys(c.Args[1])
	}
	return resp.BulkArray(keys...)
}

func cmdConfig(d *Dispatcher, c *Ctx) []byte {
	if !strings.EqualFold(c.Args[1], "GET") {
		return resp.Error(fmt.Sprintf("ERR unknown CONFIG subcommand '%s'", c.Args[1]))
	}
	switch strings.ToLower(c.Args[2]) {
	case "dir":
		return resp.BulkArray("dir", d.cfg.Dir)
	case "dbfilename":
		return resp.BulkArray("dbfilename", d.cfg.DBFilename)
	default:
		return resp.ArrayHeader(0)
	}
}

func cmdInfo(d *Dispatcher, c *Ctx) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "role:%s\n", d.repl.Role())
	fmt.Fprintf(&b, "master_replid:%s\n", d.repl.ReplID())
	fmt.Fprintf(&b, "master_repl_offset:%d\n", d.repl.Offset())
	fmt.Fprintf(&b, "connected_slaves:%d\n", d.repl.ReplicaCount())
	return resp.Bulk(b.String())
}
