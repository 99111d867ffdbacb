package command

import (
	"strconv"
	"strings"

	"github.com/edirooss/zkv-server/internal/resp"
	"github.com/edirooss/zkv-server/internal/store"
)

// entryFrame renders one stream entry: [id, [field, value, ...]].
func entryFrame(e store.StreamEntry) []byte {
	b := resp.ArrayHeader(2)
	b = append(b, resp.Bulk(e.ID.String())...)
	b = append(b, resp.BulkArray(e.Fields...)...)
	return b
}

func entriesFrame(entries []store.StreamEntry) []byte {
	b := resp.ArrayHeader(len(entries))
	for _, e := range entries {
		b = append(b, entryFrame(e)...)
	}
	return b
}

func cmdXAdd(d *Dispatcher, c *Ctx) []byte {
	key, idSpec := c.Args[1], c.Args[2]
	fields := c.Args[3:]
	if len(fields)%2 != 0 {
		return resp.Error("ERR wrong number of arguments for 'xadd' command")
	}

	var (
		id  store.StreamID
		err error
	)
	if c.Locked {
		id, err = d.store.XAddLocked(key, idSpec, fields)
	} else {
		id, err = d.store.XAdd(key, idSpec, fields)
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Bulk(id.String())
}

func cmdXRange(d *Dispatcher, c *Ctx) []byte {
	var (
		entries []store.StreamEntry
		err     error
	)
	if c.Locked {
		entries, err = d.store.XRangeLocked(c.Args[1], c.Args[2], c.Args[3])
	} else {
		entries, err = d.store.XRange(c.Args[1], c.Args[2], c.Args[3])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return entriesFrame(entries)
}

func cmdXLen(d *Dispatcher, c *Ctx) []byte {
	var (
		n   int64
		err error
	)
	if c.Locked {
		n, err = d.store.XLenLocked(c.Args[1])
	} else {
		n, err = d.store.XLen(c.Args[1])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Integer(n)
}

func cmdXRead(d *Dispatcher, c *Ctx) []byte {
	args := c.Args[1:]

	var (
		count   int64
		block   bool
		blockMs int64
	)
	for len(args) > 0 {
		stop := false
		switch strings.ToUpper(args[0]) {
		case "COUNT":
			if len(args) < 2 {
				return resp.Error("ERR syntax error")
			}
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return resp.Error("ERR value is not an integer or out of range")
			}
			count = n
			args = args[2:]
		case "BLOCK":
			if len(args) < 2 {
				return resp.Error("ERR syntax error")
			}
			ms, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || ms < 0 {
				return resp.Error("ERR timeout is not an integer or out of range")
			}
			block = true
			blockMs = ms
			args = args[2:]
		case "STREAMS":
			args = args[1:]
			stop = true
		default:
			return resp.Error("ERR syntax error")
		}
		if stop {
			break
		}
	}

	if len(args) == 0 || len(args)%2 != 0 {
		return resp.Error("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(args) / 2
	keys, ids := args[:n], args[n:]

	// An EXEC batch holds the keyspace lock; blocking would deadlock
	// the whole server, so queued XREADs only probe.
	var (
		results []store.StreamResult
		err     error
	)
	if c.Locked {
		results, err = d.store.XReadLocked(keys, ids, count)
	} else {
		results, err = d.store.XRead(keys, ids, count, block, blockMs)
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	if len(results) == 0 {
		return resp.NullArray()
	}

	b := resp.ArrayHeader(len(results))
	for _, r := range results {
		b = append(b, resp.ArrayHeader(2)...)
		b = append(b, resp.Bulk(r.Key)...)
		b = append(b, entriesFrame(r.Entries)...)
	}
	return b
}
