package command

import (
	"strconv"
	"time"

	"github.com/edirooss/zkv-server/internal/resp"
)

func cmdRPush(d *Dispatcher, c *Ctx) []byte {
	var (
		n   int64
		err error
	)
	if c.Locked {
		n, err = d.store.RPushLocked(c.Args[1], c.Args[2:])
	} else {
		n, err = d.store.RPush(c.Args[1], c.Args[2:])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Integer(n)
}

func cmdLPush(d *Dispatcher, c *Ctx) []byte {
	var (
		n   int64
		err error
	)
	if c.Locked {
		n, err = d.store.LPushLocked(c.Args[1], c.Args[2:])
	} else {
		n, err = d.store.LPush(c.Args[1], c.Args[2:])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Integer(n)
}

func cmdLRange(d *Dispatcher, c *Ctx) []byte {
	start, err1 := strconv.ParseInt(c.Args[2], 10, 64)
	end, err2 := strconv.ParseInt(c.Args[3], 10, 64)
	if err1 != nil || err2 != nil {
		return resp.Error("ERR value is not an integer or out of range")
	}
	var (
		items []string
		err   error
	)
	if c.Locked {
		items, err = d.store.LRangeLocked(c.Args[1], start, end)
	} else {
		items, err = d.store.LRange(c.Args[1], start, end)
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.BulkArray(items...)
}

func cmdLLen(d *Dispatcher, c *Ctx) []byte {
	var (
		n   int64
		err error
	)
	if c.Locked {
		n, err = d.store.LLenLocked(c.Args[1])
	} else {
		n, err = d.store.LLen(c.Args[1])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Integer(n)
}

func cmdLPop(d *Dispatcher, c *Ctx) []byte {
	count := int64(1)
	if len(c.Args) >= 3 {
		n, err := strconv.ParseInt(c.Args[2], 10, 64)
		if err != nil || n < 0 {
			return resp.Error("ERR value is not an integer or out of range")
		}
		count = n
	}

	var (
		items []string
		err   error
	)
	if c.Locked {
		items, err = d.store.LPopLocked(c.Args[1], count)
	} else {
		items, err = d.store.LPop(c.Args[1], count)
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	// The reply shape follows what actually came out, not the request:
	// nothing popped reads as a null bulk, a lone item as a plain bulk,
	// anything more as an array.
	switch len(items) {
	case 0:
		return resp.NullBulk()
	case 1:
		return resp.Bulk(items[0])
	default:
		return resp.BulkArray(items...)
	}
}

func cmdBLPop(d *Dispatcher, c *Ctx) []byte {
	keys := c.Args[1 : len(c.Args)-1]
	secs, err := strconv.ParseFloat(c.Args[len(c.Args)-1], 64)
	if err != nil || secs < 0 {
		return resp.Error("ERR timeout is not a float or out of range")
	}

	// Inside EXEC nothing may suspend while the batch holds the
	// keyspace lock; degrade to an immediate probe.
	if c.Locked {
		for _, key := range keys {
			items, err := d.store.LPopLocked(key, 1)
			if err == nil && len(items) == 1 {
				return resp.BulkArray(key, items[0])
			}
		}
		return resp.NullArray()
	}

	key, item, ok := d.store.BLPop(keys, time.Duration(secs*float64(time.Second)))
	if !ok {
		return resp.NullArray()
	}
	return resp.BulkArray(key, item)
}
