package command

import (
	"strconv"

	"github.com/edirooss/zkv-server/internal/resp"
)

func cmdZAdd(d *Dispatcher, c *Ctx) []byte {
	score, err := strconv.ParseFloat(c.Args[2], 64)
	if err != nil {
		return resp.Error("ERR value is not a valid float")
	}
	var (
		added int64
		zerr  error
	)
	if c.Locked {
		added, zerr = d.store.ZAddLocked(c.Args[1], score, c.Args[3])
	} else {
		added, zerr = d.store.ZAdd(c.Args[1], score, c.Args[3])
	}
	if zerr != nil {
		return resp.Error(zerr.Error())
	}
	return resp.Integer(added)
}

func cmdZRank(d *Dispatcher, c *Ctx) []byte {
	var (
		rank int64
		ok   bool
		err  error
	)
	if c.Locked {
		rank, ok, err = d.store.ZRankLocked(c.Args[1], c.Args[2])
	} else {
		rank, ok, err = d.store.ZRank(c.Args[1], c.Args[2])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Integer(rank)
}

func cmdZRange(d *Dispatcher, c *Ctx) []byte {
	start, err1 := strconv.ParseInt(c.Args[2], 10, 64)
	end, err2 := strconv.ParseInt(c.Args[3], 10, 64)
	if err1 != nil || err2 != nil {
		return resp.Error("ERR value is not an integer or out of range")
	}
	var (
		members []string
		err     error
	)
	if c.Locked {
		members, err = d.store.ZRangeLocked(c.Args[1], start, end)
	} else {
		members, err = d.store.ZRange(c.Args[1], start, end)
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.BulkArray(members...)
}

func cmdZCard(d *Dispatcher, c *Ctx) []byte {
	var (
		n   int64
		err error
	)
	if c.Locked {
		n, err = d.store.ZCardLocked(c.Args[1])
	} else {
		n, err = d.store.ZCard(c.Args[1])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Integer(n)
}

func cmdZScore(d *Dispatcher, c *Ctx) []byte {
	var (
		score float64
		ok    bool
		err   error
	)
	if c.Locked {
		score, ok, err = d.store.ZScoreLocked(c.Args[1], c.Args[2])
	} else {
		score, ok, err = d.store.ZScore(c.Args[1], c.Args[2])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Bulk(strconv.FormatFloat(score, 'f', -1, 64))
}

func cmdZRem(d *Dispatcher, c *Ctx) []byte {
	var (
		n   int64
		err error
	)
	if c.Locked {
		n, err = d.store.ZRemLocked(c.Args[1], c.Args[2])
	} else {
		n, err = d.store.ZRem(c.Args[1], c.Args[2])
	}
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Integer(n)
}
