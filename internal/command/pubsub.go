package command

import (
	"github.com/edirooss/zkv-server/internal/resp"
)

func cmdSubscribe(d *Dispatcher, c *Ctx) []byte {
	var out []byte
	for _, channel := range c.Args[1:] {
		n := d.hub.Subscribe(c.Sess, channel)
		frame := resp.ArrayHeader(3)
		frame = append(frame, resp.Bulk("subscribe")...)
		frame = append(frame, resp.Bulk(channel)...)
		frame = append(frame, resp.Integer(int64(n))...)
		out = append(out, frame...)
	}
	return out
}

func cmdUnsubscribe(d *Dispatcher, c *Ctx) []byte {
	var out []byte
	for _, channel := range c.Args[1:] {
		n := d.hub.Unsubscribe(c.Sess, channel)
		frame := resp.ArrayHeader(3)
		frame = append(frame, resp.Bulk("unsubscribe")...)
		frame = append(frame, resp.Bulk(channel)...)
		frame = append(frame, resp.Integer(int64(n))...)
		out = append(out, frame...)
	}
	return out
}

func cmdPublish(d *Dispatcher, c *Ctx) []byte {
	n := d.hub.Publish(c.Args[1], c.Args[2])
	return resp.Integer(int64(n))
}
