// Package pubsub fans published messages out to subscribed sessions.
package pubsub

import (
	"sync"

	"go.uber.org/zap"

	"github.com/edirooss/zkv-server/internal/resp"
	"github.com/edirooss/zkv-server/internal/session"
)

// Hub maps channel names to subscriber sets. The hub never owns a
// subscriber's socket; delivery borrows the session's write lock for
// the duration of one send, and session teardown unsubscribes from
// every channel so the hub drops its references.
type Hub struct {
	log *zap.Logger

	mu       sync.RWMutex
	channels map[string]map[*session.Session]struct{}
}

// New constructs an empty hub.
func New(log *zap.Logger) *Hub {
	return &Hub{
		log:      log.Named("pubsub"),
		channels: make(map[string]map[*session.Session]struct{}),
	}
}

// Subscribe adds sess to channel and returns the session's channel
// count after the add.
func (h *Hub) Subscribe(sess *session.Session, channel string) int {
	h.mu.Lock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*session.Session]struct{})
		h.channels[channel] = subs
	}
	subs[sess] = struct{}{}
	h.mu.Unlock()

	sess.Channels[channel] = struct{}{}
	return len(sess.Channels)
}

// Unsubscribe removes sess from channel and returns the session's
// remaining channel count.
func (h *Hub) Unsubscribe(sess *session.Session, channel string) int {
	h.mu.Lock()
	if subs, ok := h.channels[channel]; ok {
		delete(subs, sess)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	h.mu.Unlock()

	delete(sess.Channels, channel)
	return len(sess.Channels)
}

// UnsubscribeAll detaches sess from every channel; called on session
// teardown.
func (h *Hub) UnsubscribeAll(sess *session.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range sess.Channels {
		if subs, ok := h.channels[channel]; ok {
			delete(subs, sess)
			if len(subs) == 0 {
				delete(h.channels, channel)
			}
		}
		delete(sess.Channels, channel)
	}
}

// Publish delivers message to every subscriber of channel as the
// standard three-element notification, returning the recipient count.
func (h *Hub) Publish(channel, message string) int {
	frame := resp.BulkArray("message", channel, message)

	h.mu.RLock()
	targets := make([]*session.Session, 0, len(h.channels[channel]))
	for sess := range h.channels[channel] {
		targets = append(targets, sess)
	}
	h.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.Write(frame); err != nil {
			h.log.Debug("fan-out write failed",
				zap.String("channel", channel), zap.String("sid", sess.ID))
		}
	}
	return len(targets)
}
