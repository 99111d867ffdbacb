package store

import "sync"

// streamController is the caller-owned wake-up handle behind one
// blocked XREAD. A single controller backs the waiter placed on every
// watched key, so whichever stream advances first wins and later
// notifications collapse into the already-set fulfilled flag.
type streamController struct {
	mu        sync.Mutex
	fulfilled bool
	ready     chan struct{}
}

func newStreamController() *streamController {
	return &streamController{ready: make(chan struct{}, 1)}
}

// streamWaiter is one (key, threshold) registration pointing back at
// its controller.
type streamWaiter struct {
	threshold StreamID
	ctrl      *streamController
}

// streamWaitRegistry maps stream keys to their registered waiters.
// Lock order: keyspace → registry → controller.
type streamWaitRegistry struct {
	mu    sync.Mutex
	lists map[string][]*streamWaiter
}

// add registers ctrl under every watched key with its per-key
// threshold.
func (r *streamWaitRegistry) add(ctrl *streamController, keys []string, thresholds []StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, k := range keys {
		r.lists[k] = append(r.lists[k], &streamWaiter{threshold: thresholds[i], ctrl: ctrl})
	}
}

// remove drops every registration owned by ctrl. Called by the reader
// on wake-up, fulfilled or timed out.
func (r *streamWaitRegistry) remove(ctrl *streamController, keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		l := r.lists[k]
		kept := l[:0]
		for _, w := range l {
			if w.ctrl != ctrl {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			delete(r.lists, k)
		} else {
			r.lists[k] = kept
		}
	}
}

// notify wakes every waiter on key whose threshold the new ID
// strictly exceeds. Registrations stay in place; owners remove them.
func (r *streamWaitRegistry) notify(key string, id StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.lists[key] {
		if !w.threshold.Less(id) {
			continue
		}
		w.ctrl.mu.Lock()
		if !w.ctrl.fulfilled {
			w.ctrl.fulfilled = true
			select {
			case w.ctrl.ready <- struct{}{}:
			default:
			}
		}
		w.ctrl.mu.Unlock()
	}
}
