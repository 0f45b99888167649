package docstore

import (
	"context"
	"log/slog"
	"sync"
)

// subscription receives change signals from a hub.
//
// The signal channel is buffered (size 1) so that any number of commits
// between two reads coalesce into one wake-up.
type subscription struct {
	signal chan struct{}
}

// hub fans commit notifications out to watchers.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[*subscription]struct{})}
}

// subscribe registers a new subscription. Subscribing to a closed hub
// returns a subscription whose channel is already closed.
func (h *hub) subscribe() *subscription {
	s := &subscription{signal: make(chan struct{}, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.signal)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *hub) unsubscribe(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
}

// publish wakes every subscriber without blocking.
func (h *hub) publish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.signal <- struct{}{}:
		default:
		}
	}
}

// close ends all subscriptions. Safe to call more than once.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.signal)
	}
	clear(h.subs)
}

// watch runs one subscription: it emits the current snapshot, then re-reads
// after every signal and emits when the version has advanced.
//
// The subscription is registered before the first read, so a commit that
// lands between the read and the wait is never missed.
func watch(ctx context.Context, h *hub, log *slog.Logger, read func(context.Context) (Snapshot, error)) <-chan Snapshot {
	out := make(chan Snapshot)
	sub := h.subscribe()

	go func() {
		defer close(out)
		defer h.unsubscribe(sub)

		last := int64(-1)
		for {
			snap, err := read(ctx)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				log.Warn("watch: read failed", "error", err)
			case snap.Version > last:
				select {
				case out <- snap:
					last = snap.Version
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.signal:
				if !ok {
					return
				}
			}
		}
	}()

	return out
}
