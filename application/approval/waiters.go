package approval

import (
	"sync"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
)

// waiters is a registry of channels blocked on ticket resolution.
// Channels are buffered so notify never blocks a resolver.
type waiters struct {
	mu      sync.Mutex
	pending map[string][]chan *ticket.Ticket
}

func newWaiters() *waiters {
	return &waiters{pending: make(map[string][]chan *ticket.Ticket)}
}

// register adds a waiter for the given ticket id and returns its channel.
func (w *waiters) register(id string) chan *ticket.Ticket {
	ch := make(chan *ticket.Ticket, 1)
	w.mu.Lock()
	w.pending[id] = append(w.pending[id], ch)
	w.mu.Unlock()
	return ch
}

// deregister removes a waiter channel, if still present.
func (w *waiters) deregister(id string, ch chan *ticket.Ticket) {
	w.mu.Lock()
	defer w.mu.Unlock()

	chans := w.pending[id]
	for i, c := range chans {
		if c == ch {
			chans = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(chans) == 0 {
		delete(w.pending, id)
	} else {
		w.pending[id] = chans
	}
}

// notify wakes every waiter for the ticket with its own copy.
// Waking nobody is normal; most tickets are resolved from an email link
// with no prompt blocked on them.
func (w *waiters) notify(t *ticket.Ticket) {
	w.mu.Lock()
	chans := w.pending[t.ID]
	delete(w.pending, t.ID)
	w.mu.Unlock()

	for _, ch := range chans {
		ch <- t.Clone()
	}
}
