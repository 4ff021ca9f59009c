// Package slots tracks the latest in-flight request per named slot so that
// a newer request cancels an older one and stale responses are discarded.
package slots

import (
	"context"
	"errors"
	"sync"
)

// Slot names a class of request where only the latest one matters.
type Slot string

const (
	Players    Slot = "players"
	Similar    Slot = "similar"
	Prediction Slot = "prediction"
	History    Slot = "history"
)

// ErrSuperseded is returned by Commit when a newer request has started in
// the same slot.
var ErrSuperseded = errors.New("request superseded by a newer one")

// Ticket identifies one request within a slot.
type Ticket struct {
	Slot Slot
	Seq  uint64
}

type inflight struct {
	seq    uint64
	cancel context.CancelFunc
}

// Tracker is safe for concurrent use. The zero value is ready.
type Tracker struct {
	mu      sync.Mutex
	seq     uint64
	current map[Slot]inflight
}

// Begin starts a request in slot, cancelling whatever was running there.
// The returned context is cancelled when a later Begin claims the slot or
// when Done is called for the ticket.
func (t *Tracker) Begin(parent context.Context, slot Slot) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		t.current = make(map[Slot]inflight)
	}
	if prev, ok := t.current[slot]; ok && prev.cancel != nil {
		prev.cancel()
	}
	t.seq++
	t.current[slot] = inflight{seq: t.seq, cancel: cancel}
	return ctx, Ticket{Slot: slot, Seq: t.seq}
}

// IsCurrent reports whether ticket is still the latest for its slot.
func (t *Tracker) IsCurrent(ticket Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isCurrentLocked(ticket)
}

func (t *Tracker) isCurrentLocked(ticket Ticket) bool {
	cur, ok := t.current[ticket.Slot]
	return ok && cur.seq == ticket.Seq
}

// Commit runs apply while holding the tracker lock if ticket is still the
// latest for its slot. Otherwise apply is skipped and ErrSuperseded is
// returned. apply must not call back into the Tracker.
func (t *Tracker) Commit(ticket Ticket, apply func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isCurrentLocked(ticket) {
		return ErrSuperseded
	}
	if apply != nil {
		apply()
	}
	return nil
}

// Done releases the ticket's context. It is a no-op for superseded tickets,
// whose contexts were already cancelled.
func (t *Tracker) Done(ticket Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.current[ticket.Slot]
	if !ok || cur.seq != ticket.Seq || cur.cancel == nil {
		return
	}
	cur.cancel()
	cur.cancel = nil
	t.current[ticket.Slot] = cur
}

// Cancel aborts the in-flight request of slot, if any. Its ticket will
// fail to commit.
func (t *Tracker) Cancel(slot Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.current[slot]; ok {
		if cur.cancel != nil {
			cur.cancel()
		}
		delete(t.current, slot)
	}
}

// CancelAll cancels every in-flight request and forgets all slots, so any
// outstanding ticket will fail to commit.
func (t *Tracker) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, cur := range t.current {
		if cur.cancel != nil {
			cur.cancel()
		}
	}
	t.current = nil
}
