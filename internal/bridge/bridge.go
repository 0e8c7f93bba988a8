package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-songrequest/internal/logger"
)

// ErrTicketNotFound reports a resolve/reject for an id that is unknown
// or already settled. Late or duplicate callbacks are a logged no-op for
// the caller, never a crash.
var ErrTicketNotFound = errors.New("correlation ticket not found")

// Outcome is what a waiting caller receives: either raw answer data or
// the answering side's error.
type Outcome struct {
	Data json.RawMessage
	Err  error
}

type pendingTicket struct {
	createdAt time.Time
	ch        chan Outcome
}

// Bridge pairs a blocking caller with an asynchronous, out-of-band
// answer. The caller opens a ticket, ships the id to the answering
// process over any one-way channel, and waits; the answer comes back
// through Resolve or Reject carrying the same id.
//
// The bridge imposes no timeout of its own. A ticket whose answer never
// arrives stays pending until the caller gives up, so callers must
// select on their own deadline and ignore any late resolution.
type Bridge struct {
	Log *logger.Logger

	mu      sync.Mutex
	pending map[string]pendingTicket
}

func New(log *logger.Logger) *Bridge {
	return &Bridge{
		Log:     log,
		pending: make(map[string]pendingTicket),
	}
}

// Open registers a new correlation ticket and returns its id together
// with the channel the eventual outcome arrives on. The channel is
// buffered so a resolution never blocks the answering side.
func (b *Bridge) Open() (string, <-chan Outcome) {
	id := uuid.New().String()
	ch := make(chan Outcome, 1)

	b.mu.Lock()
	b.pending[id] = pendingTicket{createdAt: time.Now(), ch: ch}
	b.mu.Unlock()

	b.Log.LogBridge("OPEN", id, "ticket pending")
	return id, ch
}

// Resolve completes a pending ticket with answer data. Exactly one of
// Resolve/Reject wins; anything after the first settle reports
// ErrTicketNotFound.
func (b *Bridge) Resolve(id string, data json.RawMessage) error {
	return b.settle(id, Outcome{Data: data})
}

// Reject completes a pending ticket with the answering side's error.
func (b *Bridge) Reject(id string, cause error) error {
	return b.settle(id, Outcome{Err: cause})
}

// Abandon drops a ticket whose caller gave up waiting, so a late answer
// becomes a reported no-op instead of a leaked map entry.
func (b *Bridge) Abandon(id string) {
	b.mu.Lock()
	_, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()

	if ok {
		b.Log.LogBridge("ABANDON", id, "caller stopped waiting")
	}
}

// PendingCount reports how many tickets are still waiting for answers.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bridge) settle(id string, outcome Outcome) error {
	b.mu.Lock()
	ticket, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok {
		b.Log.LogBridge("MISS", id, "resolution for unknown or settled ticket ignored")
		return ErrTicketNotFound
	}

	ticket.ch <- outcome
	if outcome.Err != nil {
		b.Log.LogBridge("REJECT", id, outcome.Err.Error())
	} else {
		b.Log.LogBridge("RESOLVE", id, "answer delivered")
	}
	return nil
}
