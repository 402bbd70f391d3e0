package duplexrpc

import (
	"strconv"
	"sync"

	"go.uber.org/atomic"
)

// outcome is what a pending-response slot ultimately receives: a decoded
// success/error response, or a closed sentinel delivered on teardown.
type outcome struct {
	result interface{}
	err    *errorObject
	closed bool
}

// tracker is the outbound request tracker of §4.H: id generation, the
// pending-response table, and delivery/teardown of single-shot slots.
type tracker struct {
	mu      sync.Mutex
	pending map[ID]chan outcome

	nextID *atomic.Int64
	idGen  func() ID
}

func newTracker(idGen func() ID) *tracker {
	t := &tracker{
		pending: make(map[ID]chan outcome),
		nextID:  atomic.NewInt64(0),
	}
	if idGen != nil {
		t.idGen = idGen
	} else {
		t.idGen = t.defaultID
	}
	return t
}

// defaultID implements §4.H's default: a process-wide (here,
// per-connection) monotonically incrementing integer rendered as
// "id-<n>".
func (t *tracker) defaultID() ID {
	n := t.nextID.Inc()
	return stringID("id-" + strconv.FormatInt(n, 10))
}

// newSlot allocates a fresh id and its delivery channel, registering it in
// the pending table before the caller puts bytes on the wire.
func (t *tracker) newSlot() (ID, chan outcome) {
	id := t.idGen()
	ch := make(chan outcome, 1)
	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()
	return id, ch
}

// cancel removes a slot without delivering to it, used when the send that
// would have populated it failed, or the caller gave up waiting.
func (t *tracker) cancel(id ID) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// deliver hands outcome to the waiter registered for id, if any. It
// reports whether a waiter was found, so callers can route otherwise
// invoke invalidIDResponseHandler.
func (t *tracker) deliver(id ID, o outcome) bool {
	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- o
	return true
}

// drainClosed delivers a closed outcome to every still-pending waiter,
// implementing §4.H's teardown rule and invariant 3 of §8.
func (t *tracker) drainClosed() {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[ID]chan outcome)
	t.mu.Unlock()

	for _, ch := range pending {
		ch <- outcome{closed: true}
	}
}
