package index

import "sync"

// Signal names advertised by the built-in sub-indexers (§6, "Signals
// emitted"). The exact strings aren't prescribed by the spec; these
// are the ones this package emits.
const (
	SignalPageInserted = "page-inserted"
	SignalPageRemoved  = "page-removed"
	SignalPageUpdated  = "page-updated"
	SignalLinkInserted = "link-inserted"
	SignalLinkRemoved  = "link-removed"
	SignalTagInserted  = "tag-inserted"
	SignalTagRemoved   = "tag-removed"
)

// Handler receives a signal's payload (concrete type depends on the
// signal: *Page for page-inserted and page-updated, a struct with the
// removed row's Parent and Basename for page-removed, *Link for
// link-*, *Tag for tag-*).
type Handler func(payload any)

// handlerID identifies a registered handler for Disconnect.
type handlerID struct {
	signal string
	seq    int
}

// signalRegistry replaces the original's dynamic attribute probing
// (see DESIGN.md) with an explicit map from signal name to its
// registered handlers, keyed by registration sequence number; the
// order in which one signal's handlers run is not defined. Signals
// are buffered while a write transaction is open
// and flushed only after a successful commit, so a handler never
// observes an event from a transaction that later rolls back.
type signalRegistry struct {
	mu       sync.Mutex
	handlers map[string]map[int]Handler
	nextSeq  int
	pending  []pendingSignal
}

type pendingSignal struct {
	signal  string
	payload any
}

func newSignalRegistry() *signalRegistry {
	return &signalRegistry{handlers: make(map[string]map[int]Handler)}
}

// Connect registers handler for signal and returns an id for Disconnect.
func (r *signalRegistry) Connect(signal string, handler Handler) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSeq
	r.nextSeq++
	if r.handlers[signal] == nil {
		r.handlers[signal] = make(map[int]Handler)
	}
	r.handlers[signal][id] = handler
	return id
}

// Disconnect removes a previously registered handler. Safe to call
// with an id from any signal; it's a no-op if already removed.
func (r *signalRegistry) Disconnect(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.handlers {
		delete(m, id)
	}
}

// Queue buffers a signal for emission once the enclosing transaction
// commits. Call from within a write transaction only.
func (r *signalRegistry) Queue(signal string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, pendingSignal{signal, payload})
}

// Emit drains and fires every buffered signal, in the order they were
// queued. Call once, after a successful commit.
func (r *signalRegistry) Emit() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, p := range pending {
		r.mu.Lock()
		handlers := make([]Handler, 0, len(r.handlers[p.signal]))
		for _, h := range r.handlers[p.signal] {
			handlers = append(handlers, h)
		}
		r.mu.Unlock()
		for _, h := range handlers {
			h(p.payload)
		}
	}
}

// Discard drops any buffered signals without firing them. Call after
// a rollback.
func (r *signalRegistry) Discard() {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
}
