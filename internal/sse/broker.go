// Package sse streams vault change notifications to browsers and remote
// note clients as Server-Sent Events.
//
// Every frame carries an event name and a JSON payload. Note frames name the
// note id; tree.updated has an empty payload and is rate limited, since one
// bulk edit on disk can touch many notes at once.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/ansuz/internal/index"
)

// Event names written to the stream.
const (
	TypeNoteCreated = "note.created"
	TypeNoteUpdated = "note.updated"
	TypeNoteDeleted = "note.deleted"
	TypeTreeUpdated = "tree.updated"
)

// Event is one stream frame before encoding.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// frame encodes e in the text/event-stream wire form.
func (e Event) frame() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

// hub is the subscriber set. Only the broker goroutine touches it.
type hub struct {
	subs     map[chan []byte]struct{}
	treeMin  time.Duration
	lastTree time.Time
}

func (h *hub) add(ch chan []byte) { h.subs[ch] = struct{}{} }

func (h *hub) remove(ch chan []byte) {
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// send fans e out to every subscriber. A subscriber whose buffer is full
// misses the frame.
func (h *hub) send(e Event) {
	raw, err := e.frame()
	if err != nil {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- raw:
		default:
		}
	}
}

// noteChanged sends the note frame for a vault change, then tree.updated
// unless one went out within treeMin.
func (h *hub) noteChanged(kind, id string, now time.Time) {
	var typ string
	switch kind {
	case index.ChangeCreated:
		typ = TypeNoteCreated
	case index.ChangeUpdated:
		typ = TypeNoteUpdated
	case index.ChangeDeleted:
		typ = TypeNoteDeleted
	default:
		return
	}
	h.send(Event{Type: typ, Data: map[string]string{"id": id}})

	if now.Sub(h.lastTree) < h.treeMin {
		return
	}
	h.lastTree = now
	h.send(Event{Type: TypeTreeUpdated, Data: map[string]string{}})
}

func (h *hub) shutdown() {
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}

// Broker serialises all hub access onto one goroutine. Callers hand it
// operations over ops; after Close every method is a no-op.
type Broker struct {
	keepAlive time.Duration

	ops     chan func(*hub)
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. treeThrottle is the minimum gap between
// tree.updated frames and keepAlive the ping interval on idle streams;
// non-positive values fall back to 2s and 25s.
func NewBroker(treeThrottle, keepAlive time.Duration) *Broker {
	if treeThrottle <= 0 {
		treeThrottle = 2 * time.Second
	}
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	b := &Broker{
		keepAlive: keepAlive,
		ops:       make(chan func(*hub), 256),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	h := &hub{subs: make(map[chan []byte]struct{}), treeMin: treeThrottle}
	go b.loop(h)
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.stopped)
	defer h.shutdown()
	for {
		select {
		case <-b.stopCh:
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// post queues op without waiting for it to run.
func (b *Broker) post(op func(*hub)) {
	if b.closed.Load() {
		return
	}
	select {
	case b.ops <- op:
	case <-b.stopped:
	}
}

// do runs op on the broker goroutine and waits for it. It reports false if
// the broker stopped first.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	done := make(chan struct{})
	select {
	case b.ops <- func(h *hub) { op(h); close(done) }:
	case <-b.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-b.stopped:
		// done closes before stopped when op ran.
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// Close stops the broker and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a new stream. The returned channel is closed on
// Unsubscribe or Close, and immediately if the broker is already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if !b.do(func(h *hub) { h.add(ch) }) {
		close(ch)
	}
	return ch
}

// Unsubscribe drops ch and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) { h.remove(ch) })
}

// ClientCount returns the number of open streams.
func (b *Broker) ClientCount() int {
	var n int
	if !b.do(func(h *hub) { n = len(h.subs) }) {
		return 0
	}
	return n
}

// Publish sends an arbitrary event to every stream.
func (b *Broker) Publish(event Event) {
	b.post(func(h *hub) { h.send(event) })
}

// PublishNoteEvent announces a vault change. Its signature matches both
// noteservice.ChangeHook and index.EventCallback; unknown kinds are dropped.
func (b *Broker) PublishNoteEvent(kind, id string) {
	now := time.Now()
	b.post(func(h *hub) { h.noteChanged(kind, id, now) })
}

// ServeHTTP serves GET /api/events until the client goes away or the broker
// closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	for {
		var msg []byte
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			msg = []byte(": ping\n\n")
		case frame, open := <-ch:
			if !open {
				return
			}
			msg = frame
		}
		_, _ = w.Write(msg)
		flusher.Flush()
	}
}
