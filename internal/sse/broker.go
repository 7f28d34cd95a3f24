// Package sse streams knowledge base change notifications as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types emitted by the broker.
const (
	TypeItemCreated       = "item.created"
	TypeItemUpdated       = "item.updated"
	TypeItemDeleted       = "item.deleted"
	TypeItemsLoaded       = "items.loaded"
	TypeCollectionUpdated = "collection.updated"
)

const (
	defaultThrottle  = 2 * time.Second
	defaultKeepAlive = 25 * time.Second
	clientBuffer     = 64
	retryMillis      = 3000
)

// Event is a single SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type change struct {
	kind string
	id   string
}

// Option configures a Broker.
type Option func(*Broker)

// WithKeepAlive sets the interval of comment frames written to idle
// streams. Zero or negative disables them.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// Broker fans events out to connected clients. A single loop goroutine owns
// the hub; exported methods reach it over channels.
type Broker struct {
	throttle  time.Duration
	keepAlive time.Duration

	joinCh   chan chan []byte
	leaveCh  chan chan []byte
	eventCh  chan Event
	changeCh chan change
	countCh  chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. throttle bounds how often collection.updated
// follows item changes.
func NewBroker(throttle time.Duration, opts ...Option) *Broker {
	if throttle <= 0 {
		throttle = defaultThrottle
	}
	b := &Broker{
		throttle:  throttle,
		keepAlive: defaultKeepAlive,
		joinCh:    make(chan chan []byte),
		leaveCh:   make(chan chan []byte),
		eventCh:   make(chan Event, 256),
		changeCh:  make(chan change, 256),
		countCh:   make(chan chan int),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

// hub is the state owned by the loop goroutine.
type hub struct {
	clients        map[chan []byte]struct{}
	seq            uint64
	throttle       time.Duration
	lastCollection time.Time
}

// frame encodes ev with the next sequence id.
func (h *hub) frame(ev Event) ([]byte, bool) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, false
	}
	h.seq++
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, ev.Type, payload)), true
}

func (h *hub) broadcast(ev Event) {
	raw, ok := h.frame(ev)
	if !ok {
		return
	}
	for ch := range h.clients {
		select {
		case ch <- raw:
		default:
			// Slow client, drop the frame.
		}
	}
}

// apply turns a store change into SSE events. Unknown kinds are ignored.
func (h *hub) apply(c change, now time.Time) {
	switch c.kind {
	case TypeItemCreated, TypeItemUpdated, TypeItemDeleted:
		h.broadcast(Event{Type: c.kind, Data: map[string]string{"id": c.id}})
	case TypeItemsLoaded:
		h.broadcast(Event{Type: c.kind, Data: map[string]string{}})
	default:
		return
	}
	if now.Sub(h.lastCollection) < h.throttle {
		return
	}
	h.lastCollection = now
	h.broadcast(Event{Type: TypeCollectionUpdated, Data: map[string]string{}})
}

func (h *hub) closeAll() {
	for ch := range h.clients {
		close(ch)
	}
	h.clients = nil
}

func (b *Broker) loop() {
	defer close(b.stopped)
	h := &hub{clients: make(map[chan []byte]struct{}), throttle: b.throttle}

	for {
		select {
		case <-b.stopCh:
			h.closeAll()
			return
		case ch := <-b.joinCh:
			h.clients[ch] = struct{}{}
		case ch := <-b.leaveCh:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case ev := <-b.eventCh:
			h.broadcast(ev)
		case c := <-b.changeCh:
			h.apply(c, time.Now())
		case resp := <-b.countCh:
			resp <- len(h.clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed when the
// client is unsubscribed or the broker stops.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.joinCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leaveCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an arbitrary event to all clients.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- ev:
	case <-b.stopped:
	}
}

// PublishItemEvent reports a store change. Its signature matches
// store.ChangeFunc so it can be registered directly.
func (b *Broker) PublishItemEvent(kind, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- change{kind: kind, id: id}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: " + strconv.Itoa(retryMillis) + "\n\n"))
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
