package handshake

import (
	"sync"
	"sync/atomic"
	"time"
)

// Bus is an in-process Channel. Post delivers to every subscriber present at
// the time of the call, outside the bus lock.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Message)
}

func NewBus() *Bus {
	return &Bus{subs: map[int]func(Message){}}
}

func (b *Bus) Subscribe(fn func(Message)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Post(m Message) {
	b.mu.Lock()
	subs := make([]func(Message), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(m)
	}
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// TrackedWindow stands in for a popup the server cannot observe directly. It
// is closed when the browser reports it closed, when the broker closes it, or
// once its deadline passes.
type TrackedWindow struct {
	closed   atomic.Bool
	deadline time.Time
	now      func() time.Time
}

func NewTrackedWindow(ttl time.Duration, now func() time.Time) *TrackedWindow {
	if now == nil {
		now = time.Now
	}
	w := &TrackedWindow{now: now}
	if ttl > 0 {
		w.deadline = now().Add(ttl)
	}
	return w
}

func (w *TrackedWindow) Closed() bool {
	if w.closed.Load() {
		return true
	}
	return !w.deadline.IsZero() && w.now().After(w.deadline)
}

func (w *TrackedWindow) Close() { w.closed.Store(true) }

// TrackedOpener hands out a fixed window. A nil window models a host that
// refuses to open one.
type TrackedOpener struct {
	Window *TrackedWindow
}

func (o TrackedOpener) Open(string) (Window, bool) {
	if o.Window == nil {
		return nil, false
	}
	return o.Window, true
}
