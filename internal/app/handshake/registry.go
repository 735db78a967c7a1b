package handshake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zkemail/paytox/internal/app/claimerr"
	"github.com/zkemail/paytox/pkg/logger"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

var ErrUnknownHandshake = errors.New("unknown handshake")

// Outcome is what a finished handshake resolved to.
type Outcome struct {
	State       State           `json:"state"`
	Credential  string          `json:"credential,omitempty"`
	Error       *claimerr.Error `json:"error,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Handshake is one server-side broker session. Its ID is also the OAuth
// state parameter, which is how the callback surface finds it again.
type Handshake struct {
	ID        string
	AuthURL   string
	CreatedAt time.Time

	bus    *Bus
	window *TrackedWindow
	broker *Broker

	mu      sync.Mutex
	outcome Outcome
	done    chan struct{}
}

func (h *Handshake) Outcome() Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

func (h *Handshake) Done() <-chan struct{} { return h.done }

// Wait blocks until the handshake settles or ctx ends.
func (h *Handshake) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.Outcome(), nil
	case <-ctx.Done():
		return h.Outcome(), ctx.Err()
	}
}

func (h *Handshake) settle(out Outcome) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome.State != StateAwaitingCompletion {
		return false
	}
	h.outcome = out
	close(h.done)
	return true
}

type RegistryOption func(*Registry)

func WithRegistryClock(c Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

func WithNow(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithRegistryLogger(l *logger.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// WithCompletionHook is called once per handshake after it settles.
func WithCompletionHook(fn func(h *Handshake, out Outcome)) RegistryOption {
	return func(r *Registry) { r.onComplete = fn }
}

type Registry struct {
	origin     string
	windowTTL  time.Duration
	clock      Clock
	now        func() time.Time
	log        *logger.Logger
	onComplete func(*Handshake, Outcome)

	mu    sync.Mutex
	items map[string]*Handshake
}

func NewRegistry(origin string, windowTTL time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		origin:    origin,
		windowTTL: windowTTL,
		clock:     RealClock{},
		now:       time.Now,
		items:     map[string]*Handshake{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrDefault(r.log).Named("handshake_registry")
	return r
}

func (r *Registry) Origin() string { return r.origin }

// Begin allocates a handshake id, builds the authorization URL around it and
// starts a broker waiting for the outcome.
func (r *Registry) Begin(buildURL func(state string) (string, error)) (*Handshake, error) {
	id := uuid.NewString()
	authURL, err := buildURL(id)
	if err != nil {
		return nil, err
	}

	h := &Handshake{
		ID:        id,
		AuthURL:   authURL,
		CreatedAt: r.now(),
		bus:       NewBus(),
		window:    NewTrackedWindow(r.windowTTL, r.now),
		outcome:   Outcome{State: StateAwaitingCompletion},
		done:      make(chan struct{}),
	}
	h.broker = NewBroker(r.origin, TrackedOpener{Window: h.window}, h.bus, Callbacks{
		OnSuccess: func(credential string) { r.settle(h, Outcome{State: StateSucceeded, Credential: credential}) },
		OnFailure: func(err error) { r.settle(h, failed(err)) },
	}, WithClock(r.clock), WithLogger(r.log))

	r.mu.Lock()
	r.items[id] = h
	r.mu.Unlock()

	if _, err := h.broker.Begin(authURL); err != nil {
		r.remove(id)
		return nil, err
	}
	return h, nil
}

func (r *Registry) Get(id string) (*Handshake, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.items[id]
	return h, ok
}

// Deliver posts m onto the bus of handshake id.
func (r *Registry) Deliver(id string, m Message) error {
	h, ok := r.Get(id)
	if !ok {
		return ErrUnknownHandshake
	}
	h.bus.Post(m)
	return nil
}

// MarkClosed records that the browser closed the authorization window. The
// broker notices on its next liveness tick.
func (r *Registry) MarkClosed(id string) error {
	h, ok := r.Get(id)
	if !ok {
		return ErrUnknownHandshake
	}
	h.window.Close()
	return nil
}

func (r *Registry) Teardown(id string) error {
	h, ok := r.Get(id)
	if !ok {
		return ErrUnknownHandshake
	}
	h.broker.Teardown()
	r.remove(id)
	return nil
}

// Evict tears down and forgets handshakes created more than maxAge ago.
func (r *Registry) Evict(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	var stale []*Handshake
	for id, h := range r.items {
		if h.CreatedAt.Before(cutoff) {
			stale = append(stale, h)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	for _, h := range stale {
		h.broker.Teardown()
	}
	return len(stale)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}

func (r *Registry) settle(h *Handshake, out Outcome) {
	at := r.now()
	out.CompletedAt = &at
	if h.settle(out) && r.onComplete != nil {
		r.onComplete(h, out)
	}
}

func failed(err error) Outcome {
	ce, ok := claimerr.As(err)
	if !ok {
		ce = claimerr.Wrap(reasoncodes.ErrInternal, err)
	}
	return Outcome{State: StateFailed, Error: ce}
}
