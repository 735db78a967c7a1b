// Package handshake brokers the out-of-band identity handshake: an
// authorization window is opened on an external provider, and the outcome
// comes back as a message posted from that window. The broker is written
// against small transport interfaces so the same state machine drives the
// in-process bus used by the HTTP server and the tests.
package handshake

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zkemail/paytox/internal/app/claimerr"
	"github.com/zkemail/paytox/pkg/logger"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

const DefaultPollInterval = time.Second

var ErrSessionActive = errors.New("a handshake session is already active")

type Window interface {
	Closed() bool
	Close()
}

type Opener interface {
	// Open returns false when the host refuses to create the window.
	Open(authURL string) (Window, bool)
}

type Channel interface {
	Subscribe(fn func(Message)) (unsubscribe func())
}

type Callbacks struct {
	OnSuccess func(credential string)
	OnFailure func(err error)
}

type State int

const (
	StateIdle State = iota
	StateAwaitingCompletion
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingCompletion:
		return "awaiting_completion"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for _, candidate := range []State{StateIdle, StateAwaitingCompletion, StateSucceeded, StateFailed} {
		if candidate.String() == string(b) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown handshake state %q", b)
}

type Session struct {
	ID        string
	AuthURL   string
	StartedAt time.Time
}

type BrokerOption func(*Broker)

func WithClock(c Clock) BrokerOption {
	return func(b *Broker) { b.clock = c }
}

func WithPollInterval(d time.Duration) BrokerOption {
	return func(b *Broker) { b.pollInterval = d }
}

func WithLogger(l *logger.Logger) BrokerOption {
	return func(b *Broker) { b.log = l }
}

type Broker struct {
	origin       string
	opener       Opener
	channel      Channel
	callbacks    Callbacks
	clock        Clock
	pollInterval time.Duration
	log          *logger.Logger

	mu      sync.Mutex
	state   State
	current *active
}

type active struct {
	session     Session
	window      Window
	ticker      Ticker
	unsubscribe func()
	stop        chan struct{}
}

type outcome struct {
	credential string
	err        error
}

func NewBroker(origin string, opener Opener, channel Channel, callbacks Callbacks, opts ...BrokerOption) *Broker {
	b := &Broker{
		origin:       origin,
		opener:       opener,
		channel:      channel,
		callbacks:    callbacks,
		clock:        RealClock{},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = logger.OrDefault(b.log).Named("handshake")
	return b
}

func (b *Broker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Begin opens the authorization window and starts listening for its outcome.
// A refused window is reported both as the returned error and through
// OnFailure.
func (b *Broker) Begin(authURL string) (*Session, error) {
	b.mu.Lock()
	if b.current != nil {
		b.mu.Unlock()
		return nil, ErrSessionActive
	}

	window, ok := b.opener.Open(authURL)
	if !ok {
		b.state = StateFailed
		b.mu.Unlock()
		err := claimerr.New(reasoncodes.ErrPopupBlocked, "")
		b.log.Warn("authorization window was blocked")
		b.fail(err)
		return nil, err
	}

	a := &active{
		session: Session{
			ID:        uuid.NewString(),
			AuthURL:   authURL,
			StartedAt: time.Now(),
		},
		window: window,
		stop:   make(chan struct{}),
	}
	a.unsubscribe = b.channel.Subscribe(func(m Message) { b.receive(a, m) })
	a.ticker = b.clock.NewTicker(b.pollInterval)
	b.current = a
	b.state = StateAwaitingCompletion
	b.mu.Unlock()

	go b.watch(a)

	b.log.Debugf("handshake %s started", a.session.ID)
	session := a.session
	return &session, nil
}

// Teardown releases the active session. A session torn down before it
// completed reports HandshakeAborted; otherwise Teardown does nothing.
func (b *Broker) Teardown() {
	b.mu.Lock()
	a := b.current
	if a == nil {
		b.mu.Unlock()
		return
	}
	b.current = nil
	b.state = StateFailed
	b.mu.Unlock()

	b.release(a)
	b.fail(claimerr.New(reasoncodes.ErrHandshakeAborted, ""))
}

func (b *Broker) watch(a *active) {
	for {
		select {
		case <-a.stop:
			return
		case <-a.ticker.C():
			if a.window.Closed() {
				b.complete(a, outcome{err: claimerr.New(reasoncodes.ErrUserCancelled, "")})
				return
			}
		}
	}
}

func (b *Broker) receive(a *active, m Message) {
	if m.Origin != b.origin {
		b.log.Debugf("ignoring message from origin %q", m.Origin)
		return
	}
	env, ok := ParseEnvelope(m.Data)
	if !ok {
		b.log.Debug("ignoring message with unrecognised payload")
		return
	}

	if env.Type == MessageSuccess {
		b.complete(a, outcome{credential: env.ProofID})
		return
	}
	b.complete(a, outcome{err: claimerr.New(reasoncodes.ErrProviderError, env.Error)})
}

// complete finishes a only if it is still the active session, so racing
// completion paths produce a single callback.
func (b *Broker) complete(a *active, out outcome) {
	b.mu.Lock()
	if b.current != a {
		b.mu.Unlock()
		return
	}
	b.current = nil
	if out.err != nil {
		b.state = StateFailed
	} else {
		b.state = StateSucceeded
	}
	b.mu.Unlock()

	b.release(a)

	if out.err != nil {
		b.log.Infof("handshake %s failed: %v", a.session.ID, out.err)
		b.fail(out.err)
		return
	}
	b.log.Infof("handshake %s succeeded", a.session.ID)
	if b.callbacks.OnSuccess != nil {
		b.callbacks.OnSuccess(out.credential)
	}
}

func (b *Broker) release(a *active) {
	close(a.stop)
	a.ticker.Stop()
	a.unsubscribe()
	if !a.window.Closed() {
		a.window.Close()
	}
}

func (b *Broker) fail(err error) {
	if b.callbacks.OnFailure != nil {
		b.callbacks.OnFailure(err)
	}
}
