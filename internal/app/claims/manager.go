package claims

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/pkg/logger"
)

const handlerTimeout = 10 * time.Second

type Option func(*Manager)

func WithEnvironment(env pipeline.Environment) Option {
	return func(m *Manager) { m.env = env }
}

func WithHandlers(handlers ...EventHandler) Option {
	return func(m *Manager) { m.handlers = append(m.handlers, handlers...) }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type Manager struct {
	deps     pipeline.Deps
	env      pipeline.Environment
	handlers []EventHandler
	log      *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps pipeline.Deps, opts ...Option) *Manager {
	m := &Manager{
		deps:     deps,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrDefault(m.log).Named("claims")
	return m
}

func (m *Manager) Create() *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: m.now().UTC(),
		log:       m.log,
		now:       m.now,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.pipeline = pipeline.New(m.deps,
		pipeline.WithLogger(m.log),
		pipeline.WithEnvironment(m.env),
		pipeline.WithClock(m.now),
		pipeline.WithSink(pipeline.SinkFunc(func(e pipeline.Event) { m.dispatch(s, e) })),
	)
	s.touch()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Debugf("created claim session %s", s.ID)
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	s.touch()
	return s, nil
}

func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

// EvictIdle closes sessions not touched within maxIdle. Sessions with a run
// or a submission in flight are kept.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if !s.LastSeen().Before(cutoff) {
			continue
		}
		if s.pipeline.Running() || s.pipeline.Snapshot().Submitting {
			continue
		}
		idle = append(idle, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
	}
	return len(idle)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes every session and waits for their background work.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range all {
		s.close()
		s.Wait()
	}
}

func (m *Manager) dispatch(s *Session, pe pipeline.Event) {
	if len(m.handlers) == 0 {
		return
	}

	e := Event{SessionID: s.ID, Event: pe}
	if pe.Kind == pipeline.EventSucceeded {
		if proof := s.pipeline.Snapshot().Proof; proof != nil && pe.ProofID != nil && proof.ID == *pe.ProofID {
			e.BlueprintID = proof.BlueprintID
			e.Mode = proof.Mode
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	for _, h := range m.handlers {
		if err := h.Handle(ctx, e); err != nil {
			m.log.Errorf(err, "event handler failed for session %s (%s)", s.ID, pe.Kind)
		}
	}
}
