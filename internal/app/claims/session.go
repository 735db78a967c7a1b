// Package claims keeps the claim sessions the HTTP API drives. Each session
// owns one pipeline; its runs and submissions execute in the background and
// their events fan out to the configured handlers.
package claims

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/pkg/logger"
)

var (
	ErrUnknownSession = errors.New("unknown claim session")
	ErrSessionClosed  = errors.New("claim session is closed")
)

type Session struct {
	ID        string
	CreatedAt time.Time

	pipeline *pipeline.Pipeline
	log      *logger.Logger
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	lastSeen atomic.Int64
	wg       sync.WaitGroup
}

func (s *Session) Snapshot() pipeline.Snapshot {
	return s.pipeline.Snapshot()
}

// Start runs req in the background. A run already in flight and an invalid
// request are reported immediately.
func (s *Session) Start(req pipeline.Request) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}

	s.touch()
	work, err := s.pipeline.Prepare(req)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := work(s.ctx); err != nil {
			s.log.Debugf("run for session %s ended: %v", s.ID, err)
		}
	}()
	return nil
}

// StartSubmit relays the current proof in the background. Without a proof
// the pipeline's NoProof error is returned synchronously.
func (s *Session) StartSubmit() error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	snap := s.pipeline.Snapshot()
	if snap.Submitting {
		return pipeline.ErrSubmitInProgress
	}
	if snap.Proof == nil {
		_, err := s.pipeline.Submit(s.ctx)
		return err
	}

	s.touch()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.pipeline.Submit(s.ctx); err != nil {
			s.log.Debugf("submission for session %s ended: %v", s.ID, err)
		}
	}()
	return nil
}

func (s *Session) Reset() {
	s.touch()
	s.pipeline.Reset()
}

// Wait blocks until the session's background work has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch() {
	s.lastSeen.Store(s.now().UnixNano())
}

func (s *Session) close() {
	s.cancel()
	s.pipeline.Reset()
}
