// Package pipeline turns an email artifact and a command into a proof, either
// in-process through a proof engine or through a remote proving service, and
// submits that proof to the relay. A Pipeline holds the state of one claim
// session; all mutations happen under its lock while the slow work runs
// outside of it.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zkemail/paytox/internal/app/claimerr"
	"github.com/zkemail/paytox/pkg/logger"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
	"github.com/zkemail/paytox/pkg/utilities"
)

var (
	ErrRunInProgress    = errors.New("a proof run is already in progress")
	ErrSubmitInProgress = errors.New("a submission is already in progress")
	ErrRunDetached      = errors.New("run was reset before it finished")
)

type Option func(*Pipeline)

func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func WithSink(sink EventSink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sink) }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithEnvironment(env Environment) Option {
	return func(p *Pipeline) { p.env = env }
}

type Pipeline struct {
	deps  Deps
	log   *logger.Logger
	sinks []EventSink
	now   func() time.Time
	env   Environment

	mu         sync.Mutex
	epoch      uint64
	running    bool
	submitting bool
	phase      Phase
	step       Step
	progress   int
	proof      *ProofResult
	submission *SubmissionResult
	lastErr    *claimerr.Error
}

func New(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		deps: deps,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrDefault(p.log).Named("pipeline")
	return p
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		Phase:      p.phase,
		Step:       p.step,
		Progress:   p.progress,
		Submitting: p.submitting,
	}
	if p.proof != nil {
		cp := *p.proof
		s.Proof = &cp
	}
	if p.submission != nil {
		cp := *p.submission
		s.Submission = &cp
	}
	if p.lastErr != nil {
		cp := *p.lastErr
		s.LastError = &cp
	}
	return s
}

// Running reports whether a run is in flight, including its final
// bookkeeping after the phase has already settled.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Reset returns the pipeline to idle. In-flight work keeps running but its
// results are discarded.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.epoch++
	p.running = false
	p.submitting = false
	p.phase = PhaseIdle
	p.step = ""
	p.progress = 0
	p.proof = nil
	p.submission = nil
	p.lastErr = nil
	p.mu.Unlock()

	p.emit(Event{Kind: EventReset})
}

// Run generates a proof for req and blocks until it is done. Only one run may
// be in flight at a time.
func (p *Pipeline) Run(ctx context.Context, req Request) (*ProofResult, error) {
	work, err := p.Prepare(req)
	if err != nil {
		return nil, err
	}
	return work(ctx)
}

// Prepare validates req and claims the run slot without doing any work. The
// returned function performs the run and must be called exactly once; until it
// returns, further Prepare and Run calls fail with ErrRunInProgress.
func (p *Pipeline) Prepare(req Request) (func(context.Context) (*ProofResult, error), error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrRunInProgress
	}
	if verr := validate(req); verr != nil {
		p.phase = PhaseFailed
		p.step = ""
		p.progress = 0
		p.proof = nil
		p.submission = nil
		p.lastErr = verr
		p.mu.Unlock()

		p.log.Warnf("Rejected proving request: %s", verr.Error())
		p.emit(Event{Kind: EventFailed, Error: verr})
		return nil, verr
	}

	p.epoch++
	r := &run{p: p, epoch: p.epoch}
	p.running = true
	p.phase = PhaseRunning
	p.step = ""
	p.progress = 0
	p.proof = nil
	p.submission = nil
	p.lastErr = nil
	p.mu.Unlock()

	return func(ctx context.Context) (*ProofResult, error) {
		defer r.finish()
		return p.execute(ctx, r, req)
	}, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run, req Request) (*ProofResult, error) {
	blueprintID := utilities.FirstNonEmpty(strings.TrimSpace(req.BlueprintID), DefaultBlueprint)

	var (
		payload      ProofPayload
		verification *VerificationOutcome
		err          error
	)
	if req.Mode == ModeRemote {
		if strings.TrimSpace(req.RemoteEndpoint) == "" {
			return nil, r.fail(claimerr.New(reasoncodes.ErrMissingEndpoint, "Remote proving endpoint is not configured"))
		}
		payload, verification, err = p.runRemote(ctx, r, req, blueprintID)
	} else {
		payload, verification, err = p.runLocal(ctx, r, req, blueprintID)
	}
	if errors.Is(err, ErrRunDetached) {
		return nil, err
	}
	if err != nil {
		return nil, r.fail(err)
	}

	mode := req.Mode
	if mode != ModeRemote {
		mode = ModeLocal
	}
	result := &ProofResult{
		ID:           uuid.New(),
		BlueprintID:  blueprintID,
		Mode:         mode,
		Payload:      payload,
		Verification: verification,
		Entrypoint:   req.Entrypoint,
		CreatedAt:    p.now().UTC(),
	}
	if !r.succeed(result) {
		return nil, ErrRunDetached
	}
	return result, nil
}

func (p *Pipeline) emit(e Event) {
	if e.At.IsZero() {
		e.At = p.now().UTC()
	}
	for _, sink := range p.sinks {
		sink.Notify(e)
	}
}

// run tracks one Run call. Writes made through it are dropped once Reset has
// moved the pipeline to a newer epoch.
type run struct {
	p        *Pipeline
	epoch    uint64
	schedule []milestone
	code     reasoncodes.ReasonCode
	step     Step
}

// do advances to step and executes fn, classifying plain errors with r.code.
func (r *run) do(step Step, fn func() error) error {
	if !r.advance(step) {
		return ErrRunDetached
	}
	if err := fn(); err != nil {
		if _, ok := claimerr.As(err); ok {
			return err
		}
		return claimerr.Wrap(r.code, err)
	}
	return nil
}

func (r *run) advance(step Step) bool {
	progress := progressOf(r.schedule, step)
	r.step = step

	r.p.mu.Lock()
	if r.p.epoch != r.epoch {
		r.p.mu.Unlock()
		return false
	}
	r.p.step = step
	if progress > r.p.progress {
		r.p.progress = progress
	}
	current := r.p.progress
	r.p.mu.Unlock()

	r.p.log.Debugf("step %s (%d%%)", step, current)
	r.p.emit(Event{Kind: EventProgress, Step: step, Progress: current})
	return true
}

func (r *run) fail(err error) error {
	ce, ok := claimerr.As(err)
	if !ok {
		ce = claimerr.Wrap(reasoncodes.ErrEngineFailure, err)
	}
	if ce.Step == "" && r.step != "" {
		ce = ce.AtStep(string(r.step))
	}

	r.p.mu.Lock()
	if r.p.epoch != r.epoch {
		r.p.mu.Unlock()
		return ce
	}
	r.p.phase = PhaseFailed
	r.p.lastErr = ce
	progress := r.p.progress
	r.p.mu.Unlock()

	r.p.log.Error(ce, "Proof generation failed")
	r.p.emit(Event{Kind: EventFailed, Step: r.step, Progress: progress, Error: ce})
	return ce
}

func (r *run) succeed(result *ProofResult) bool {
	r.p.mu.Lock()
	if r.p.epoch != r.epoch {
		r.p.mu.Unlock()
		return false
	}
	r.p.proof = result
	r.p.progress = 100
	r.p.phase = PhaseSucceeded
	r.p.mu.Unlock()

	r.p.log.Infof("Proof %s generated (%s, blueprint %s)", result.ID, result.Mode, result.BlueprintID)
	r.p.emit(Event{Kind: EventSucceeded, Step: r.step, Progress: 100, ProofID: proofRef(result.ID)})
	return true
}

func (r *run) finish() {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	if r.p.epoch == r.epoch {
		r.p.running = false
	}
}

func cloneArtifact(raw []byte) []byte {
	return bytes.Clone(raw)
}
