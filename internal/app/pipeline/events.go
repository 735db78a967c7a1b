package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/zkemail/paytox/internal/app/claimerr"
)

type EventKind string

const (
	EventProgress         EventKind = "progress"
	EventSucceeded        EventKind = "succeeded"
	EventFailed           EventKind = "failed"
	EventSubmissionStart  EventKind = "submission_started"
	EventSubmissionDone   EventKind = "submission_completed"
	EventSubmissionFailed EventKind = "submission_failed"
	EventReset            EventKind = "reset"
)

type Event struct {
	Kind       EventKind         `json:"kind"`
	Step       Step              `json:"step,omitempty"`
	Progress   int               `json:"progress"`
	ProofID    *uuid.UUID        `json:"proof_id,omitempty"`
	Submission *SubmissionResult `json:"submission,omitempty"`
	Error      *claimerr.Error   `json:"error,omitempty"`
	At         time.Time         `json:"at"`
}

func proofRef(id uuid.UUID) *uuid.UUID { return &id }

// EventSink observes pipeline transitions. Notify is called synchronously, in
// order, outside the pipeline lock; slow sinks slow the run down.
type EventSink interface {
	Notify(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Notify(e Event) { f(e) }
