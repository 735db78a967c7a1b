package claims

import (
	"context"
	"errors"

	"github.com/zkemail/paytox/internal/app/claimstore"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/pkg/rabbitmq"
	"github.com/zkemail/paytox/pkg/utilities"
)

// Event is a pipeline event tagged with the session it came from.
type Event struct {
	SessionID   string        `json:"session_id"`
	BlueprintID string        `json:"blueprint_id,omitempty"`
	Mode        pipeline.Mode `json:"mode,omitempty"`
	pipeline.Event
}

func (e Event) Serialize() ([]byte, error) {
	return utilities.Serialize(e)
}

type EventHandler interface {
	Handle(ctx context.Context, e Event) error
}

type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// LedgerWriter keeps the claim ledger in step with the pipeline.
type LedgerWriter struct {
	repo claimstore.LedgerRepository
}

func NewLedgerWriter(repo claimstore.LedgerRepository) *LedgerWriter {
	return &LedgerWriter{repo: repo}
}

func (w *LedgerWriter) Handle(ctx context.Context, e Event) error {
	if e.ProofID == nil {
		return nil
	}
	switch e.Kind {
	case pipeline.EventSucceeded:
		return w.repo.RecordProof(ctx, claimstore.ClaimRecord{
			ProofID:     e.ProofID.String(),
			SessionID:   e.SessionID,
			BlueprintID: e.BlueprintID,
			Mode:        string(e.Mode),
			CreatedAt:   e.At,
		})
	case pipeline.EventSubmissionDone:
		if e.Submission == nil {
			return nil
		}
		return w.repo.MarkSubmitted(ctx, e.ProofID.String(),
			e.Submission.RelayOperationID,
			e.Submission.TransactionHash,
			e.Submission.AccountAddress.Hex(),
		)
	case pipeline.EventSubmissionFailed:
		var code, message string
		if e.Error != nil {
			code, message = string(e.Error.Code), e.Error.Reason()
		}
		return w.repo.MarkFailed(ctx, e.ProofID.String(), code, message)
	default:
		return nil
	}
}

var ErrNoPublisher = errors.New("no publisher configured for claim events")

// QueuePublisher forwards events to rabbitmq for the ledger consumer and any
// other listener.
type QueuePublisher struct {
	publisher rabbitmq.IRabbitmqPublisher
}

func NewQueuePublisher(publisher rabbitmq.IRabbitmqPublisher) *QueuePublisher {
	return &QueuePublisher{publisher: publisher}
}

func (q *QueuePublisher) Handle(ctx context.Context, e Event) error {
	if q.publisher == nil {
		return ErrNoPublisher
	}
	return q.publisher.Publish(ctx, e)
}
