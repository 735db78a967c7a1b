package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/zkemail/paytox/internal/app/claimerr"
)

// DefaultBlueprint is used when a request names none.
const DefaultBlueprint = "benceharomi/x_handle@v1"

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLocal, "":
		return ModeLocal, nil
	case ModeRemote:
		return ModeRemote, nil
	default:
		return "", fmt.Errorf("unknown proving mode %q", s)
	}
}

// Request describes one proof generation. It is passed by value and never
// modified by the pipeline.
type Request struct {
	Artifact       []byte
	ArtifactName   string
	Command        string
	BlueprintID    string
	Mode           Mode
	RemoteEndpoint string
	Entrypoint     common.Address
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseRunning, PhaseSucceeded, PhaseFailed} {
		if candidate.String() == string(b) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

type VerificationOutcome struct {
	Verified bool   `json:"verified"`
	Source   string `json:"source"`
}

// LocalProof is what the in-process engine produces. Handle is engine specific
// and only meaningful to the engine that made it.
type LocalProof struct {
	ProofData     string   `json:"proofData"`
	PublicOutputs []string `json:"publicOutputs"`
	Handle        any      `json:"-"`
}

// ProofPayload holds exactly one of Local or Remote.
type ProofPayload struct {
	Local  *LocalProof     `json:"local,omitempty"`
	Remote json.RawMessage `json:"remote,omitempty"`
}

type ProofResult struct {
	ID           uuid.UUID            `json:"id"`
	BlueprintID  string               `json:"blueprint_id"`
	Mode         Mode                 `json:"mode"`
	Payload      ProofPayload         `json:"payload"`
	Verification *VerificationOutcome `json:"verification,omitempty"`
	Entrypoint   common.Address       `json:"entrypoint"`
	CreatedAt    time.Time            `json:"created_at"`
}

type SubmissionResult struct {
	ProofID          uuid.UUID      `json:"proof_id"`
	RelayOperationID string         `json:"user_op_hash"`
	TransactionHash  string         `json:"tx_hash"`
	AccountAddress   common.Address `json:"account_address"`
	SubmittedAt      time.Time      `json:"submitted_at"`
}

// Snapshot is a copy of the pipeline state; mutating it has no effect on the pipeline.
type Snapshot struct {
	Phase      Phase             `json:"phase"`
	Step       Step              `json:"step,omitempty"`
	Progress   int               `json:"progress"`
	Proof      *ProofResult      `json:"proof,omitempty"`
	Submission *SubmissionResult `json:"submission,omitempty"`
	Submitting bool              `json:"submitting"`
	LastError  *claimerr.Error   `json:"last_error,omitempty"`
}
