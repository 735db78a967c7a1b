package claimstore

import "time"

// AuthOutcome is the result of a top-level auth redirect, parked until the
// browser that started it reads it once.
type AuthOutcome struct {
	SessionKey   string `gorm:"primaryKey"`
	ProofID      string
	ErrorMessage string
	CreatedAt    time.Time `gorm:"index"`
}

func (o AuthOutcome) Succeeded() bool { return o.ProofID != "" }

const (
	StatusProved    = "proved"
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
)

// ClaimRecord is one line of the claim ledger: a proof and what became of it.
type ClaimRecord struct {
	ProofID          string `gorm:"primaryKey"`
	SessionID        string `gorm:"index"`
	BlueprintID      string
	Mode             string
	Status           string
	RelayOperationID string
	TransactionHash  string
	AccountAddress   string
	ErrorCode        string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func Models() []any {
	return []any{&AuthOutcome{}, &ClaimRecord{}}
}
