package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Environment describes the execution environment handed to the engine when it
// loads. Engines read what they need from it instead of probing process globals.
type Environment struct {
	Workers  int
	CacheDir string
	Values   map[string]string
}

type EngineLoader interface {
	Load(ctx context.Context, env Environment) (Engine, error)
}

type Engine interface {
	Init(ctx context.Context) error
	FetchBlueprint(ctx context.Context, id string) (Blueprint, error)
	InitAuxRuntime(ctx context.Context) (AuxRuntime, error)
}

type ProverOptions struct {
	IsLocal bool
}

type Blueprint interface {
	ID() string
	CreateProver(opts ProverOptions) (Prover, error)
	VerifyProof(ctx context.Context, proof *LocalProof, aux AuxRuntime) (VerificationOutcome, error)
}

// AuxRuntime is the auxiliary circuit runtime some engines need next to the prover.
type AuxRuntime interface {
	Name() string
}

type ExternalInput struct {
	Name      string
	Value     string
	MaxLength int
}

type Prover interface {
	GenerateProof(ctx context.Context, artifact []byte, inputs []ExternalInput, aux AuxRuntime) (*LocalProof, error)
}

type RemoteRequest struct {
	RawEmail      string `json:"rawEmail"`
	BlueprintSlug string `json:"blueprintSlug"`
	Command       string `json:"command"`
}

// RemoteProver posts a proving request and returns the raw response body.
// Non-success statuses must surface as *claimerr.Error built with claimerr.Remote.
type RemoteProver interface {
	Prove(ctx context.Context, endpoint string, req RemoteRequest) (json.RawMessage, error)
}

type RelayReceipt struct {
	OperationID     string
	TransactionHash string
	AccountAddress  common.Address
}

// ErrRelayTimeout is returned (wrapped) by relays whose receipt wait expired.
var ErrRelayTimeout = errors.New("timed out waiting for user operation receipt")

type Relay interface {
	SubmitProof(ctx context.Context, proofData string, publicOutputs []string, entrypoint common.Address) (RelayReceipt, error)
}

type Deps struct {
	Engine EngineLoader
	Remote RemoteProver
	Relay  Relay
}
