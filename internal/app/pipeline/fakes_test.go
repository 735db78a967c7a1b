package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zkemail/paytox/internal/app/pipeline"
)

const sampleEmail = "From: info@x.com\r\n" +
	"To: alice@example.com\r\n" +
	"Subject: Password reset request\r\n" +
	"\r\n" +
	"Reset your password for @alice_x\r\n"

// fakeEngine implements every engine collaborator. failAt makes the matching
// step return an error; gate, when set, blocks proof generation until closed.
type fakeEngine struct {
	mu       sync.Mutex
	failAt   pipeline.Step
	gate     chan struct{}
	entered  chan struct{}
	verified bool
	inputs   []pipeline.ExternalInput
	env      pipeline.Environment
	loads    int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{verified: true}
}

func (f *fakeEngine) fail(step pipeline.Step) error {
	if f.failAt == step {
		return errors.New("engine exploded")
	}
	return nil
}

func (f *fakeEngine) Load(_ context.Context, env pipeline.Environment) (pipeline.Engine, error) {
	f.mu.Lock()
	f.loads++
	f.env = env
	f.mu.Unlock()
	if err := f.fail(pipeline.StepLoadEngine); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *fakeEngine) Init(context.Context) error { return f.fail(pipeline.StepInitEngine) }

func (f *fakeEngine) FetchBlueprint(_ context.Context, id string) (pipeline.Blueprint, error) {
	if err := f.fail(pipeline.StepFetchBlueprint); err != nil {
		return nil, err
	}
	return &fakeBlueprint{engine: f, id: id}, nil
}

func (f *fakeEngine) InitAuxRuntime(context.Context) (pipeline.AuxRuntime, error) {
	if err := f.fail(pipeline.StepInitAuxRuntime); err != nil {
		return nil, err
	}
	return fakeAux{}, nil
}

type fakeAux struct{}

func (fakeAux) Name() string { return "fake" }

type fakeBlueprint struct {
	engine *fakeEngine
	id     string
}

func (b *fakeBlueprint) ID() string { return b.id }

func (b *fakeBlueprint) CreateProver(pipeline.ProverOptions) (pipeline.Prover, error) {
	if err := b.engine.fail(pipeline.StepCreateProver); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *fakeBlueprint) GenerateProof(ctx context.Context, _ []byte, inputs []pipeline.ExternalInput, _ pipeline.AuxRuntime) (*pipeline.LocalProof, error) {
	b.engine.mu.Lock()
	b.engine.inputs = inputs
	gate, entered := b.engine.gate, b.engine.entered
	b.engine.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	if err := b.engine.fail(pipeline.StepGenerateProof); err != nil {
		return nil, err
	}
	return &pipeline.LocalProof{
		ProofData:     "0xabcdef",
		PublicOutputs: []string{"0x01", "0x02"},
	}, nil
}

func (b *fakeBlueprint) VerifyProof(context.Context, *pipeline.LocalProof, pipeline.AuxRuntime) (pipeline.VerificationOutcome, error) {
	if err := b.engine.fail(pipeline.StepVerifyProof); err != nil {
		return pipeline.VerificationOutcome{}, err
	}
	return pipeline.VerificationOutcome{Verified: b.engine.verified}, nil
}

type remoteFunc func(ctx context.Context, endpoint string, req pipeline.RemoteRequest) (json.RawMessage, error)

func (f remoteFunc) Prove(ctx context.Context, endpoint string, req pipeline.RemoteRequest) (json.RawMessage, error) {
	return f(ctx, endpoint, req)
}

type fakeRelay struct {
	mu         sync.Mutex
	calls      int
	proofData  string
	outputs    []string
	entrypoint common.Address
	err        error
	gate       chan struct{}
	entered    chan struct{}
}

func (r *fakeRelay) SubmitProof(_ context.Context, proofData string, outputs []string, entrypoint common.Address) (pipeline.RelayReceipt, error) {
	r.mu.Lock()
	r.calls++
	r.proofData, r.outputs, r.entrypoint = proofData, outputs, entrypoint
	err, gate, entered := r.err, r.gate, r.entered
	r.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return pipeline.RelayReceipt{}, err
	}
	return pipeline.RelayReceipt{
		OperationID:     "0xop",
		TransactionHash: "0xtx",
		AccountAddress:  common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func (r *recorder) Notify(e pipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, e := range r.events {
		if e.Kind == pipeline.EventProgress {
			out = append(out, e.Progress)
		}
	}
	return out
}

func (r *recorder) kinds() []pipeline.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pipeline.EventKind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}
