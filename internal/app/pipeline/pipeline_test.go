package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zkemail/paytox/internal/app/claimerr"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/pkg/logger"
)

var entrypoint = common.HexToAddress("0x593403CF4fC2761360cCB214Fc0999fcd7Df3aC4")

func localRequest() pipeline.Request {
	return pipeline.Request{
		Artifact:     []byte(sampleEmail),
		ArtifactName: "reset.eml",
		Command:      "Withdraw all eth to 0x00000000000000000000000000000000000000bb",
		Mode:         pipeline.ModeLocal,
		Entrypoint:   entrypoint,
	}
}

func remoteRequest(endpoint string) pipeline.Request {
	req := localRequest()
	req.Mode = pipeline.ModeRemote
	req.RemoteEndpoint = endpoint
	req.BlueprintID = "zkemail/discord@v1"
	return req
}

func newPipeline(deps pipeline.Deps, rec *recorder) *pipeline.Pipeline {
	return pipeline.New(deps,
		pipeline.WithLogger(logger.Nop()),
		pipeline.WithSink(rec),
		pipeline.WithEnvironment(pipeline.Environment{Workers: 2}),
	)
}

func TestLocalRunReportsScheduleAndPublishesProof(t *testing.T) {
	engine := newFakeEngine()
	rec := &recorder{}
	p := newPipeline(pipeline.Deps{Engine: engine}, rec)

	result, err := p.Run(context.Background(), localRequest())
	require.NoError(t, err)

	assert.Equal(t, []int{5, 10, 20, 30, 40, 50, 60, 90}, rec.progress())
	assert.Equal(t, pipeline.EventSucceeded, rec.kinds()[len(rec.kinds())-1])

	snap := p.Snapshot()
	assert.Equal(t, pipeline.PhaseSucceeded, snap.Phase)
	assert.Equal(t, 100, snap.Progress)
	assert.Nil(t, snap.LastError)
	require.NotNil(t, snap.Proof)
	assert.Equal(t, result.ID, snap.Proof.ID)
	assert.Equal(t, pipeline.DefaultBlueprint, snap.Proof.BlueprintID)
	assert.Equal(t, pipeline.ModeLocal, snap.Proof.Mode)
	require.NotNil(t, snap.Proof.Payload.Local)
	assert.Nil(t, snap.Proof.Payload.Remote)
	assert.Equal(t, &pipeline.VerificationOutcome{Verified: true, Source: "local"}, snap.Proof.Verification)

	require.Len(t, engine.inputs, 1)
	assert.Equal(t, "command", engine.inputs[0].Name)
	assert.Equal(t, 2, engine.env.Workers)
}

func TestValidationFailsBeforeAnyProgress(t *testing.T) {
	tests := []struct {
		name string
		edit func(*pipeline.Request)
		want error
	}{
		{"empty command", func(r *pipeline.Request) { r.Command = "   " }, claimerr.ErrEmptyCommand},
		{"wrong extension", func(r *pipeline.Request) { r.ArtifactName = "reset.txt" }, claimerr.ErrInvalidArtifact},
		{"not an email", func(r *pipeline.Request) { r.Artifact = []byte("just some text") }, claimerr.ErrInvalidArtifact},
		{"empty artifact", func(r *pipeline.Request) { r.Artifact = nil }, claimerr.ErrInvalidArtifact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			rec := &recorder{}
			p := newPipeline(pipeline.Deps{Engine: engine}, rec)

			req := localRequest()
			tt.edit(&req)
			_, err := p.Run(context.Background(), req)

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, rec.progress())
			assert.Zero(t, engine.loads)

			snap := p.Snapshot()
			assert.Equal(t, 0, snap.Progress)
			require.NotNil(t, snap.LastError)
			assert.ErrorIs(t, snap.LastError, tt.want)
		})
	}
}

func TestInvalidRerunClearsPreviousResult(t *testing.T) {
	relay := &fakeRelay{}
	p := newPipeline(pipeline.Deps{Engine: newFakeEngine(), Relay: relay}, &recorder{})
	_, err := p.Run(context.Background(), localRequest())
	require.NoError(t, err)
	_, err = p.Submit(context.Background())
	require.NoError(t, err)

	req := localRequest()
	req.Command = "  "
	_, err = p.Run(context.Background(), req)
	assert.ErrorIs(t, err, claimerr.ErrEmptyCommand)

	snap := p.Snapshot()
	assert.Equal(t, pipeline.PhaseFailed, snap.Phase)
	assert.Equal(t, 0, snap.Progress)
	assert.Nil(t, snap.Proof)
	assert.Nil(t, snap.Submission)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "Please provide a command", snap.LastError.Reason())

	_, err = p.Submit(context.Background())
	assert.ErrorIs(t, err, claimerr.ErrNoProof)
	assert.Equal(t, 1, relay.calls)
}

func TestEventsCarryProofIDOnlyOnceProven(t *testing.T) {
	rec := &recorder{}
	p := newPipeline(pipeline.Deps{Engine: newFakeEngine()}, rec)
	result, err := p.Run(context.Background(), localRequest())
	require.NoError(t, err)

	rec.mu.Lock()
	events := append([]pipeline.Event(nil), rec.events...)
	rec.mu.Unlock()
	require.NotEmpty(t, events)

	for _, e := range events {
		raw, err := json.Marshal(e)
		require.NoError(t, err)
		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &fields))

		_, has := fields["proof_id"]
		if e.Kind != pipeline.EventSucceeded {
			assert.False(t, has, "%s event should not carry a proof id", e.Kind)
			continue
		}
		require.NotNil(t, e.ProofID)
		assert.Equal(t, result.ID, *e.ProofID)
		assert.JSONEq(t, `"`+result.ID.String()+`"`, string(fields["proof_id"]))
	}
}

func TestRemoteWithoutEndpoint(t *testing.T) {
	rec := &recorder{}
	p := newPipeline(pipeline.Deps{}, rec)

	_, err := p.Run(context.Background(), remoteRequest(""))

	assert.ErrorIs(t, err, claimerr.ErrMissingEndpoint)
	assert.Empty(t, rec.progress())
	snap := p.Snapshot()
	assert.Equal(t, pipeline.PhaseFailed, snap.Phase)
	assert.Equal(t, 0, snap.Progress)
}

func TestEngineFailureIsAttributedToStep(t *testing.T) {
	engine := newFakeEngine()
	engine.failAt = pipeline.StepGenerateProof
	p := newPipeline(pipeline.Deps{Engine: engine}, &recorder{})

	_, err := p.Run(context.Background(), localRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, claimerr.ErrEngineFailure)
	assert.Equal(t, "engine exploded (at generate-proof)", err.Error())

	snap := p.Snapshot()
	assert.Equal(t, pipeline.PhaseFailed, snap.Phase)
	assert.Equal(t, 60, snap.Progress)
	assert.Nil(t, snap.Proof)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, string(pipeline.StepGenerateProof), snap.LastError.Step)
}

func TestRemoteRunSuccess(t *testing.T) {
	var got pipeline.RemoteRequest
	remote := remoteFunc(func(_ context.Context, endpoint string, req pipeline.RemoteRequest) (json.RawMessage, error) {
		assert.Equal(t, "https://prover.example/prove", endpoint)
		got = req
		return json.RawMessage(`{"props": {"proofData": "beef", "publicOutputs": ["0x01"]}}`), nil
	})
	rec := &recorder{}
	p := newPipeline(pipeline.Deps{Remote: remote}, rec)

	result, err := p.Run(context.Background(), remoteRequest("https://prover.example/prove"))
	require.NoError(t, err)

	assert.Equal(t, []int{5, 20, 40, 80}, rec.progress())
	assert.Equal(t, sampleEmail, got.RawEmail)
	assert.Equal(t, "zkemail/discord@v1", got.BlueprintSlug)
	assert.Equal(t, localRequest().Command, got.Command)

	assert.Nil(t, result.Payload.Local)
	assert.JSONEq(t, `{"props":{"proofData":"beef","publicOutputs":["0x01"]}}`, string(result.Payload.Remote))
	assert.Equal(t, &pipeline.VerificationOutcome{Verified: true, Source: "remote"}, result.Verification)
	assert.Equal(t, 100, p.Snapshot().Progress)
}

func TestRemoteServerError(t *testing.T) {
	remote := remoteFunc(func(context.Context, string, pipeline.RemoteRequest) (json.RawMessage, error) {
		return nil, claimerr.Remote(500, "prover crashed")
	})
	p := newPipeline(pipeline.Deps{Remote: remote}, &recorder{})

	_, err := p.Run(context.Background(), remoteRequest("https://prover.example/prove"))

	assert.ErrorIs(t, err, claimerr.ErrRemoteProving)
	assert.Equal(t, "Server error: 500 - prover crashed (at remote-generate)", err.Error())
	snap := p.Snapshot()
	assert.Equal(t, 40, snap.Progress)
	assert.Equal(t, 500, snap.LastError.Status)
	assert.Equal(t, "prover crashed", snap.LastError.Body)
}

func TestRemoteTransportErrorIsRemoteProving(t *testing.T) {
	remote := remoteFunc(func(context.Context, string, pipeline.RemoteRequest) (json.RawMessage, error) {
		return nil, errors.New("connection refused")
	})
	p := newPipeline(pipeline.Deps{Remote: remote}, &recorder{})

	_, err := p.Run(context.Background(), remoteRequest("https://prover.example/prove"))
	assert.ErrorIs(t, err, claimerr.ErrRemoteProving)
}

func TestRemoteNonObjectResponse(t *testing.T) {
	for _, body := range []string{`[1,2]`, `"proof"`, `{"broken"`} {
		remote := remoteFunc(func(context.Context, string, pipeline.RemoteRequest) (json.RawMessage, error) {
			return json.RawMessage(body), nil
		})
		p := newPipeline(pipeline.Deps{Remote: remote}, &recorder{})

		_, err := p.Run(context.Background(), remoteRequest("https://prover.example/prove"))

		assert.ErrorIs(t, err, claimerr.ErrInvalidRemoteResponse, body)
		assert.Equal(t, 80, p.Snapshot().Progress)
	}
}

func TestRunIsNotReentrant(t *testing.T) {
	engine := newFakeEngine()
	engine.gate = make(chan struct{})
	engine.entered = make(chan struct{})
	p := newPipeline(pipeline.Deps{Engine: engine}, &recorder{})

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), localRequest())
		done <- err
	}()
	<-engine.entered

	_, err := p.Run(context.Background(), localRequest())
	assert.ErrorIs(t, err, pipeline.ErrRunInProgress)
	assert.Equal(t, pipeline.PhaseRunning, p.Snapshot().Phase)

	close(engine.gate)
	require.NoError(t, <-done)
	assert.Equal(t, pipeline.PhaseSucceeded, p.Snapshot().Phase)
}

func TestResetDetachesInFlightRun(t *testing.T) {
	engine := newFakeEngine()
	engine.gate = make(chan struct{})
	engine.entered = make(chan struct{})
	rec := &recorder{}
	p := newPipeline(pipeline.Deps{Engine: engine}, rec)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), localRequest())
		done <- err
	}()
	<-engine.entered

	p.Reset()
	snap := p.Snapshot()
	assert.Equal(t, pipeline.PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Progress)

	close(engine.gate)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, pipeline.ErrRunDetached)
	case <-time.After(2 * time.Second):
		t.Fatal("detached run did not return")
	}

	snap = p.Snapshot()
	assert.Equal(t, pipeline.PhaseIdle, snap.Phase)
	assert.Nil(t, snap.Proof)
	assert.Nil(t, snap.LastError)
}

func TestNewRunClearsPreviousResults(t *testing.T) {
	engine := newFakeEngine()
	relay := &fakeRelay{}
	p := newPipeline(pipeline.Deps{Engine: engine, Relay: relay}, &recorder{})

	first, err := p.Run(context.Background(), localRequest())
	require.NoError(t, err)
	_, err = p.Submit(context.Background())
	require.NoError(t, err)

	engine.failAt = pipeline.StepInitEngine
	_, err = p.Run(context.Background(), localRequest())
	require.Error(t, err)

	snap := p.Snapshot()
	assert.Nil(t, snap.Proof, "proof %s must not survive a new run", first.ID)
	assert.Nil(t, snap.Submission)
	assert.Equal(t, 20, snap.Progress)
}

func TestReadersGetCopies(t *testing.T) {
	p := newPipeline(pipeline.Deps{Engine: newFakeEngine()}, &recorder{})
	_, err := p.Run(context.Background(), localRequest())
	require.NoError(t, err)

	snap := p.Snapshot()
	snap.Proof.BlueprintID = "tampered"
	snap.Progress = 3

	again := p.Snapshot()
	assert.Equal(t, pipeline.DefaultBlueprint, again.Proof.BlueprintID)
	assert.Equal(t, 100, again.Progress)
}
