package pipeline

import (
	"context"
	"errors"
	"strings"

	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

var errNoEngine = errors.New("no proof engine configured")

func (p *Pipeline) runLocal(ctx context.Context, r *run, req Request, blueprintID string) (ProofPayload, *VerificationOutcome, error) {
	r.schedule = localSchedule
	r.code = reasoncodes.ErrEngineFailure

	var (
		artifact  []byte
		engine    Engine
		blueprint Blueprint
		prover    Prover
		aux       AuxRuntime
		proof     *LocalProof
		outcome   VerificationOutcome
	)

	steps := []struct {
		step Step
		fn   func() error
	}{
		{StepReadArtifact, func() error {
			artifact = cloneArtifact(req.Artifact)
			return nil
		}},
		{StepLoadEngine, func() (err error) {
			if p.deps.Engine == nil {
				return errNoEngine
			}
			engine, err = p.deps.Engine.Load(ctx, p.env)
			return err
		}},
		{StepInitEngine, func() error {
			return engine.Init(ctx)
		}},
		{StepFetchBlueprint, func() (err error) {
			blueprint, err = engine.FetchBlueprint(ctx, blueprintID)
			return err
		}},
		{StepCreateProver, func() (err error) {
			prover, err = blueprint.CreateProver(ProverOptions{IsLocal: true})
			return err
		}},
		{StepInitAuxRuntime, func() (err error) {
			aux, err = engine.InitAuxRuntime(ctx)
			return err
		}},
		{StepGenerateProof, func() (err error) {
			inputs := []ExternalInput{{Name: "command", Value: strings.TrimSpace(req.Command)}}
			proof, err = prover.GenerateProof(ctx, artifact, inputs, aux)
			if err == nil && proof == nil {
				err = errors.New("engine returned no proof")
			}
			return err
		}},
		{StepVerifyProof, func() (err error) {
			outcome, err = blueprint.VerifyProof(ctx, proof, aux)
			return err
		}},
	}

	for _, s := range steps {
		if err := r.do(s.step, s.fn); err != nil {
			return ProofPayload{}, nil, err
		}
	}

	if !outcome.Verified {
		p.log.Warnf("Blueprint %s rejected its own proof during off-chain verification", blueprintID)
	}
	if outcome.Source == "" {
		outcome.Source = "local"
	}

	return ProofPayload{Local: proof}, &outcome, nil
}
