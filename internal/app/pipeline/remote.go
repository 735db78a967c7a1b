package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/zkemail/paytox/internal/app/claimerr"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

func (p *Pipeline) runRemote(ctx context.Context, r *run, req Request, blueprintID string) (ProofPayload, *VerificationOutcome, error) {
	r.schedule = remoteSchedule
	r.code = reasoncodes.ErrRemoteProving

	var (
		body     RemoteRequest
		response json.RawMessage
		payload  json.RawMessage
	)

	steps := []struct {
		step Step
		fn   func() error
	}{
		{StepReadArtifact, func() error {
			body.RawEmail = string(req.Artifact)
			return nil
		}},
		{StepSendRemote, func() error {
			if p.deps.Remote == nil {
				return errors.New("no remote prover configured")
			}
			body.BlueprintSlug = blueprintID
			body.Command = strings.TrimSpace(req.Command)
			return nil
		}},
		{StepRemoteGenerate, func() (err error) {
			response, err = p.deps.Remote.Prove(ctx, req.RemoteEndpoint, body)
			return err
		}},
		{StepProcessResponse, func() (err error) {
			payload, err = checkRemoteResponse(response)
			return err
		}},
	}

	for _, s := range steps {
		if err := r.do(s.step, s.fn); err != nil {
			return ProofPayload{}, nil, err
		}
	}

	// the service verifies before answering; a 2xx answer is treated as verified
	return ProofPayload{Remote: payload}, &VerificationOutcome{Verified: true, Source: "remote"}, nil
}

// checkRemoteResponse requires a JSON object and returns a compacted copy.
func checkRemoteResponse(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, claimerr.New(reasoncodes.ErrInvalidRemoteResponse, "Remote prover returned a non-object response")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, claimerr.Wrap(reasoncodes.ErrInvalidRemoteResponse, err)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, claimerr.Wrap(reasoncodes.ErrInvalidRemoteResponse, err)
	}
	return buf.Bytes(), nil
}
