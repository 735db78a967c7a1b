package pipeline

import (
	"context"
	"errors"

	"github.com/zkemail/paytox/internal/app/claimerr"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

// Submit relays the current proof. On failure the proof is kept so the caller
// can retry.
func (p *Pipeline) Submit(ctx context.Context) (*SubmissionResult, error) {
	p.mu.Lock()
	if p.submitting {
		p.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	proof := p.proof
	if proof == nil {
		noProof := claimerr.New(reasoncodes.ErrNoProof, "No proof available to submit")
		p.lastErr = noProof
		p.mu.Unlock()

		p.emit(Event{Kind: EventSubmissionFailed, Error: noProof})
		return nil, noProof
	}
	epoch := p.epoch
	p.submitting = true
	p.step = StepSubmitOnchain
	p.lastErr = nil
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.epoch == epoch {
			p.submitting = false
		}
		p.mu.Unlock()
	}()

	p.emit(Event{Kind: EventSubmissionStart, Step: StepSubmitOnchain, Progress: 100, ProofID: proofRef(proof.ID)})
	p.log.Infof("Submitting proof %s to %s", proof.ID, proof.Entrypoint.Hex())

	receipt, err := p.relay(ctx, proof)
	if err != nil {
		return nil, p.submitFailed(epoch, proof, err)
	}

	result := &SubmissionResult{
		ProofID:          proof.ID,
		RelayOperationID: receipt.OperationID,
		TransactionHash:  receipt.TransactionHash,
		AccountAddress:   receipt.AccountAddress,
		SubmittedAt:      p.now().UTC(),
	}

	p.mu.Lock()
	current := p.epoch == epoch && p.proof == proof
	if current {
		p.submission = result
		p.step = StepSubmitComplete
	}
	p.mu.Unlock()

	if !current {
		p.log.Warnf("Submission for proof %s finished after the session moved on", proof.ID)
		return result, nil
	}

	p.log.Infof("Proof %s submitted: userOp %s tx %s", proof.ID, receipt.OperationID, receipt.TransactionHash)
	p.emit(Event{Kind: EventSubmissionDone, Step: StepSubmitComplete, Progress: 100, ProofID: proofRef(proof.ID), Submission: result})
	return result, nil
}

func (p *Pipeline) relay(ctx context.Context, proof *ProofResult) (RelayReceipt, error) {
	if p.deps.Relay == nil {
		return RelayReceipt{}, errors.New("no relay configured")
	}

	proofData, publicOutputs, err := ExtractCalldata(proof)
	if err != nil {
		return RelayReceipt{}, err
	}

	return p.deps.Relay.SubmitProof(ctx, proofData, publicOutputs, proof.Entrypoint)
}

func (p *Pipeline) submitFailed(epoch uint64, proof *ProofResult, err error) error {
	code := reasoncodes.ErrSubmissionFailed
	if errors.Is(err, ErrRelayTimeout) || errors.Is(err, context.DeadlineExceeded) {
		code = reasoncodes.ErrSubmissionTimeout
	}
	ce := claimerr.Wrap(code, err)

	p.mu.Lock()
	current := p.epoch == epoch && p.proof == proof
	if current {
		p.lastErr = ce
		p.step = StepSubmitFailed
	}
	p.mu.Unlock()

	p.log.Error(err, "Submission failed")
	if current {
		p.emit(Event{Kind: EventSubmissionFailed, Step: StepSubmitFailed, Progress: 100, ProofID: proofRef(proof.ID), Error: ce})
	}
	return ce
}
