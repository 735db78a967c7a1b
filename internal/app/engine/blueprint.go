package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/zkemail/paytox/internal/app/pipeline"
)

type Blueprint struct {
	spec BlueprintSpec
	keys *circuitKeys
}

func (b *Blueprint) ID() string { return b.spec.ID }

func (b *Blueprint) CreateProver(opts pipeline.ProverOptions) (pipeline.Prover, error) {
	if !opts.IsLocal {
		return nil, errors.New("in-process engine only creates local provers")
	}
	return &prover{blueprint: b}, nil
}

// proofHandle keeps what VerifyProof needs without reparsing the hex data.
type proofHandle struct {
	proof  groth16.Proof
	public witness.Witness
}

func (b *Blueprint) VerifyProof(ctx context.Context, proof *pipeline.LocalProof, _ pipeline.AuxRuntime) (pipeline.VerificationOutcome, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.VerificationOutcome{}, err
	}
	if proof == nil {
		return pipeline.VerificationOutcome{}, errors.New("nil proof")
	}
	handle, ok := proof.Handle.(*proofHandle)
	if !ok {
		return pipeline.VerificationOutcome{}, errors.New("proof was not produced by this engine")
	}

	if err := groth16.Verify(handle.proof, b.keys.vk, handle.public); err != nil {
		return pipeline.VerificationOutcome{Verified: false, Source: "local"}, nil
	}
	return pipeline.VerificationOutcome{Verified: true, Source: "local"}, nil
}

type prover struct {
	blueprint *Blueprint
}

func (p *prover) GenerateProof(ctx context.Context, artifact []byte, inputs []pipeline.ExternalInput, _ pipeline.AuxRuntime) (*pipeline.LocalProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	domain, err := senderDomain(artifact)
	if err != nil {
		return nil, err
	}
	if !p.blueprint.accepts(domain) {
		return nil, fmt.Errorf("email from %s does not match blueprint %s", domain, p.blueprint.spec.ID)
	}

	command := commandInput(inputs)
	if command == "" {
		return nil, errors.New("missing command input")
	}
	if limit := p.blueprint.spec.MaxCommandSize; limit > 0 && len(command) > limit {
		return nil, fmt.Errorf("command longer than %d bytes", limit)
	}

	digest := hashToField(artifact)
	domainHash := hashToField([]byte(domain))
	commandHash := hashToField([]byte(command))

	assignment := ClaimCircuit{
		Binding:          toBig(binding(digest, domainHash, commandHash)),
		SenderDomainHash: toBig(domainHash),
		CommandHash:      toBig(commandHash),
		EmailDigest:      toBig(digest),
	}

	fullWitness, err := frontend.NewWitness(&assignment, CurveID.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("new witness: %w", err)
	}
	publicWitness, err := fullWitness.Public()
	if err != nil {
		return nil, fmt.Errorf("public witness: %w", err)
	}

	proof, err := groth16.Prove(p.blueprint.keys.ccs, p.blueprint.keys.pk, fullWitness)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteRawTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}

	outputs, err := publicOutputs(publicWitness)
	if err != nil {
		return nil, err
	}

	return &pipeline.LocalProof{
		ProofData:     "0x" + hex.EncodeToString(buf.Bytes()),
		PublicOutputs: outputs,
		Handle:        &proofHandle{proof: proof, public: publicWitness},
	}, nil
}

func (b *Blueprint) accepts(domain string) bool {
	for _, d := range b.spec.SenderDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func senderDomain(artifact []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(artifact))
	if err != nil {
		return "", fmt.Errorf("parse email: %w", err)
	}
	from, err := mail.ParseAddress(msg.Header.Get("From"))
	if err != nil {
		return "", fmt.Errorf("parse From header: %w", err)
	}
	at := strings.LastIndex(from.Address, "@")
	if at < 0 || at == len(from.Address)-1 {
		return "", fmt.Errorf("sender %q has no domain", from.Address)
	}
	return strings.ToLower(from.Address[at+1:]), nil
}

func commandInput(inputs []pipeline.ExternalInput) string {
	for _, in := range inputs {
		if in.Name == "command" {
			return strings.TrimSpace(in.Value)
		}
	}
	return ""
}

func publicOutputs(w witness.Witness) ([]string, error) {
	vec, ok := w.Vector().(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected witness vector type %T", w.Vector())
	}

	out := make([]string, len(vec))
	for i := range vec {
		out[i] = elementHex(vec[i])
	}
	return out, nil
}
