package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

const (
	CurveID = ecc.BN254

	provingKeyFile   = "claim_circuit.pk"
	verifyingKeyFile = "claim_circuit.vk"
)

type circuitKeys struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// setupCircuit compiles ClaimCircuit and produces its keys. With a cache dir
// the keys are read from there when present and written there otherwise.
func setupCircuit(cacheDir string) (*circuitKeys, error) {
	var circuit ClaimCircuit
	ccs, err := frontend.Compile(CurveID.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}

	if cacheDir != "" {
		pk, vk, err := readKeys(cacheDir)
		if err == nil {
			return &circuitKeys{ccs: ccs, pk: pk, vk: vk}, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read cached keys: %w", err)
		}
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}

	if cacheDir != "" {
		if err := writeKeys(cacheDir, pk, vk); err != nil {
			return nil, fmt.Errorf("write cached keys: %w", err)
		}
	}

	return &circuitKeys{ccs: ccs, pk: pk, vk: vk}, nil
}

func readKeys(dir string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk := groth16.NewProvingKey(CurveID)
	if err := readFrom(filepath.Join(dir, provingKeyFile), pk); err != nil {
		return nil, nil, err
	}
	vk := groth16.NewVerifyingKey(CurveID)
	if err := readFrom(filepath.Join(dir, verifyingKeyFile), vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

func writeKeys(dir string, pk groth16.ProvingKey, vk groth16.VerifyingKey) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeTo(filepath.Join(dir, provingKeyFile), pk); err != nil {
		return err
	}
	return writeTo(filepath.Join(dir, verifyingKeyFile), vk)
}

func readFrom(path string, r io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = r.ReadFrom(f)
	return err
}

func writeTo(path string, w io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
