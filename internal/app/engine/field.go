package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// hashToField maps arbitrary bytes into the BN254 scalar field.
func hashToField(data []byte) fr.Element {
	sum := sha256.Sum256(data)
	var e fr.Element
	e.SetBytes(sum[:])
	return e
}

// binding computes off-circuit what ClaimCircuit computes in-circuit.
func binding(elements ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for _, e := range elements {
		b := e.Bytes()
		h.Write(b[:])
	}

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

func toBig(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

func elementHex(e fr.Element) string {
	b := e.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}
