package engine

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// ClaimCircuit proves knowledge of an email digest that, together with the
// sender domain and the command, hashes to the public binding.
type ClaimCircuit struct {
	Binding          frontend.Variable `gnark:",public"`
	SenderDomainHash frontend.Variable `gnark:",public"`
	CommandHash      frontend.Variable `gnark:",public"`
	EmailDigest      frontend.Variable `gnark:",secret"`
}

// Define implements the frontend.Circuit interface
func (c *ClaimCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	h.Write(c.EmailDigest, c.SenderDomainHash, c.CommandHash)
	api.AssertIsEqual(h.Sum(), c.Binding)

	return nil
}
