package ens

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

func keccak(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Normalize lowercases and trims a name. Full UTS-46 processing is left to
// the registry; handles reaching this service are ASCII.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Namehash implements EIP-137 over an already normalized name.
func Namehash(name string) common.Hash {
	var node [32]byte
	if name == "" {
		return node
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := keccak([]byte(labels[i]))
		copy(node[:], keccak(node[:], labelHash))
	}
	return node
}

func selector(signature string) []byte {
	return keccak([]byte(signature))[:4]
}
