package relay

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EntrypointABI covers the two entrypoint functions the relay touches.
const EntrypointABI = `[
  {"type":"function","name":"encode","stateMutability":"view",
   "inputs":[{"name":"proof","type":"bytes"},{"name":"publicOutputs","type":"bytes32[]"}],
   "outputs":[{"name":"","type":"bytes"}]},
  {"type":"function","name":"entrypoint","stateMutability":"nonpayable",
   "inputs":[{"name":"data","type":"bytes"}],
   "outputs":[]}
]`

func parseEntrypointABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(EntrypointABI))
}

func decodeProof(proofData string) ([]byte, error) {
	b, err := hexutil.Decode(proofData)
	if err != nil {
		return nil, fmt.Errorf("proof data: %w", err)
	}
	return b, nil
}

// decodeOutputs turns hex public outputs into left-padded 32-byte words.
func decodeOutputs(outputs []string) ([][32]byte, error) {
	words := make([][32]byte, len(outputs))
	for i, out := range outputs {
		b, err := hexutil.Decode(normalizeHex(out))
		if err != nil {
			return nil, fmt.Errorf("public output %d: %w", i, err)
		}
		if len(b) > 32 {
			return nil, fmt.Errorf("public output %d is %d bytes, want at most 32", i, len(b))
		}
		words[i] = common.BytesToHash(b)
	}
	return words, nil
}

// normalizeHex makes odd-length hex acceptable to hexutil.
func normalizeHex(s string) string {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return "0x" + s
}
