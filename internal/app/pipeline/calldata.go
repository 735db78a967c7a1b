package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var ErrMalformedProof = errors.New("proof payload has no proofData/publicOutputs")

// ExtractCalldata pulls the hex proof bytes and public outputs a relay needs.
// Remote payloads are searched at props, proof.props, proof and the top level.
func ExtractCalldata(proof *ProofResult) (string, []string, error) {
	if proof == nil {
		return "", nil, ErrMalformedProof
	}
	if local := proof.Payload.Local; local != nil {
		if local.ProofData == "" {
			return "", nil, ErrMalformedProof
		}
		return withHexPrefix(local.ProofData), append([]string(nil), local.PublicOutputs...), nil
	}
	if len(proof.Payload.Remote) == 0 {
		return "", nil, ErrMalformedProof
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(proof.Payload.Remote, &root); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}

	for _, path := range [][]string{{"props"}, {"proof", "props"}, {"proof"}, {}} {
		node, ok := descend(root, path)
		if !ok {
			continue
		}
		proofData, outputs, ok := readCalldata(node)
		if ok {
			return proofData, outputs, nil
		}
	}
	return "", nil, ErrMalformedProof
}

func descend(root map[string]json.RawMessage, path []string) (map[string]json.RawMessage, bool) {
	node := root
	for _, key := range path {
		raw, ok := node[key]
		if !ok {
			return nil, false
		}
		var next map[string]json.RawMessage
		if err := json.Unmarshal(raw, &next); err != nil {
			return nil, false
		}
		node = next
	}
	return node, true
}

func readCalldata(node map[string]json.RawMessage) (string, []string, bool) {
	rawData, ok := node["proofData"]
	if !ok {
		return "", nil, false
	}
	var proofData string
	if err := json.Unmarshal(rawData, &proofData); err != nil || proofData == "" {
		return "", nil, false
	}

	rawOutputs, ok := node["publicOutputs"]
	if !ok {
		return "", nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawOutputs, &items); err != nil {
		return "", nil, false
	}

	outputs := make([]string, 0, len(items))
	for _, item := range items {
		out, ok := readOutput(item)
		if !ok {
			return "", nil, false
		}
		outputs = append(outputs, out)
	}
	return withHexPrefix(proofData), outputs, true
}

// readOutput accepts hex strings and JSON numbers.
func readOutput(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", false
		}
		return withHexPrefix(s), true
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return "", false
	}
	n, ok := new(big.Int).SetString(num.String(), 10)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("0x%064x", n), true
}

func withHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return "0x" + s[2:]
	}
	return "0x" + s
}
