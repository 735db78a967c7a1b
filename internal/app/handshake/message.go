package handshake

import (
	"encoding/json"
)

const (
	MessageSuccess = "GOOGLE_AUTH_SUCCESS"
	MessageError   = "GOOGLE_AUTH_ERROR"
)

// Message is one cross-context post: who sent it and what.
type Message struct {
	Origin string
	Data   []byte
}

// Envelope is the only payload shape the broker reacts to.
type Envelope struct {
	Type    string `json:"type"`
	ProofID string `json:"proofId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type successWire struct {
	Type    string `json:"type"`
	ProofID string `json:"proofId"`
}

// errorWire keeps the error field even when it is empty.
type errorWire struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func SuccessEnvelope(proofID string) []byte {
	b, _ := json.Marshal(successWire{Type: MessageSuccess, ProofID: proofID})
	return b
}

func ErrorEnvelope(msg string) []byte {
	b, _ := json.Marshal(errorWire{Type: MessageError, Error: msg})
	return b
}

// ParseEnvelope accepts exactly {type: SUCCESS, proofId: string} or
// {type: ERROR, error: string}. Extra fields or wrong types reject the message.
func ParseEnvelope(data []byte) (Envelope, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Envelope{}, false
	}
	if len(fields) != 2 {
		return Envelope{}, false
	}

	var typ string
	if err := json.Unmarshal(fields["type"], &typ); err != nil {
		return Envelope{}, false
	}

	switch typ {
	case MessageSuccess:
		var proofID string
		raw, ok := fields["proofId"]
		if !ok || json.Unmarshal(raw, &proofID) != nil || proofID == "" {
			return Envelope{}, false
		}
		return Envelope{Type: typ, ProofID: proofID}, true
	case MessageError:
		var msg string
		raw, ok := fields["error"]
		if !ok || json.Unmarshal(raw, &msg) != nil {
			return Envelope{}, false
		}
		return Envelope{Type: typ, Error: msg}, true
	default:
		return Envelope{}, false
	}
}
