package ws

import (
	"encoding/json"

	"number_baseball/internal/domain"
)

// Message is the frame exchanged in both directions: {"type": ..., "payload": ...}.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func encode(n domain.Notice) ([]byte, error) {
	payload := n.Payload
	if payload == nil {
		payload = domain.Empty{}
	}
	return json.Marshal(outbound{Type: n.Type, Payload: payload})
}

// decodePayload fills v from raw. A missing or null payload leaves v at its
// zero value.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.ErrMalformedPayload
	}
	return nil
}
