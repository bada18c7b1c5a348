package codec

import (
	"bytes"
	"encoding/json"
)

type jsonEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JSON encodes envelopes as JSON text frames
type JSON struct{}

func (JSON) Name() string        { return "json" }
func (JSON) Subprotocol() string { return SubprotocolJSON }
func (JSON) Binary() bool        { return false }

// Encode marshals the event envelope
func (JSON) Encode(event string, data any) ([]byte, error) {
	envelope := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: event, Data: data}
	return json.Marshal(envelope)
}

// Decode unmarshals the envelope and keeps data raw until Bind
func (JSON) Decode(frame []byte) (*Inbound, error) {
	var envelope jsonEnvelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return nil, wrapMalformed(err)
	}
	if envelope.Event == "" {
		return nil, ErrMissingEvent
	}
	payload := []byte(envelope.Data)
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		payload = nil
	}
	return &Inbound{Event: envelope.Event, payload: payload, bind: json.Unmarshal}, nil
}
