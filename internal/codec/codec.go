// Package codec encodes and decodes the event envelopes exchanged with
// chat clients. Every frame carries one event name plus an optional payload:
//
//	{"event": "sendMessage", "data": "hello"}
//
// Two wire formats are supported. JSON travels in text frames and is the
// default; CBOR travels in binary frames and is chosen by negotiating the
// chatmatch.cbor WebSocket subprotocol.
package codec

import "strings"

// Subprotocol names offered during the WebSocket handshake
const (
	SubprotocolJSON = "chatmatch.json"
	SubprotocolCBOR = "chatmatch.cbor"
)

// Codec translates between events and wire frames
type Codec interface {
	// Name is the short codec name ("json" or "cbor")
	Name() string
	// Subprotocol is the WebSocket subprotocol that selects this codec
	Subprotocol() string
	// Binary reports whether frames are sent as binary rather than text
	Binary() bool
	// Encode builds a frame for event with an optional payload
	Encode(event string, data any) ([]byte, error)
	// Decode parses a frame into its event name and raw payload
	Decode(frame []byte) (*Inbound, error)
}

// Inbound is a decoded client frame whose payload has not been bound yet
type Inbound struct {
	Event string

	payload []byte
	bind    func(payload []byte, v any) error
}

// HasData reports whether the frame carried a payload
func (in *Inbound) HasData() bool {
	return len(in.payload) > 0
}

// Bind decodes the payload into v
func (in *Inbound) Bind(v any) error {
	if !in.HasData() {
		return ErrMissingData
	}
	if err := in.bind(in.payload, v); err != nil {
		return wrapMalformed(err)
	}
	return nil
}

var (
	jsonCodec Codec = JSON{}
	cborCodec Codec = CBOR{}
)

// Default returns the codec used when no subprotocol was negotiated
func Default() Codec {
	return jsonCodec
}

// Subprotocols lists the supported subprotocols in server preference order
func Subprotocols() []string {
	return []string{SubprotocolJSON, SubprotocolCBOR}
}

// ByName looks a codec up by its short name or subprotocol
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json", SubprotocolJSON:
		return jsonCodec, nil
	case "cbor", SubprotocolCBOR:
		return cborCodec, nil
	default:
		return nil, ErrUnknownCodec
	}
}
