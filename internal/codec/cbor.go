package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding: sorted map keys, smallest
// integer encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode decodes untyped maps as map[string]any so CBOR payloads bind
// the same way JSON ones do.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborEnvelope struct {
	Event string          `cbor:"event"`
	Data  cbor.RawMessage `cbor:"data,omitempty"`
}

// CBOR encodes envelopes as CBOR binary frames
type CBOR struct{}

func (CBOR) Name() string        { return "cbor" }
func (CBOR) Subprotocol() string { return SubprotocolCBOR }
func (CBOR) Binary() bool        { return true }

// Encode marshals the event envelope
func (CBOR) Encode(event string, data any) ([]byte, error) {
	envelope := struct {
		Event string `cbor:"event"`
		Data  any    `cbor:"data,omitempty"`
	}{Event: event, Data: data}
	return encMode.Marshal(envelope)
}

// Decode unmarshals the envelope and keeps data raw until Bind
func (CBOR) Decode(frame []byte) (*Inbound, error) {
	var envelope cborEnvelope
	if err := decMode.Unmarshal(frame, &envelope); err != nil {
		return nil, wrapMalformed(err)
	}
	if envelope.Event == "" {
		return nil, ErrMissingEvent
	}
	payload := []byte(envelope.Data)
	// 0xf6 is CBOR null
	if len(payload) == 1 && payload[0] == 0xf6 {
		payload = nil
	}
	return &Inbound{Event: envelope.Event, payload: payload, bind: decMode.Unmarshal}, nil
}
