package wire

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

// Codec encodes frames for one WebSocket subprotocol.
type Codec interface {
	// Name is the WebSocket subprotocol announcing this codec.
	Name() string
	// MessageType is the WebSocket message type frames are sent as.
	MessageType() int
	Marshal(f *Frame) ([]byte, error)
	Unmarshal(data []byte, f *Frame) error
}

var (
	// JSON encodes frames as JSON text messages. It is the default.
	JSON Codec = jsonCodec{}
	// CBOR encodes frames as CBOR binary messages using Core Deterministic
	// Encoding.
	CBOR Codec = newCBORCodec()
)

// Subprotocols lists the supported subprotocols in preference order.
func Subprotocols() []string {
	return []string{JSON.Name(), CBOR.Name()}
}

// ByName returns the codec for a subprotocol or short name ("json", "cbor").
// An empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json", JSON.Name():
		return JSON, nil
	case "cbor", CBOR.Name():
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string     { return "treksync.json" }
func (jsonCodec) MessageType() int { return websocket.TextMessage }

func (jsonCodec) Marshal(f *Frame) ([]byte, error) {
	return json.Marshal(f)
}

func (jsonCodec) Unmarshal(data []byte, f *Frame) error {
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("failed to decode JSON frame: %w", err)
	}
	return f.Validate()
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	enc, err := encOptions.EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string     { return "treksync.cbor" }
func (cborCodec) MessageType() int { return websocket.BinaryMessage }

func (c cborCodec) Marshal(f *Frame) ([]byte, error) {
	return c.enc.Marshal(f)
}

func (c cborCodec) Unmarshal(data []byte, f *Frame) error {
	if err := c.dec.Unmarshal(data, f); err != nil {
		return fmt.Errorf("failed to decode CBOR frame: %w", err)
	}
	return f.Validate()
}
