// Package wire defines the frames exchanged between treksync clients and the
// server over WebSocket, and their JSON and CBOR encodings.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is the kind of a frame.
type Op string

const (
	// OpSub subscribes to Path. Client to server.
	OpSub Op = "sub"
	// OpUnsub releases subscription ID. Client to server.
	OpUnsub Op = "unsub"
	// OpSet replaces the document at Path with Value. Client to server.
	OpSet Op = "set"
	// OpAck confirms the set request ID. Server to client.
	OpAck Op = "ack"
	// OpValue carries the current document of subscription ID. Server to client.
	OpValue Op = "value"
	// OpError reports the failure of request or subscription ID. Server to client.
	OpError Op = "error"
)

// Frame is one protocol message.
//
// Value holds raw JSON in both codecs; a nil Value on OpValue means the path
// holds no document.
type Frame struct {
	Op    Op              `json:"op" cbor:"1,keyasint"`
	ID    uint64          `json:"id,omitempty" cbor:"2,keyasint,omitempty"`
	Path  string          `json:"path,omitempty" cbor:"3,keyasint,omitempty"`
	Value json.RawMessage `json:"value,omitempty" cbor:"4,keyasint,omitempty"`
	Rev   uint64          `json:"rev,omitempty" cbor:"5,keyasint,omitempty"`
	At    time.Time       `json:"at,omitzero" cbor:"6,keyasint,omitempty"`
	Error string          `json:"error,omitempty" cbor:"7,keyasint,omitempty"`
}

// Validate checks that the frame carries the fields its Op requires.
func (f *Frame) Validate() error {
	switch f.Op {
	case OpSub, OpSet:
		if f.ID == 0 {
			return fmt.Errorf("%s frame: id is required", f.Op)
		}
		if f.Path == "" {
			return fmt.Errorf("%s frame: path is required", f.Op)
		}
	case OpUnsub, OpAck, OpValue, OpError:
		if f.ID == 0 {
			return fmt.Errorf("%s frame: id is required", f.Op)
		}
	default:
		return fmt.Errorf("unknown op %q", f.Op)
	}
	return nil
}
