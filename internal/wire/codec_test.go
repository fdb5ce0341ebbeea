package wire

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"
)

func TestCodecs(t *testing.T) {
	at := time.Date(2026, 3, 17, 6, 30, 0, 123456789, time.UTC)
	frames := []Frame{
		{Op: OpSub, ID: 1, Path: "tasks"},
		{Op: OpSet, ID: 2, Path: "trekkers", Value: []byte(`[{"name":"Alice","congratulations":{"Bob":true}}]`)},
		{Op: OpValue, ID: 1, Path: "tasks", Value: []byte(`[]`), Rev: 7, At: at},
		{Op: OpValue, ID: 1, Path: "tasks"},
		{Op: OpError, ID: 3, Error: "invalid path"},
	}
	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			for _, f := range frames {
				data, err := c.Marshal(&f)
				assert.Equal(t, err, nil)
				var got Frame
				assert.Equal(t, c.Unmarshal(data, &got), nil)
				assert.Equal(t, got.Op, f.Op)
				assert.Equal(t, got.ID, f.ID)
				assert.Equal(t, got.Path, f.Path)
				assert.Equal(t, string(got.Value), string(f.Value))
				assert.Equal(t, got.Rev, f.Rev)
				assert.Equal(t, got.At.Equal(f.At), true)
				assert.Equal(t, got.Error, f.Error)
			}
		})
	}
}

func TestCodecRejectsInvalidFrames(t *testing.T) {
	bad := []Frame{
		{Op: "bogus", ID: 1},
		{Op: OpSub, Path: "tasks"},
		{Op: OpSet, ID: 1},
		{Op: OpAck},
	}
	for _, c := range []Codec{JSON, CBOR} {
		for _, f := range bad {
			data, err := c.Marshal(&f)
			assert.Equal(t, err, nil)
			var got Frame
			assert.NotEqual(t, c.Unmarshal(data, &got), nil)
		}
		var got Frame
		assert.NotEqual(t, c.Unmarshal([]byte{0xff, 0x00}, &got), nil)
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		want    Codec
		msgType int
	}{
		{"", JSON, websocket.TextMessage},
		{"json", JSON, websocket.TextMessage},
		{"treksync.json", JSON, websocket.TextMessage},
		{"cbor", CBOR, websocket.BinaryMessage},
		{"treksync.cbor", CBOR, websocket.BinaryMessage},
	}
	for _, tt := range tests {
		c, err := ByName(tt.name)
		assert.Equal(t, err, nil)
		assert.Equal(t, c.Name(), tt.want.Name())
		assert.Equal(t, c.MessageType(), tt.msgType)
	}
	_, err := ByName("protobuf")
	assert.NotEqual(t, err, nil)
	assert.Equal(t, Subprotocols(), []string{"treksync.json", "treksync.cbor"})
}
