package lbproto

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as a gRPC content-subtype so the balancer
// session's stream can be forced onto RawFrame without going through
// protobuf message marshaling (there is no generated message type to
// marshal: see the package doc).
const codecName = "grpclb-raw"

// RawFrame carries an already wire-encoded LoadBalanceRequest or
// LoadBalanceResponse payload across a gRPC stream configured with
// Codec() as its content-subtype.
type RawFrame struct {
	B []byte
}

type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	f, ok := v.(*RawFrame)
	if !ok {
		return nil, fmt.Errorf("lbproto: Marshal called with %T, want *RawFrame", v)
	}
	return f.B, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	f, ok := v.(*RawFrame)
	if !ok {
		return fmt.Errorf("lbproto: Unmarshal called with %T, want *RawFrame", v)
	}
	f.B = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// Codec returns the name of the content-subtype the balancer session
// should force on its stream via grpc.CallContentSubtype.
func Codec() string { return codecName }
