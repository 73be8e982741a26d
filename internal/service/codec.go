package service

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec encodes plain Go request/response structs. It replaces connect's
// protobuf-only "json" codec so handlers accept application/json bodies.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// JSONCodec is the connect option every handler and client of these services must use
func JSONCodec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
