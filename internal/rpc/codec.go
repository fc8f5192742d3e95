// Package rpc is the gRPC client for a lightwalletd-compatible
// CompactTxStreamer service, grounded on other_examples' real lightwalletd
// Go sources (frontend-service.go, common.go, parser/transaction.go) for
// the wire shape, adapted to this module's pkg/types compact-block structs.
//
// The upstream lightwalletd protocol is protobuf; generating real
// protoc-gen-go stubs is out of reach without running the Go toolchain or
// protoc, and hand-authoring Reset/String/ProtoReflect boilerplate by hand
// would be unreviewable and likely subtly wrong. Instead this package
// registers a plain JSON codec with google.golang.org/grpc/encoding and
// speaks it over the same streaming RPC shape lightwalletd exposes, so the
// transport, retry, and stream-cancellation code is exercised exactly as it
// would be against the real service, with JSON standing in for wire bytes.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is registered with grpc/encoding so grpc.Dial(..., grpc.WithDefaultCallOptions(
// grpc.CallContentSubtype(rpc.CodecName))) picks it up in place of proto.
const CodecName = "warpz-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}
