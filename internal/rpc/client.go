package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
	"google.golang.org/grpc"
)

// BlockRange mirrors lightwalletd's walletrpc.BlockRange: an inclusive
// [Start, End] height window, grounded on
// other_examples/2eeca960_zcash-lightwalletd__frontend-service.go.go's
// GetTaddressTransactions handler, which reads the same shape off the wire.
type BlockRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// ChainSpec is the empty placeholder request lightwalletd's GetLatestBlock
// takes.
type ChainSpec struct{}

// BlockID is the (height, hash) pair GetLatestBlock returns.
type BlockID struct {
	Height uint64    `json:"height"`
	Hash   types.Hash `json:"hash"`
}

// compactTxStreamerClient is the subset of lightwalletd's CompactTxStreamer
// service this module's Synchronizer needs: latest height discovery and a
// ranged compact-block stream.
type compactTxStreamerClient struct {
	conn *grpc.ClientConn
}

// NewClient dials target (a lightwalletd-compatible endpoint) and returns a
// client using the JSON codec registered in codec.go.
func NewClient(ctx context.Context, target string, opts ...grpc.DialOption) (*compactTxStreamerClient, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errs.ErrTransport, target, err)
	}
	return &compactTxStreamerClient{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *compactTxStreamerClient) Close() error {
	return c.conn.Close()
}

// GetLatestBlock returns the server's current chain tip.
func (c *compactTxStreamerClient) GetLatestBlock(ctx context.Context) (*BlockID, error) {
	var out BlockID
	if err := c.conn.Invoke(ctx, "/cash.z.wallet.sdk.rpc.CompactTxStreamer/GetLatestBlock", &ChainSpec{}, &out); err != nil {
		return nil, fmt.Errorf("%w: GetLatestBlock: %v", errs.ErrTransport, err)
	}
	return &out, nil
}

// GetBlockRange opens a server-streaming RPC yielding compact blocks for
// r.Start..r.End in height order, the shape internal/chainsource.Stream
// reads from.
func (c *compactTxStreamerClient) GetBlockRange(ctx context.Context, r BlockRange) (grpc.ClientStream, error) {
	desc := &grpc.StreamDesc{StreamName: "GetBlockRange", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/cash.z.wallet.sdk.rpc.CompactTxStreamer/GetBlockRange")
	if err != nil {
		return nil, fmt.Errorf("%w: GetBlockRange: %v", errs.ErrTransport, err)
	}
	if err := stream.SendMsg(&r); err != nil {
		return nil, fmt.Errorf("%w: GetBlockRange send: %v", errs.ErrTransport, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("%w: GetBlockRange close-send: %v", errs.ErrTransport, err)
	}
	return stream, nil
}

// RecvCompactBlock reads the next CompactBlock off stream, translating
// io.EOF into (nil, nil) for callers that loop until exhaustion.
func RecvCompactBlock(stream grpc.ClientStream) (*types.CompactBlock, error) {
	var block types.CompactBlock
	if err := stream.RecvMsg(&block); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: recv compact block: %v", errs.ErrProtocol, err)
	}
	return &block, nil
}
