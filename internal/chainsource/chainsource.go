// Package chainsource streams compact blocks in height order from a remote
// lightwalletd-compatible endpoint: ranged fetch, prev_hash continuity
// checks, and cancellation via ctx.Done(), through a single gRPC BlockSource.
package chainsource

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"

	"github.com/sirupsen/logrus"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/internal/logging"
	"github.com/ccoin/warpz/internal/rpc"
	"github.com/ccoin/warpz/pkg/types"
)

// Client is the subset of the gRPC client BlockSource needs.
type Client interface {
	GetLatestBlock(ctx context.Context) (*rpc.BlockID, error)
	GetBlockRange(ctx context.Context, r rpc.BlockRange) (grpc.ClientStream, error)
}

// Config tunes retry behavior.
type Config struct {
	MaxRetries int
}

// DefaultConfig matches a conservative client-side retry budget.
func DefaultConfig() *Config {
	return &Config{MaxRetries: 5}
}

// BlockSource streams compact blocks from a single remote endpoint.
type BlockSource struct {
	client Client
	cfg    *Config
	log    *logrus.Entry
}

// NewBlockSource wraps client with retry/backoff.
func NewBlockSource(client Client, cfg *Config) *BlockSource {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &BlockSource{client: client, cfg: cfg, log: logging.New("chainsource")}
}

// LatestHeight returns the remote tip height, retrying transient transport
// failures.
func (s *BlockSource) LatestHeight(ctx context.Context) (uint64, error) {
	var height uint64
	op := func() error {
		id, err := s.client.GetLatestBlock(ctx)
		if err != nil {
			return err
		}
		height = id.Height
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.MaxRetries))
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return 0, fmt.Errorf("%w: LatestHeight: %v", errs.ErrTransport, err)
	}
	return height, nil
}

// Stream returns a channel of compact blocks for [fromHeight, toHeight] in
// height order, and a channel carrying at most one terminal error. Both
// channels close when the range is exhausted or ctx is canceled.
func (s *BlockSource) Stream(ctx context.Context, fromHeight, toHeight uint64) (<-chan types.CompactBlock, <-chan error) {
	blocks := make(chan types.CompactBlock)
	errCh := make(chan error, 1)

	go func() {
		defer close(blocks)
		defer close(errCh)

		stream, err := s.client.GetBlockRange(ctx, rpc.BlockRange{Start: fromHeight, End: toHeight})
		if err != nil {
			errCh <- fmt.Errorf("%w: stream open: %v", errs.ErrTransport, err)
			return
		}

		var prevHash types.Hash
		haveParent := false

		for {
			select {
			case <-ctx.Done():
				errCh <- errs.ErrCanceled
				return
			default:
			}

			var block types.CompactBlock
			if err := stream.RecvMsg(&block); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				errCh <- fmt.Errorf("%w: recv: %v", errs.ErrProtocol, err)
				return
			}

			if haveParent && block.PrevHash != prevHash {
				s.log.WithField("height", block.Height).Warn("prev_hash mismatch, possible reorg")
				errCh <- errs.ErrReorgDetected
				return
			}
			prevHash = block.Hash
			haveParent = true

			select {
			case blocks <- block:
			case <-ctx.Done():
				errCh <- errs.ErrCanceled
				return
			}
		}
	}()

	return blocks, errCh
}
