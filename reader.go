package storagecheck

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// StorageReader reads a full storage word of a deployed contract.
type StorageReader interface {
	ReadSlot(ctx context.Context, address common.Address, slot *big.Int) (common.Hash, error)
}

// StorageReaderFunc adapts a function to the StorageReader interface.
type StorageReaderFunc func(ctx context.Context, address common.Address, slot *big.Int) (common.Hash, error)

// ReadSlot calls f.
func (f StorageReaderFunc) ReadSlot(ctx context.Context, address common.Address, slot *big.Int) (common.Hash, error) {
	return f(ctx, address, slot)
}

// ClientReader reads storage through an Ethereum JSON-RPC client such as
// *ethclient.Client.
type ClientReader struct {
	client   ethereum.ChainStateReader
	block    *big.Int
	attempts int
	backoff  time.Duration
}

// ClientReaderOption configures a ClientReader.
type ClientReaderOption func(*ClientReader)

// WithBlockNumber reads storage at the given block instead of the latest one.
func WithBlockNumber(block *big.Int) ClientReaderOption {
	return func(r *ClientReader) {
		r.block = block
	}
}

// WithReadRetries retries failed reads up to attempts times in total,
// doubling the delay between attempts starting at backoff.
func WithReadRetries(attempts int, backoff time.Duration) ClientReaderOption {
	return func(r *ClientReader) {
		if attempts < 1 {
			attempts = 1
		}
		r.attempts = attempts
		r.backoff = backoff
	}
}

// NewClientReader wraps a chain state reader into a StorageReader.
func NewClientReader(client ethereum.ChainStateReader, opts ...ClientReaderOption) *ClientReader {
	r := &ClientReader{
		client:   client,
		attempts: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadSlot returns the storage word at slot of the contract at address.
func (r *ClientReader) ReadSlot(ctx context.Context, address common.Address, slot *big.Int) (common.Hash, error) {
	key := common.BigToHash(slot)
	delay := r.backoff

	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return common.Hash{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		var value []byte
		value, err = r.client.StorageAt(ctx, address, key, r.block)
		if err == nil {
			return common.BytesToHash(value), nil
		}
		if ctx.Err() != nil {
			return common.Hash{}, err
		}
	}
	return common.Hash{}, err
}
