package storagecheck

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DefaultReadConcurrency is the default number of slots read from the chain in parallel.
const DefaultReadConcurrency = 4

// Option configures a layout comparison.
type Option func(*config)

// config holds the configuration of a single comparison.
type config struct {
	checkRemovals   bool
	address         *common.Address
	reader          StorageReader
	readConcurrency int
	logger          *zap.Logger
}

// defaultConfig returns the default comparison configuration.
func defaultConfig() *config {
	return &config{
		checkRemovals:   false,
		readConcurrency: DefaultReadConcurrency,
		logger:          zap.NewNop(),
	}
}

func newConfig(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithRemovalCheck enables or disables reporting of removed variables.
// Disabled by default.
func WithRemovalCheck(enabled bool) Option {
	return func(c *config) {
		c.checkRemovals = enabled
	}
}

// WithChainReader enables verification of added bytes against the live
// storage of the contract deployed at address.
func WithChainReader(address common.Address, reader StorageReader) Option {
	return func(c *config) {
		c.address = &address
		c.reader = reader
	}
}

// WithReadConcurrency sets how many distinct slots are read in parallel.
// Values below 1 are treated as 1.
func WithReadConcurrency(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.readConcurrency = n
	}
}

// WithLogger sets the logger used for diagnostics. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = zap.NewNop()
		}
		c.logger = logger
	}
}
