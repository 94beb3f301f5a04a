// storage-check compares the storage layout reports of two versions of a
// contract and reports the changes that would corrupt existing storage when
// upgrading from the first version to the second.
//
// Reports are produced with `forge inspect <contract> storage-layout --json`.
// When an RPC endpoint and the address of the deployed contract are given,
// slots introduced by the new version are also read from the chain and
// reported if they already hold non-zero data.
//
// Exit codes: 0 when the upgrade is safe, 1 when unsafe changes were found,
// 2 when the check could not complete.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	storagecheck "github.com/Rubilmax/foundry-storage-check"
)

const (
	exitSafe   = 0
	exitUnsafe = 1
	exitError  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var values flagValues
	flagSet := newFlagSet(&values)
	flagSet.SetOutput(stderr)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return exitSafe
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return exitSafe
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		fmt.Fprintf(stderr, "error: unexpected argument: %s\n", rest[0])
		return exitError
	}

	cfg, err := resolveConfig(flagSet, &values)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	logger, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	code, err := check(ctx, cfg, logger, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return code
}

// check runs the comparison and renders its result.
func check(ctx context.Context, cfg *Config, logger *zap.Logger, stdout io.Writer) (int, error) {
	reference, err := storagecheck.ReadLayoutFile(cfg.Reference)
	if err != nil {
		return exitError, err
	}
	candidate, err := storagecheck.ReadLayoutFile(cfg.Candidate)
	if err != nil {
		return exitError, err
	}

	var locator storagecheck.SourceLocator
	if cfg.Source != "" {
		source, err := os.ReadFile(cfg.Source)
		if err != nil {
			return exitError, fmt.Errorf("reading source: %w", err)
		}
		locator = storagecheck.NewIdentifierLocator(source)
	}

	opts := []storagecheck.Option{
		storagecheck.WithRemovalCheck(cfg.FailOnRemoval),
		storagecheck.WithLogger(logger),
		storagecheck.WithReadConcurrency(cfg.Chain.Concurrency),
	}

	if cfg.Chain.Address != "" {
		client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return exitError, fmt.Errorf("connecting to %s: %w", cfg.Chain.RPCURL, err)
		}
		defer client.Close()

		readerOpts := []storagecheck.ClientReaderOption{
			storagecheck.WithReadRetries(cfg.Chain.Retries, cfg.Chain.Backoff),
		}
		if cfg.Chain.Block > 0 {
			readerOpts = append(readerOpts, storagecheck.WithBlockNumber(new(big.Int).SetUint64(cfg.Chain.Block)))
		}

		address := common.HexToAddress(cfg.Chain.Address)
		opts = append(opts, storagecheck.WithChainReader(address, storagecheck.NewClientReader(client, readerOpts...)))
		logger.Info("verifying added slots", zap.Stringer("address", address), zap.Uint64("block", cfg.Chain.Block))
	}

	diffs, checkErr := storagecheck.CheckLayouts(ctx, reference, candidate, opts...)

	var chainErr *storagecheck.ChainReadError
	if checkErr != nil && !errors.As(checkErr, &chainErr) {
		return exitError, checkErr
	}

	out := newRenderer(stdout, cfg)
	var errorCount, warningCount int
	for _, diff := range diffs {
		formatted := storagecheck.FormatDiff(diff, locator)
		out.diff(formatted)
		if formatted.Level == storagecheck.LevelError {
			errorCount++
		} else {
			warningCount++
		}
	}
	out.summary(errorCount, warningCount)

	logger.Debug("storage check complete",
		zap.Int("errors", errorCount),
		zap.Int("warnings", warningCount))

	switch {
	case errorCount > 0:
		return exitUnsafe, checkErr
	case checkErr != nil:
		return exitError, fmt.Errorf("added slots could not all be verified: %w", checkErr)
	default:
		return exitSafe, nil
	}
}

// newLogger returns a console logger writing to w at the given level.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `storage-check: detect unsafe storage layout changes between two contract versions.

Usage:
  storage-check --reference <report> --candidate <report> [flags]

Examples:
  # Compare the layout on main with the layout of a feature branch
  forge inspect Vault storage-layout --json > feature.Vault.json
  storage-check -r main.Vault.json -c feature.Vault.json --source src/Vault.sol

  # Also check that new slots are empty on the deployed proxy
  storage-check -r main.Vault.json -c feature.Vault.json \
    --rpc-url $RPC_URL --address 0x...

  # Annotate a pull request from a GitHub workflow
  storage-check --config storage-check.yaml --format github

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
