package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	storagecheck "github.com/Rubilmax/foundry-storage-check"
)

// configEnv names the environment variable holding the default config file path.
const configEnv = "STORAGE_CHECK_CONFIG"

// Output formats.
const (
	formatText   = "text"
	formatGitHub = "github"
)

// Config is the configuration of a storage-check run. It is read from an
// optional YAML file; command-line flags override the file.
type Config struct {
	// Reference is the storage layout report of the deployed version.
	Reference string `yaml:"reference"`

	// Candidate is the storage layout report of the new version.
	Candidate string `yaml:"candidate"`

	// Source is the candidate contract source, used to locate diagnostics.
	Source string `yaml:"source"`

	// FailOnRemoval reports removed variables as errors.
	FailOnRemoval bool `yaml:"fail_on_removal"`

	// Format is either "text" or "github".
	Format string `yaml:"format"`

	NoColor  bool          `yaml:"no_color"`
	LogLevel string        `yaml:"log_level"`
	Timeout  time.Duration `yaml:"timeout"`

	// Chain configures verification of added slots against a deployed contract.
	Chain ChainConfig `yaml:"chain"`
}

// ChainConfig configures the chain reader. Verification is enabled when
// Address is set.
type ChainConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	Address string `yaml:"address"`

	// Block pins reads to a block number. Zero reads the latest block.
	Block uint64 `yaml:"block"`

	Concurrency int           `yaml:"concurrency"`
	Retries     int           `yaml:"retries"`
	Backoff     time.Duration `yaml:"backoff"`
}

// defaultConfig returns the configuration used when neither a file nor a flag
// sets a value.
func defaultConfig() *Config {
	return &Config{
		Format:   formatText,
		LogLevel: "warn",
		Timeout:  time.Minute,
		Chain: ChainConfig{
			Concurrency: storagecheck.DefaultReadConcurrency,
			Retries:     3,
			Backoff:     500 * time.Millisecond,
		},
	}
}

// loadConfigFile merges the YAML file at path into c.
func (c *Config) loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// validate checks the fields that flags and file cannot both leave unset.
func (c *Config) validate() error {
	if c.Reference == "" {
		return fmt.Errorf("missing reference report (--reference)")
	}
	if c.Candidate == "" {
		return fmt.Errorf("missing candidate report (--candidate)")
	}
	if c.Format != formatText && c.Format != formatGitHub {
		return fmt.Errorf("unknown format %q (want %s or %s)", c.Format, formatText, formatGitHub)
	}
	if c.Chain.Address != "" {
		if c.Chain.RPCURL == "" {
			return fmt.Errorf("--address requires --rpc-url")
		}
		if !common.IsHexAddress(c.Chain.Address) {
			return fmt.Errorf("invalid contract address %q", c.Chain.Address)
		}
	}
	return nil
}

// flagValues holds the raw flag targets before they are merged into a Config.
type flagValues struct {
	configPath string
	cfg        Config
}

func newFlagSet(values *flagValues) *pflag.FlagSet {
	defaults := defaultConfig()

	flagSet := pflag.NewFlagSet("storage-check", pflag.ContinueOnError)
	flagSet.StringVar(&values.configPath, "config", "", "path to a YAML config file (default: $"+configEnv+")")
	flagSet.StringVarP(&values.cfg.Reference, "reference", "r", "", "storage layout report of the deployed version")
	flagSet.StringVarP(&values.cfg.Candidate, "candidate", "c", "", "storage layout report of the new version")
	flagSet.StringVar(&values.cfg.Source, "source", "", "candidate contract source, used to locate diagnostics")
	flagSet.BoolVar(&values.cfg.FailOnRemoval, "fail-on-removal", false, "report removed variables as errors")
	flagSet.StringVar(&values.cfg.Format, "format", defaults.Format, "output format: text or github")
	flagSet.BoolVar(&values.cfg.NoColor, "no-color", false, "disable colored output")
	flagSet.StringVar(&values.cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn or error")
	flagSet.DurationVar(&values.cfg.Timeout, "timeout", defaults.Timeout, "overall deadline, including chain reads")
	flagSet.StringVar(&values.cfg.Chain.RPCURL, "rpc-url", "", "JSON-RPC endpoint used to read deployed storage")
	flagSet.StringVar(&values.cfg.Chain.Address, "address", "", "address of the deployed contract; enables added slot verification")
	flagSet.Uint64Var(&values.cfg.Chain.Block, "block", 0, "block number to read storage at (default: latest)")
	flagSet.IntVar(&values.cfg.Chain.Concurrency, "concurrency", defaults.Chain.Concurrency, "number of storage slots read in parallel")
	flagSet.IntVar(&values.cfg.Chain.Retries, "retries", defaults.Chain.Retries, "attempts per storage read")
	flagSet.DurationVar(&values.cfg.Chain.Backoff, "backoff", defaults.Chain.Backoff, "delay before the first retry, doubled after each attempt")
	flagSet.BoolP("help", "h", false, "show help")
	return flagSet
}

// resolveConfig loads the config file, if any, then applies the flags that
// were set explicitly on the command line.
func resolveConfig(flagSet *pflag.FlagSet, values *flagValues) (*Config, error) {
	cfg := defaultConfig()

	path := values.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path != "" {
		if err := cfg.loadConfigFile(path); err != nil {
			return nil, err
		}
	}

	overrides := map[string]func(){
		"reference":       func() { cfg.Reference = values.cfg.Reference },
		"candidate":       func() { cfg.Candidate = values.cfg.Candidate },
		"source":          func() { cfg.Source = values.cfg.Source },
		"fail-on-removal": func() { cfg.FailOnRemoval = values.cfg.FailOnRemoval },
		"format":          func() { cfg.Format = values.cfg.Format },
		"no-color":        func() { cfg.NoColor = values.cfg.NoColor },
		"log-level":       func() { cfg.LogLevel = values.cfg.LogLevel },
		"timeout":         func() { cfg.Timeout = values.cfg.Timeout },
		"rpc-url":         func() { cfg.Chain.RPCURL = values.cfg.Chain.RPCURL },
		"address":         func() { cfg.Chain.Address = values.cfg.Chain.Address },
		"block":           func() { cfg.Chain.Block = values.cfg.Chain.Block },
		"concurrency":     func() { cfg.Chain.Concurrency = values.cfg.Chain.Concurrency },
		"retries":         func() { cfg.Chain.Retries = values.cfg.Chain.Retries },
		"backoff":         func() { cfg.Chain.Backoff = values.cfg.Chain.Backoff },
	}
	flagSet.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
