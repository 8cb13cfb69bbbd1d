// Package cmd implements the nftblockd subcommands. Each Run* function
// is self-contained: it loads configuration, wires its dependencies, and
// returns an error the caller maps to an exit code.
package cmd

import (
	"fmt"
	"os"

	"grimm.is/nftblockd/internal/config"
	"grimm.is/nftblockd/internal/logging"
	"grimm.is/nftblockd/internal/nft"
)

// Options carries the CLI flag overlay shared by the subcommands. Zero
// values mean "not given"; they never override configuration.
type Options struct {
	ConfigFile string
	IPv4URL    string
	IPv6URL    string
	LogLevel   string
	NftPath    string

	// Native applies rulesets over netlink instead of piping JSON to the
	// nft binary.
	Native bool
}

// setup loads and validates configuration with the flag overlay applied,
// and installs the default logger at the configured level.
func setup(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return cfg, err
	}
	if opts.IPv4URL != "" {
		cfg.IPv4URL = opts.IPv4URL
	}
	if opts.IPv6URL != "" {
		cfg.IPv6URL = opts.IPv6URL
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, err
	}
	logging.SetDefault(logging.New(logging.Config{Level: level, Output: os.Stderr}))
	return cfg, nil
}

// newApplier picks the apply backend.
func newApplier(opts Options) (nft.Applier, error) {
	if opts.Native {
		conn, err := nft.NewConn()
		if err != nil {
			return nil, fmt.Errorf("opening netlink connection: %w", err)
		}
		return nft.NewNativeApplier(conn), nil
	}
	a := nft.NewScriptApplier()
	if opts.NftPath != "" {
		a.NftPath = opts.NftPath
	}
	return a, nil
}
