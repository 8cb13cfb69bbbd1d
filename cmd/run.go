package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"grimm.is/nftblockd/internal/blocklist"
	"grimm.is/nftblockd/internal/logging"
	"grimm.is/nftblockd/internal/updater"
)

// RunUpdate runs the update loop until SIGINT/SIGTERM or retry
// exhaustion.
func RunUpdate(opts Options) error {
	cfg, err := setup(opts)
	if err != nil {
		return err
	}
	applier, err := newApplier(opts)
	if err != nil {
		return err
	}
	headers, err := cfg.Headers()
	if err != nil {
		return err
	}

	svc, err := updater.New(cfg, blocklist.NewFetcher(cfg.FetchTimeout, headers), applier)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("starting update loop",
		"table", cfg.TableName,
		"interval", cfg.Interval.String(),
		"ipv4_url", cfg.IPv4URL,
		"ipv6_url", cfg.IPv6URL)

	err = svc.Run(ctx)
	if err == nil {
		logging.Info("shutting down")
	}
	return err
}
