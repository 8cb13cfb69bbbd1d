package cmd

import (
	"context"

	"grimm.is/nftblockd/internal/logging"
)

// RunDelete tears down the blocklist table. A failed delete almost always
// means the table was never created or is already gone, so it warns
// instead of failing.
func RunDelete(opts Options) error {
	cfg, err := setup(opts)
	if err != nil {
		return err
	}
	applier, err := newApplier(opts)
	if err != nil {
		return err
	}

	if err := applier.DeleteTable(context.Background(), cfg.TableName); err != nil {
		logging.Warn("table not deleted, probably already gone",
			"table", cfg.TableName, "error", err)
		return nil
	}
	logging.Info("table deleted", "table", cfg.TableName)
	return nil
}
