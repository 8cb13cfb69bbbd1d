package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"grimm.is/nftblockd/internal/updater"
)

// RunCheck validates the configuration and the static anti-lockout and
// custom sets, then prints the ruleset that would be applied (without the
// fetched blocklists) as pretty JSON. Nothing touches nftables.
func RunCheck(opts Options) error {
	cfg, err := setup(opts)
	if err != nil {
		return err
	}

	// No fetcher or applier: check never goes on the network.
	svc, err := updater.New(cfg, nil, nil)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(svc.Preview(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
