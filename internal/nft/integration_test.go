package nft

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/nftblockd/internal/ruleset"
	"grimm.is/nftblockd/internal/subnet"
	"grimm.is/nftblockd/internal/testutil"
)

func integrationNames() ruleset.Names {
	return ruleset.Names{
		Table:            "nftblockd_test",
		PreroutingChain:  "prerouting",
		PostroutingChain: "postrouting",
		BlocklistSet:     "blocklist_set",
		AntiLockoutSet:   "anti_lockout_set",
		CustomSet:        "custom_blocklist_set",
	}
}

// TestRealNftCheck pipes a synthesized document through a check-only pass
// of the real nft binary, verifying the JSON rendering matches what nft
// actually accepts. Even a check pass reads kernel state over netlink, so
// this stays behind the VM gate.
func TestRealNftCheck(t *testing.T) {
	testutil.RequireVM(t)
	testutil.RequireNft(t)

	names := integrationNames()
	cls := ruleset.Classify(names,
		[]subnet.Subnet{subnet.MustParse("192.0.2.0/24")}, nil,
		[]subnet.Subnet{subnet.MustParse("198.51.100.1/32")}, nil,
		nil, nil)
	doc := ruleset.Synthesize(names, cls)

	payload, err := json.Marshal(doc)
	require.NoError(t, err)

	a := &ScriptApplier{}
	require.NoError(t, a.run(context.Background(), payload, true))
}

// TestRealNftApplyAndDelete commits a full document to the kernel and
// tears the table down again.
func TestRealNftApplyAndDelete(t *testing.T) {
	testutil.RequireVM(t)
	testutil.RequireNft(t)

	names := integrationNames()
	doc := ruleset.Synthesize(names, ruleset.Classification{})

	a := NewScriptApplier()
	require.NoError(t, a.Apply(context.Background(), doc))
	require.NoError(t, a.DeleteTable(context.Background(), names.Table))
}
