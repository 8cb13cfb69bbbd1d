// Package nft is the boundary to the privileged nftables apply subsystem.
// An Applier accepts one ruleset document per cycle and commits or rejects
// it as a whole; this program never sees a half-applied state.
package nft

import (
	"context"

	"grimm.is/nftblockd/internal/ruleset"
)

// Applier commits a declarative ruleset document atomically.
type Applier interface {
	// Apply replaces the table's entire state with the document. It blocks
	// until the subsystem accepts or rejects the whole document and
	// reports rejection as errdefs.ErrNftables.
	Apply(ctx context.Context, doc *ruleset.Document) error

	// DeleteTable tears down the named table and all its contents.
	DeleteTable(ctx context.Context, table string) error
}
