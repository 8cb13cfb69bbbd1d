package nft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"grimm.is/nftblockd/internal/errdefs"
	"grimm.is/nftblockd/internal/ruleset"
)

// ScriptApplier applies documents by piping their JSON rendering to the
// nft binary. `nft -f` commits the whole input as one transaction, so the
// delete-then-recreate sequence at the document head either fully lands or
// leaves the previous state untouched.
type ScriptApplier struct {
	// NftPath overrides the nft binary path. Empty means "nft" from PATH.
	NftPath string

	// Validate runs a check-only pass (`nft -c`) before committing.
	Validate bool
}

// NewScriptApplier returns a ScriptApplier with validation enabled.
func NewScriptApplier() *ScriptApplier {
	return &ScriptApplier{Validate: true}
}

func (a *ScriptApplier) nft() string {
	if a.NftPath != "" {
		return a.NftPath
	}
	return "nft"
}

func (a *ScriptApplier) run(ctx context.Context, payload []byte, checkOnly bool) error {
	args := []string{"-j", "-f", "-"}
	if checkOnly {
		args = append([]string{"-c"}, args...)
	}
	cmd := exec.CommandContext(ctx, a.nft(), args...)
	cmd.Stdin = bytes.NewReader(payload)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: nft %v failed: %v: %s", errdefs.ErrNftables, args, err, bytes.TrimSpace(output))
	}
	return nil
}

// Apply validates (optionally) and commits the document.
func (a *ScriptApplier) Apply(ctx context.Context, doc *ruleset.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encoding ruleset: %v", errdefs.ErrNftables, err)
	}
	if a.Validate {
		if err := a.run(ctx, payload, true); err != nil {
			return err
		}
	}
	return a.run(ctx, payload, false)
}

// DeleteTable removes the table and all its contents. Deleting a table
// that does not exist is reported as errdefs.ErrNftables; callers that
// treat "already gone" as success downgrade it themselves.
func (a *ScriptApplier) DeleteTable(ctx context.Context, table string) error {
	payload, err := json.Marshal(ruleset.DeleteDocument(table))
	if err != nil {
		return fmt.Errorf("%w: encoding delete: %v", errdefs.ErrNftables, err)
	}
	return a.run(ctx, payload, false)
}

var _ Applier = (*ScriptApplier)(nil)
