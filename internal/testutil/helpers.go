package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// RequireVM skips the test unless the NFTBLOCKD_VM_TEST environment
// variable is set. Tests that talk to a real kernel (nftables over
// netlink, the nft binary) only run in the VM harness.
func RequireVM(t *testing.T) {
	t.Helper()
	if os.Getenv("NFTBLOCKD_VM_TEST") == "" {
		t.Skip("Skipping test: requires NFTBLOCKD_VM_TEST environment")
	}
}

// RequireNft skips the test if the nft binary is not on PATH.
func RequireNft(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("nft"); err != nil {
		t.Skip("Skipping test: nft binary not found")
	}
}
