// Package brand provides centralized naming constants for the daemon.
// Keeping them in one place makes the binary easy to rename or fork.
package brand

const (
	// Name is the product name used in log output and version strings.
	Name = "nftblockd"

	// BinaryName is the installed executable name.
	BinaryName = "nftblockd"

	// Description is a one-line summary printed by the usage text.
	Description = "nftables blocklist updater with anti-lockout protection"

	// EnvPrefix is the prefix for all configuration environment variables.
	EnvPrefix = "NFTBLOCKD_"

	// LogPrefix is the process prefix used by the console log handler.
	LogPrefix = "NFTBLOCKD"

	// DefaultConfigFile is consulted when no -config flag is given.
	DefaultConfigFile = "/etc/nftblockd/nftblockd.hcl"
)

// Version is overridden at build time via
// -ldflags "-X grimm.is/nftblockd/internal/brand.Version=...".
var Version = "dev"
