// Package errdefs defines the error kinds shared across the daemon.
//
// Errors are classified by wrapping one of these sentinels with
// fmt.Errorf("%w: ...") and matched with errors.Is. The kind decides how a
// failure is handled: parse errors in strict contexts abort the cycle,
// request errors feed the retry policy, nftables errors are always fatal to
// the cycle.
package errdefs

import "errors"

var (
	// ErrRequest indicates a blocklist fetch over the network failed.
	ErrRequest = errors.New("request error")

	// ErrFile indicates a local blocklist file could not be read.
	ErrFile = errors.New("file error")

	// ErrParse indicates a malformed address or CIDR, or an address with
	// host bits set where a network address is required.
	ErrParse = errors.New("parse error")

	// ErrDeserialize indicates malformed JSON configuration input.
	ErrDeserialize = errors.New("deserialize error")

	// ErrNftables indicates the apply subsystem rejected a ruleset.
	ErrNftables = errors.New("nftables error")

	// ErrNoAddressesParsed indicates a configured set ended up empty after
	// validation, where emptiness is invalid.
	ErrNoAddressesParsed = errors.New("no addresses parsed")

	// ErrTableNotFound indicates an operation referenced a table that was
	// never declared.
	ErrTableNotFound = errors.New("table not found")

	// ErrChainNotFound indicates an operation referenced a chain that was
	// never declared.
	ErrChainNotFound = errors.New("chain not found")
)
