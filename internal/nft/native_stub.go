//go:build !linux

package nft

import (
	"fmt"

	"grimm.is/nftblockd/internal/errdefs"
)

// Conn is unavailable off Linux; nftables is a Linux kernel facility.
type Conn interface{}

// NewConn reports that the native applier requires Linux.
func NewConn() (Conn, error) {
	return nil, fmt.Errorf("%w: native applier requires linux", errdefs.ErrNftables)
}

// NewNativeApplier reports that the native applier requires Linux.
func NewNativeApplier(conn Conn) Applier {
	return nil
}
