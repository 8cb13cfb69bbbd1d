// Package subnet provides the typed IPv4/IPv6 network model used throughout
// the daemon: parsing, canonical rendering, alignment checks, and batch
// validation of raw blocklist entries.
package subnet

import (
	"fmt"
	"net/netip"
	"strings"

	"grimm.is/nftblockd/internal/errdefs"
)

// Family identifies the address family of a subnet. Subnets of different
// families are never compared or merged.
type Family uint8

const (
	IPv4 Family = iota + 1
	IPv6
)

// String returns the lowercase family name used in set and log output.
func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	}
	return "unknown"
}

// MaxPrefix returns the number of address bits for the family.
func (f Family) MaxPrefix() int {
	if f == IPv4 {
		return 32
	}
	return 128
}

// Subnet is a CIDR network: address bits plus prefix length. The zero value
// is invalid; construct via Parse or MustParse.
type Subnet struct {
	prefix netip.Prefix
}

// Parse converts a CIDR string ("10.0.0.0/8", "2001:db8::/32") or a bare
// address (implying the family's maximum prefix length) into a Subnet.
// Syntax errors and out-of-range prefix lengths are reported as
// errdefs.ErrParse.
func Parse(s string) (Subnet, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return Subnet{}, fmt.Errorf("%w: %v", errdefs.ErrParse, err)
		}
		return Subnet{prefix: p}, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return Subnet{}, fmt.Errorf("%w: %v", errdefs.ErrParse, err)
	}
	return Subnet{prefix: netip.PrefixFrom(addr, addr.BitLen())}, nil
}

// MustParse is Parse that panics on error, for tests and constants.
func MustParse(s string) Subnet {
	sn, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sn
}

// Family returns the subnet's address family.
func (s Subnet) Family() Family {
	if s.prefix.Addr().Is4() {
		return IPv4
	}
	return IPv6
}

// PrefixLen returns the prefix length in bits.
func (s Subnet) PrefixLen() int {
	return s.prefix.Bits()
}

// Addr returns the subnet's address as parsed, host bits included.
func (s Subnet) Addr() netip.Addr {
	return s.prefix.Addr()
}

// Prefix returns the underlying netip.Prefix.
func (s Subnet) Prefix() netip.Prefix {
	return s.prefix
}

// IsAligned reports whether all bits beyond the prefix length are zero,
// i.e. the address denotes the base of its range rather than a host in it.
func (s Subnet) IsAligned() bool {
	return s.prefix.Masked() == s.prefix
}

// Masked returns the network-aligned form of the subnet.
func (s Subnet) Masked() Subnet {
	return Subnet{prefix: s.prefix.Masked()}
}

// String renders the canonical form: the network address, never the
// original host address.
func (s Subnet) String() string {
	return s.prefix.Masked().String()
}

// NetworkAddr renders only the network address without the prefix length.
func (s Subnet) NetworkAddr() string {
	return s.prefix.Masked().Addr().String()
}

// Bit returns the i-th most significant bit of the network address, with
// i counted from zero. Only bits below PrefixLen are meaningful.
func (s Subnet) Bit(i int) byte {
	var b []byte
	if s.Family() == IPv4 {
		a := s.prefix.Masked().Addr().As4()
		b = a[:]
	} else {
		a := s.prefix.Masked().Addr().As16()
		b = a[:]
	}
	return (b[i/8] >> (7 - i%8)) & 1
}

// Compare orders subnets by (family, address, prefix length). It returns a
// negative value when s sorts before o, zero when equal.
func (s Subnet) Compare(o Subnet) int {
	if c := int(s.Family()) - int(o.Family()); c != 0 {
		return c
	}
	if c := s.prefix.Masked().Addr().Compare(o.prefix.Masked().Addr()); c != 0 {
		return c
	}
	return s.PrefixLen() - o.PrefixLen()
}
