package ruleset

import "grimm.is/nftblockd/internal/subnet"

// Names holds the overridable table, chain, and base set names. Set names
// are family-scoped by appending "_ipv4" / "_ipv6" to the base; they must
// stay stable across cycles so the apply subsystem replaces the same sets.
type Names struct {
	Table            string
	PreroutingChain  string
	PostroutingChain string
	BlocklistSet     string
	AntiLockoutSet   string
	CustomSet        string
}

// SetName derives the family-scoped set name from a base name.
func SetName(base string, f subnet.Family) string {
	return base + "_" + f.String()
}

// NamedSet is a family-scoped collection of subnets created fresh each
// cycle. It has no identity across cycles other than its name.
type NamedSet struct {
	Name     string
	Family   subnet.Family
	Elements []subnet.Subnet
}

// Classification routes deduplicated subnets into the named sets the
// synthesizer declares. A nil entry means the corresponding source was not
// configured this cycle; the set is still declared, just left empty.
type Classification struct {
	BlocklistIPv4   *NamedSet
	BlocklistIPv6   *NamedSet
	AntiLockoutIPv4 *NamedSet
	AntiLockoutIPv6 *NamedSet
	CustomIPv4      *NamedSet
	CustomIPv6      *NamedSet
}

// Classify builds the per-family named sets from already deduplicated
// input. Nil input slices yield nil sets; an empty set is valid and never
// an error here.
func Classify(n Names, blocklist4, blocklist6, antiLockout4, antiLockout6, custom4, custom6 []subnet.Subnet) Classification {
	mk := func(base string, f subnet.Family, elems []subnet.Subnet) *NamedSet {
		if elems == nil {
			return nil
		}
		return &NamedSet{Name: SetName(base, f), Family: f, Elements: elems}
	}
	return Classification{
		BlocklistIPv4:   mk(n.BlocklistSet, subnet.IPv4, blocklist4),
		BlocklistIPv6:   mk(n.BlocklistSet, subnet.IPv6, blocklist6),
		AntiLockoutIPv4: mk(n.AntiLockoutSet, subnet.IPv4, antiLockout4),
		AntiLockoutIPv6: mk(n.AntiLockoutSet, subnet.IPv6, antiLockout6),
		CustomIPv4:      mk(n.CustomSet, subnet.IPv4, custom4),
		CustomIPv6:      mk(n.CustomSet, subnet.IPv6, custom6),
	}
}
