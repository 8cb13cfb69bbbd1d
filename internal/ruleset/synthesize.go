package ruleset

import "grimm.is/nftblockd/internal/subnet"

// Synthesize produces the complete desired firewall state for one cycle as
// a single transactional document.
//
// Object order is semantically significant:
//
//  1. create + delete + recreate of the table (the leading create
//     guarantees the delete cannot fail on a first run, so applying the
//     document always amounts to an atomic full replacement);
//  2. the two direction chains;
//  3. every named set declaration, both families, populated or not;
//  4. anti-lockout accept rules, per chain and family, unlogged;
//  5. custom blocklist drop rules, logged;
//  6. fetched blocklist drop rules, logged;
//  7. only then the element payloads for non-empty sets.
//
// The accept rules precede every drop rule so a packet matching both an
// anti-lockout entry and a blocklist entry is allowed: a management IP that
// shows up on a third-party blocklist must never lock the operator out.
// Declarations are separated from element payloads so the apply subsystem
// can validate structure before committing data.
//
// This is pure data assembly over already validated input; it cannot fail.
func Synthesize(n Names, cls Classification) *Document {
	antiLockout4 := SetName(n.AntiLockoutSet, subnet.IPv4)
	antiLockout6 := SetName(n.AntiLockoutSet, subnet.IPv6)
	custom4 := SetName(n.CustomSet, subnet.IPv4)
	custom6 := SetName(n.CustomSet, subnet.IPv6)
	blocklist4 := SetName(n.BlocklistSet, subnet.IPv4)
	blocklist6 := SetName(n.BlocklistSet, subnet.IPv6)

	b := NewBuilder().
		AddTable(n.Table).
		DeleteTable(n.Table).
		AddTable(n.Table).
		AddChain(n.Table, n.PreroutingChain, HookPrerouting, PreroutingPriority).
		AddChain(n.Table, n.PostroutingChain, HookPostrouting, PostroutingPriority).
		AddSet(n.Table, antiLockout4, subnet.IPv4).
		AddSet(n.Table, antiLockout6, subnet.IPv6).
		AddSet(n.Table, custom4, subnet.IPv4).
		AddSet(n.Table, custom6, subnet.IPv6).
		AddSet(n.Table, blocklist4, subnet.IPv4).
		AddSet(n.Table, blocklist6, subnet.IPv6)

	// Inbound traffic is judged by its source address, outbound by its
	// destination.
	type chainDir struct {
		chain string
		dir   Direction
	}
	chains := []chainDir{
		{n.PreroutingChain, DirSource},
		{n.PostroutingChain, DirDestination},
	}

	for _, c := range chains {
		b.AddRule(n.Table, c.chain, antiLockout4, subnet.IPv4, c.dir, false, VerdictAccept,
			c.chain+" ipv4 anti-lockout rule")
		b.AddRule(n.Table, c.chain, antiLockout6, subnet.IPv6, c.dir, false, VerdictAccept,
			c.chain+" ipv6 anti-lockout rule")
	}
	for _, c := range chains {
		b.AddRule(n.Table, c.chain, custom4, subnet.IPv4, c.dir, true, VerdictDrop,
			c.chain+" ipv4 custom blocklist rule")
		b.AddRule(n.Table, c.chain, custom6, subnet.IPv6, c.dir, true, VerdictDrop,
			c.chain+" ipv6 custom blocklist rule")
	}
	for _, c := range chains {
		b.AddRule(n.Table, c.chain, blocklist4, subnet.IPv4, c.dir, true, VerdictDrop,
			c.chain+" ipv4 blocklist rule")
		b.AddRule(n.Table, c.chain, blocklist6, subnet.IPv6, c.dir, true, VerdictDrop,
			c.chain+" ipv6 blocklist rule")
	}

	for _, set := range []*NamedSet{
		cls.AntiLockoutIPv4, cls.AntiLockoutIPv6,
		cls.CustomIPv4, cls.CustomIPv6,
		cls.BlocklistIPv4, cls.BlocklistIPv6,
	} {
		if set == nil || len(set.Elements) == 0 {
			continue
		}
		b.AddElements(n.Table, set.Name, set.Elements)
	}

	return b.Build()
}

// DeleteDocument builds the minimal document tearing down the table and
// all its contents.
func DeleteDocument(table string) *Document {
	return NewBuilder().DeleteTable(table).Build()
}
