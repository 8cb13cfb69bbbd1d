// Package iptrie collapses a set of CIDR subnets into the minimal covering
// set using a binary prefix trie: any subnet fully contained in a broader
// one already present is dropped, as are exact duplicates.
package iptrie

import (
	"sort"

	"grimm.is/nftblockd/internal/subnet"
)

// node is a binary prefix trie node. Once isSubnet is set no descendant may
// carry it too; insert enforces this by dropping the children of a node the
// moment it is marked.
type node struct {
	children [2]*node
	isSubnet bool
}

// insert walks the subnet's address bits from the most significant bit down
// to its prefix length, descending one trie level per bit. It reports false
// when the subnet is already covered by a broader entry on the path or is
// an exact duplicate, true when it was newly inserted.
func (n *node) insert(s subnet.Subnet) bool {
	cur := n
	for i := 0; i < s.PrefixLen(); i++ {
		if cur.isSubnet {
			// Covered by a broader subnet higher up.
			return false
		}
		bit := s.Bit(i)
		if cur.children[bit] == nil {
			cur.children[bit] = &node{}
		}
		cur = cur.children[bit]
	}
	if cur.isSubnet {
		// Exact duplicate.
		return false
	}
	cur.isSubnet = true
	// Drop any more specific subnets inserted under this node. Input is
	// sorted broadest first, so this only fires on prefix-length ties, but
	// it is required for correctness when it does.
	cur.children = [2]*node{}
	return true
}

// Deduplicate returns the minimal equivalent set of the given subnets.
// Sorting broadest-first guarantees a covering subnet is inserted before
// anything it absorbs. Each family gets its own trie; IPv4 and IPv6 are
// never compared. Surviving elements keep the sorted (broadest first)
// order. The trie lives only for the duration of the call.
//
// Complexity is O(h*n*log n) where h is the trie height, at most 32 for
// IPv4 and 128 for IPv6.
func Deduplicate(subnets []subnet.Subnet) []subnet.Subnet {
	sorted := make([]subnet.Subnet, len(subnets))
	copy(sorted, subnets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PrefixLen() < sorted[j].PrefixLen()
	})

	roots := make(map[subnet.Family]*node, 2)
	var result []subnet.Subnet
	for _, s := range sorted {
		root := roots[s.Family()]
		if root == nil {
			root = &node{}
			roots[s.Family()] = root
		}
		if root.insert(s) {
			result = append(result, s)
		}
	}
	return result
}
