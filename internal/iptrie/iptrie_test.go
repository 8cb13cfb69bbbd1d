package iptrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/nftblockd/internal/subnet"
)

func parse(t *testing.T, entries ...string) []subnet.Subnet {
	t.Helper()
	out := make([]subnet.Subnet, 0, len(entries))
	for _, e := range entries {
		out = append(out, subnet.MustParse(e))
	}
	return out
}

func strs(subnets []subnet.Subnet) []string {
	out := make([]string, 0, len(subnets))
	for _, s := range subnets {
		out = append(out, s.String())
	}
	return out
}

func TestDeduplicateAbsorbsNarrower(t *testing.T) {
	// The /8 absorbs everything inside it regardless of input order.
	got := Deduplicate(parse(t,
		"10.1.0.0/16",
		"10.0.0.0/8",
		"10.2.3.0/24",
		"11.0.0.0/8",
	))
	assert.Equal(t, []string{"10.0.0.0/8", "11.0.0.0/8"}, strs(got))
}

func TestDeduplicateExactDuplicates(t *testing.T) {
	got := Deduplicate(parse(t,
		"192.0.2.0/24",
		"192.0.2.0/24",
		"192.0.2.0/24",
	))
	assert.Equal(t, []string{"192.0.2.0/24"}, strs(got))
}

func TestDeduplicateDisjoint(t *testing.T) {
	in := parse(t, "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16")
	got := Deduplicate(in)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}, strs(got))
}

func TestDeduplicateUniversalPrefix(t *testing.T) {
	// /0 absorbs the entire family.
	got := Deduplicate(parse(t,
		"0.0.0.0/0",
		"10.0.0.0/8",
		"192.0.2.1/32",
	))
	assert.Equal(t, []string{"0.0.0.0/0"}, strs(got))
}

func TestDeduplicateFamiliesAreIndependent(t *testing.T) {
	// An IPv4 /0 must not absorb IPv6 subnets.
	got := Deduplicate(parse(t,
		"0.0.0.0/0",
		"2001:db8::/32",
		"2001:db8:1::/48",
	))
	assert.Equal(t, []string{"0.0.0.0/0", "2001:db8::/32"}, strs(got))
}

func TestDeduplicateHostAddresses(t *testing.T) {
	got := Deduplicate(parse(t,
		"192.0.2.1/32",
		"192.0.2.2/32",
		"192.0.2.0/24",
	))
	assert.Equal(t, []string{"192.0.2.0/24"}, strs(got))
}

func TestDeduplicateBroadestFirstOrder(t *testing.T) {
	// Survivors come out broadest first, stable within equal lengths.
	got := Deduplicate(parse(t,
		"192.0.2.0/24",
		"10.0.0.0/8",
		"198.51.100.0/24",
	))
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.0/24", "198.51.100.0/24"}, strs(got))
}

func TestDeduplicateIdempotent(t *testing.T) {
	once := Deduplicate(parse(t, "10.0.0.0/8", "10.1.0.0/16", "11.0.0.0/8"))
	twice := Deduplicate(once)
	assert.Equal(t, strs(once), strs(twice))
}

func TestDeduplicateEmpty(t *testing.T) {
	assert.Empty(t, Deduplicate(nil))
	assert.Empty(t, Deduplicate([]subnet.Subnet{}))
}

func TestDeduplicateMixedOverlaps(t *testing.T) {
	got := Deduplicate(parse(t,
		"192.168.1.0/24",
		"192.168.0.0/16",
		"10.1.0.0/16",
		"10.0.0.0/8",
		"172.16.5.0/24",
		"172.16.0.0/16",
		"8.8.8.0/24",
	))
	assert.ElementsMatch(t, []string{
		"10.0.0.0/8", "192.168.0.0/16", "172.16.0.0/16", "8.8.8.0/24",
	}, strs(got))
}

func TestDeduplicateIPv6Overlaps(t *testing.T) {
	got := Deduplicate(parse(t,
		"2001:db8::/64",
		"2001:db8::/32",
		"2001:db8:0:1::/64",
		"fe80::/10",
		"fe80::1/128",
	))
	assert.ElementsMatch(t, []string{"fe80::/10", "2001:db8::/32"}, strs(got))
}

func TestDeduplicateIPv6UniversalPrefix(t *testing.T) {
	got := Deduplicate(parse(t, "::1/128", "::/0"))
	assert.Equal(t, []string{"::/0"}, strs(got))
}

func TestDeduplicateIPv6(t *testing.T) {
	got := Deduplicate(parse(t,
		"2001:db8::/32",
		"2001:db8:dead::/48",
		"2001:db8::1/128",
		"fd00::/8",
	))
	assert.Equal(t, []string{"fd00::/8", "2001:db8::/32"}, strs(got))
}
