// Package ruleset assembles the declarative nftables configuration for one
// synchronization cycle: a family-agnostic inet table, traffic-direction
// chains, named interval sets, and the ordered rules that make the
// anti-lockout allow decision win over every blocklist drop.
//
// The Document marshals to the nftables JSON schema, so it can be handed
// verbatim to `nft -j -f -` or walked by the native netlink applier.
package ruleset

import (
	"encoding/json"

	"grimm.is/nftblockd/internal/subnet"
)

// FamilyInet is the nftables address family holding both IPv4 and IPv6
// rules in one table.
const FamilyInet = "inet"

// Hook is an netfilter hook a chain attaches to.
type Hook string

const (
	HookPrerouting  Hook = "prerouting"
	HookPostrouting Hook = "postrouting"
)

// Hook priorities chosen so the table's decisions are evaluated before
// generic routing policy.
const (
	PreroutingPriority  = -300
	PostroutingPriority = 300
)

// Direction selects which packet address a rule matches.
type Direction string

const (
	DirSource      Direction = "saddr"
	DirDestination Direction = "daddr"
)

// Verdict is a rule's terminal action.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictDrop   Verdict = "drop"
)

// Protocol returns the nftables payload protocol keyword for the family.
func Protocol(f subnet.Family) string {
	if f == subnet.IPv4 {
		return "ip"
	}
	return "ip6"
}

// ElementType returns the nftables set element type for the family.
func ElementType(f subnet.Family) string {
	if f == subnet.IPv4 {
		return "ipv4_addr"
	}
	return "ipv6_addr"
}

// TableSpec declares (or deletes) a table.
type TableSpec struct {
	Family string `json:"family"`
	Name   string `json:"name"`
}

// ChainSpec declares a base chain attached to a hook.
type ChainSpec struct {
	Family   string `json:"family"`
	Table    string `json:"table"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Hook     Hook   `json:"hook"`
	Priority int    `json:"prio"`
	Policy   string `json:"policy"`
}

// SetSpec declares a named set. The interval flag lets the set hold CIDR
// ranges rather than single addresses.
type SetSpec struct {
	Family string   `json:"family"`
	Table  string   `json:"table"`
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Flags  []string `json:"flags,omitempty"`
}

// ElementSpec appends element payloads to an already declared set.
type ElementSpec struct {
	Family   string
	Table    string
	Set      string
	Elements []subnet.Subnet
}

// MarshalJSON renders elements as nftables prefix expressions.
func (e ElementSpec) MarshalJSON() ([]byte, error) {
	elems := make([]any, 0, len(e.Elements))
	for _, s := range e.Elements {
		elems = append(elems, map[string]any{
			"prefix": map[string]any{
				"addr": s.NetworkAddr(),
				"len":  s.PrefixLen(),
			},
		})
	}
	return json.Marshal(map[string]any{
		"family": e.Family,
		"table":  e.Table,
		"name":   e.Set,
		"elem":   elems,
	})
}

// MatchStmt matches a packet address field against a named set.
type MatchStmt struct {
	Protocol string
	Field    Direction
	Set      string
}

// LogStmt emits a kernel log line with the given prefix before the verdict.
type LogStmt struct {
	Prefix string `json:"prefix"`
}

// Statement is one step of a rule expression. Exactly one field is set.
type Statement struct {
	Match   *MatchStmt
	Log     *LogStmt
	Verdict Verdict
}

// MarshalJSON renders the statement in nftables JSON form.
func (s Statement) MarshalJSON() ([]byte, error) {
	switch {
	case s.Match != nil:
		return json.Marshal(map[string]any{
			"match": map[string]any{
				"op": "==",
				"left": map[string]any{
					"payload": map[string]any{
						"protocol": s.Match.Protocol,
						"field":    string(s.Match.Field),
					},
				},
				"right": "@" + s.Match.Set,
			},
		})
	case s.Log != nil:
		return json.Marshal(map[string]any{"log": s.Log})
	default:
		return json.Marshal(map[string]any{string(s.Verdict): nil})
	}
}

// RuleSpec is one ordered rule in a chain.
type RuleSpec struct {
	Family  string      `json:"family"`
	Table   string      `json:"table"`
	Chain   string      `json:"chain"`
	Expr    []Statement `json:"expr"`
	Comment string      `json:"comment,omitempty"`
}

// Object is one entry of the document's ordered object sequence. Exactly
// one field is set; Delete wraps its table spec in a delete command.
type Object struct {
	Delete  *TableSpec
	Table   *TableSpec
	Chain   *ChainSpec
	Set     *SetSpec
	Rule    *RuleSpec
	Element *ElementSpec
}

// MarshalJSON renders the object under its nftables JSON schema key.
func (o Object) MarshalJSON() ([]byte, error) {
	switch {
	case o.Delete != nil:
		return json.Marshal(map[string]any{"delete": map[string]any{"table": o.Delete}})
	case o.Table != nil:
		return json.Marshal(map[string]any{"table": o.Table})
	case o.Chain != nil:
		return json.Marshal(map[string]any{"chain": o.Chain})
	case o.Set != nil:
		return json.Marshal(map[string]any{"set": o.Set})
	case o.Rule != nil:
		return json.Marshal(map[string]any{"rule": o.Rule})
	default:
		return json.Marshal(map[string]any{"element": o.Element})
	}
}

// Document is the complete desired firewall state for one cycle. It is
// constructed by the synthesizer, never mutated after handoff to an
// applier, and consumed transactionally: the delete-then-recreate sequence
// at its head makes applying it an atomic state replacement.
type Document struct {
	Objects []Object
}

// MarshalJSON renders the document as a top-level nftables ruleset.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"nftables": d.Objects})
}
