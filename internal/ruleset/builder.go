package ruleset

import (
	"fmt"

	"grimm.is/nftblockd/internal/subnet"
)

// Builder accumulates document objects in order. All strings passed in are
// copied into the document's own specs, so the builder never borrows from
// transient validator output.
type Builder struct {
	objects []Object
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// DeleteTable appends a delete command for the table and everything in it.
func (b *Builder) DeleteTable(name string) *Builder {
	b.objects = append(b.objects, Object{Delete: &TableSpec{Family: FamilyInet, Name: name}})
	return b
}

// AddTable declares the top-level inet table.
func (b *Builder) AddTable(name string) *Builder {
	b.objects = append(b.objects, Object{Table: &TableSpec{Family: FamilyInet, Name: name}})
	return b
}

// AddChain declares a filter chain attached to the given hook with an
// accept default policy.
func (b *Builder) AddChain(table, name string, hook Hook, priority int) *Builder {
	b.objects = append(b.objects, Object{Chain: &ChainSpec{
		Family:   FamilyInet,
		Table:    table,
		Name:     name,
		Type:     "filter",
		Hook:     hook,
		Priority: priority,
		Policy:   "accept",
	}})
	return b
}

// AddSet declares a named interval set for the family.
func (b *Builder) AddSet(table, name string, family subnet.Family) *Builder {
	b.objects = append(b.objects, Object{Set: &SetSpec{
		Family: FamilyInet,
		Table:  table,
		Name:   name,
		Type:   ElementType(family),
		Flags:  []string{"interval"},
	}})
	return b
}

// AddRule appends a rule matching the family's packet address field against
// a named set. With log enabled the rule emits a kernel log line prefixed
// "table;chain;set;dropped: " before the verdict; anti-lockout accepts run
// without logging so administrator traffic stays quiet.
func (b *Builder) AddRule(table, chain, set string, family subnet.Family, dir Direction, log bool, verdict Verdict, comment string) *Builder {
	expr := []Statement{{Match: &MatchStmt{
		Protocol: Protocol(family),
		Field:    dir,
		Set:      set,
	}}}
	if log {
		expr = append(expr, Statement{Log: &LogStmt{
			Prefix: fmt.Sprintf("%s;%s;%s;dropped: ", table, chain, set),
		}})
	}
	expr = append(expr, Statement{Verdict: verdict})

	b.objects = append(b.objects, Object{Rule: &RuleSpec{
		Family:  FamilyInet,
		Table:   table,
		Chain:   chain,
		Expr:    expr,
		Comment: comment,
	}})
	return b
}

// AddElements appends the element payload for an already declared set.
func (b *Builder) AddElements(table, set string, elements []subnet.Subnet) *Builder {
	elems := make([]subnet.Subnet, len(elements))
	copy(elems, elements)
	b.objects = append(b.objects, Object{Element: &ElementSpec{
		Family:   FamilyInet,
		Table:    table,
		Set:      set,
		Elements: elems,
	}})
	return b
}

// Build returns the accumulated document.
func (b *Builder) Build() *Document {
	return &Document{Objects: b.objects}
}
