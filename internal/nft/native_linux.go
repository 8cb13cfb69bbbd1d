//go:build linux

package nft

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"github.com/google/nftables/userdata"
	"go4.org/netipx"
	"golang.org/x/sys/unix"

	"grimm.is/nftblockd/internal/errdefs"
	"grimm.is/nftblockd/internal/ruleset"
	"grimm.is/nftblockd/internal/subnet"
)

// Protocol constants for meta nfproto matching in the inet table.
const (
	protoIPv4 = unix.NFPROTO_IPV4
	protoIPv6 = unix.NFPROTO_IPV6
)

// IP header offsets for payload address matching.
const (
	ipv4SrcOffset = 12
	ipv4DstOffset = 16
	ipv4AddrLen   = 4

	ipv6SrcOffset = 8
	ipv6DstOffset = 24
	ipv6AddrLen   = 16
)

// Conn abstracts the nftables netlink connection operations the native
// applier needs, so tests can run without a kernel.
type Conn interface {
	AddTable(t *nftables.Table) *nftables.Table
	DelTable(t *nftables.Table)
	AddChain(c *nftables.Chain) *nftables.Chain
	AddSet(s *nftables.Set, elements []nftables.SetElement) error
	AddRule(r *nftables.Rule) *nftables.Rule
	Flush() error
}

// NewConn opens a lasting netlink connection to nftables.
func NewConn() (Conn, error) {
	conn, err := nftables.New(nftables.AsLasting())
	if err != nil {
		return nil, fmt.Errorf("%w: opening netlink connection: %v", errdefs.ErrNftables, err)
	}
	return conn, nil
}

// NativeApplier commits documents over netlink instead of shelling out to
// the nft binary. All objects of a document go into one batch, committed
// by a single Flush, which gives the same all-or-nothing semantics as
// `nft -f`.
type NativeApplier struct {
	conn Conn
}

// NewNativeApplier creates a NativeApplier over the given connection.
func NewNativeApplier(conn Conn) *NativeApplier {
	return &NativeApplier{conn: conn}
}

// Apply walks the document in order, translating every object into its
// netlink form, and commits the batch.
func (a *NativeApplier) Apply(ctx context.Context, doc *ruleset.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tables := make(map[string]*nftables.Table)
	chains := make(map[string]*nftables.Chain)
	sets := make(map[string]*nftables.Set)

	for _, obj := range doc.Objects {
		switch {
		case obj.Delete != nil:
			a.conn.DelTable(&nftables.Table{Family: nftables.TableFamilyINet, Name: obj.Delete.Name})

		case obj.Table != nil:
			t := a.conn.AddTable(&nftables.Table{Family: nftables.TableFamilyINet, Name: obj.Table.Name})
			tables[obj.Table.Name] = t

		case obj.Chain != nil:
			t := tables[obj.Chain.Table]
			if t == nil {
				return fmt.Errorf("%w: %s", errdefs.ErrTableNotFound, obj.Chain.Table)
			}
			prio := nftables.ChainPriority(obj.Chain.Priority)
			hook := nftables.ChainHookPrerouting
			if obj.Chain.Hook == ruleset.HookPostrouting {
				hook = nftables.ChainHookPostrouting
			}
			c := a.conn.AddChain(&nftables.Chain{
				Table:    t,
				Name:     obj.Chain.Name,
				Type:     nftables.ChainTypeFilter,
				Hooknum:  hook,
				Priority: &prio,
				Policy:   chainPolicy(nftables.ChainPolicyAccept),
			})
			chains[obj.Chain.Name] = c

		case obj.Set != nil:
			t := tables[obj.Set.Table]
			if t == nil {
				return fmt.Errorf("%w: %s", errdefs.ErrTableNotFound, obj.Set.Table)
			}
			keyType := nftables.TypeIPAddr
			if obj.Set.Type == ruleset.ElementType(subnet.IPv6) {
				keyType = nftables.TypeIP6Addr
			}
			s := &nftables.Set{
				Table:    t,
				Name:     obj.Set.Name,
				KeyType:  keyType,
				Interval: true,
			}
			if err := a.conn.AddSet(s, nil); err != nil {
				return fmt.Errorf("%w: adding set %s: %v", errdefs.ErrNftables, obj.Set.Name, err)
			}
			sets[obj.Set.Name] = s

		case obj.Rule != nil:
			if err := a.addRule(obj.Rule, tables, chains); err != nil {
				return err
			}

		case obj.Element != nil:
			s := sets[obj.Element.Set]
			if s == nil {
				return fmt.Errorf("%w: set %s was never declared", errdefs.ErrNftables, obj.Element.Set)
			}
			if err := a.conn.AddSet(s, intervalElements(obj.Element.Elements)); err != nil {
				return fmt.Errorf("%w: populating set %s: %v", errdefs.ErrNftables, obj.Element.Set, err)
			}
		}
	}

	if err := a.conn.Flush(); err != nil {
		return fmt.Errorf("%w: committing batch: %v", errdefs.ErrNftables, err)
	}
	return nil
}

// DeleteTable removes the table in its own batch.
func (a *NativeApplier) DeleteTable(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.conn.DelTable(&nftables.Table{Family: nftables.TableFamilyINet, Name: table})
	if err := a.conn.Flush(); err != nil {
		return fmt.Errorf("%w: deleting table %s: %v", errdefs.ErrNftables, table, err)
	}
	return nil
}

func (a *NativeApplier) addRule(r *ruleset.RuleSpec, tables map[string]*nftables.Table, chains map[string]*nftables.Chain) error {
	t := tables[r.Table]
	if t == nil {
		return fmt.Errorf("%w: %s", errdefs.ErrTableNotFound, r.Table)
	}
	c := chains[r.Chain]
	if c == nil {
		return fmt.Errorf("%w: %s", errdefs.ErrChainNotFound, r.Chain)
	}

	var exprs []expr.Any
	for _, st := range r.Expr {
		switch {
		case st.Match != nil:
			exprs = append(exprs, matchExprs(st.Match)...)
		case st.Log != nil:
			exprs = append(exprs, &expr.Log{
				Key:  1 << unix.NFTA_LOG_PREFIX,
				Data: []byte(st.Log.Prefix),
			})
		case st.Verdict == ruleset.VerdictAccept:
			exprs = append(exprs, &expr.Verdict{Kind: expr.VerdictAccept})
		case st.Verdict == ruleset.VerdictDrop:
			exprs = append(exprs, &expr.Verdict{Kind: expr.VerdictDrop})
		}
	}

	a.conn.AddRule(&nftables.Rule{
		Table:    t,
		Chain:    c,
		Exprs:    exprs,
		UserData: userDataComment(r.Comment),
	})
	return nil
}

// matchExprs loads the packet's source or destination address and looks it
// up in the named set, guarded by a meta nfproto check so IPv4 rules never
// inspect IPv6 packets in the shared inet table.
func matchExprs(m *ruleset.MatchStmt) []expr.Any {
	isIPv6 := m.Protocol == ruleset.Protocol(subnet.IPv6)

	proto := byte(protoIPv4)
	offset := uint32(ipv4SrcOffset)
	length := uint32(ipv4AddrLen)
	if isIPv6 {
		proto = byte(protoIPv6)
		offset = ipv6SrcOffset
		length = ipv6AddrLen
	}
	if m.Field == ruleset.DirDestination {
		if isIPv6 {
			offset = ipv6DstOffset
		} else {
			offset = ipv4DstOffset
		}
	}

	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyNFPROTO, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte{proto}},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseNetworkHeader,
			Offset:       offset,
			Len:          length,
		},
		&expr.Lookup{SourceRegister: 1, SetName: m.Set},
	}
}

// intervalElements converts CIDR subnets into interval set elements: a
// start marker at the first address of the range and an exclusive end
// marker just past the last. A range ending at the top of the address
// space gets no end marker.
func intervalElements(elements []subnet.Subnet) []nftables.SetElement {
	out := make([]nftables.SetElement, 0, len(elements)*2)
	for _, s := range elements {
		r := netipx.RangeOfPrefix(s.Masked().Prefix())
		out = append(out, nftables.SetElement{Key: addrBytes(r.From())})
		if next := r.To().Next(); next.IsValid() {
			out = append(out, nftables.SetElement{Key: addrBytes(next), IntervalEnd: true})
		}
	}
	return out
}

func addrBytes(a netip.Addr) []byte {
	if a.Is4() {
		b := a.As4()
		return b[:]
	}
	b := a.As16()
	return b[:]
}

func chainPolicy(p nftables.ChainPolicy) *nftables.ChainPolicy {
	return &p
}

// userDataComment encodes a rule comment as nftables userdata.
func userDataComment(comment string) []byte {
	if comment == "" {
		return nil
	}
	return userdata.AppendString(nil, userdata.TypeComment, comment)
}

var _ Applier = (*NativeApplier)(nil)
