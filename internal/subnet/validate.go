package subnet

import (
	"fmt"
	"strings"

	"grimm.is/nftblockd/internal/errdefs"
	"grimm.is/nftblockd/internal/logging"
)

// SplitList tokenizes a raw blocklist body. With an empty delimiter the
// input is split on any whitespace; otherwise on the delimiter, with each
// token trimmed. Empty tokens are dropped.
func SplitList(s, delimiter string) []string {
	var raw []string
	if delimiter == "" {
		raw = strings.Fields(s)
	} else {
		raw = strings.Split(s, delimiter)
	}
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Validate converts raw strings into Subnets of the given family.
//
// In strict mode the first malformed, wrong-family, or non-network-aligned
// entry fails the whole batch with errdefs.ErrParse naming the entry.
// Strict mode is for administrator-controlled sets (anti-lockout, custom
// blocklists), where a silently dropped entry could lock the operator out.
//
// In lenient mode bad entries are logged and skipped; fetched blocklists
// are high-volume and externally sourced, so one noisy line must not abort
// the cycle.
//
// Returns nil when no entry survived validation.
func Validate(entries []string, family Family, strict bool) ([]Subnet, error) {
	var out []Subnet
	for _, raw := range entries {
		sn, err := Parse(raw)
		switch {
		case err != nil:
			if strict {
				return nil, fmt.Errorf("%w: invalid entry %q", errdefs.ErrParse, raw)
			}
			logging.Warn("skipping entry that could not be parsed", "entry", raw, "err", err)
			continue
		case sn.Family() != family:
			if strict {
				return nil, fmt.Errorf("%w: entry %q is not an %s address", errdefs.ErrParse, raw, family)
			}
			logging.Warn("skipping entry of wrong family", "entry", raw, "want", family.String())
			continue
		case !sn.IsAligned():
			if strict {
				return nil, fmt.Errorf("%w: entry %q is not a network address (host bits set)", errdefs.ErrParse, raw)
			}
			logging.Warn("skipping non-aligned entry", "entry", raw)
			continue
		}
		out = append(out, sn)
	}
	return out, nil
}
