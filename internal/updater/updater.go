// Package updater runs the periodic update cycle: fetch the configured
// blocklists, validate and deduplicate them together with the static
// administrator sets, synthesize one declarative ruleset document, and
// hand it to the apply subsystem. One cycle either fully succeeds or
// changes nothing.
package updater

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grimm.is/nftblockd/internal/blocklist"
	"grimm.is/nftblockd/internal/clock"
	"grimm.is/nftblockd/internal/config"
	"grimm.is/nftblockd/internal/errdefs"
	"grimm.is/nftblockd/internal/iptrie"
	"grimm.is/nftblockd/internal/logging"
	"grimm.is/nftblockd/internal/nft"
	"grimm.is/nftblockd/internal/ruleset"
	"grimm.is/nftblockd/internal/subnet"
)

// Fetcher downloads one blocklist endpoint. Satisfied by
// blocklist.Fetcher; tests substitute their own.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]string, error)
}

// Service owns the update loop. The static anti-lockout and custom sets
// are parsed once at construction under strict validation; only the
// fetched blocklists change between cycles.
type Service struct {
	cfg     config.Config
	fetcher Fetcher
	applier nft.Applier
	names   ruleset.Names

	antiLockout4 []subnet.Subnet
	antiLockout6 []subnet.Subnet
	custom4      []subnet.Subnet
	custom6      []subnet.Subnet

	retry RetryPolicy
	clock clock.Clock
	log   *logging.Logger
}

// New parses the static sets and wires the loop. A configured
// anti-lockout literal or custom blocklist file that yields no entries is
// errdefs.ErrNoAddressesParsed: silently applying a ruleset without the
// protection the administrator asked for is how you lock yourself out.
func New(cfg config.Config, fetcher Fetcher, applier nft.Applier) (*Service, error) {
	s := &Service{
		cfg:     cfg,
		fetcher: fetcher,
		applier: applier,
		names: ruleset.Names{
			Table:            cfg.TableName,
			PreroutingChain:  cfg.PreroutingChain,
			PostroutingChain: cfg.PostroutingChain,
			BlocklistSet:     cfg.BlocklistSet,
			AntiLockoutSet:   cfg.AntiLockoutSet,
			CustomSet:        cfg.CustomSet,
		},
		retry: RetryPolicy{
			MaxAttempts:  cfg.RetryAttempts,
			BaseInterval: cfg.RetryInterval,
		},
		clock: clock.RealClock{},
		log:   logging.WithComponent("updater"),
	}

	var err error
	if s.antiLockout4, err = s.staticList("anti-lockout ipv4", cfg.AntiLockoutIPv4, subnet.IPv4); err != nil {
		return nil, err
	}
	if s.antiLockout6, err = s.staticList("anti-lockout ipv6", cfg.AntiLockoutIPv6, subnet.IPv6); err != nil {
		return nil, err
	}
	if s.custom4, err = s.staticFile("custom blocklist ipv4", cfg.CustomBlocklistIPv4Path, subnet.IPv4); err != nil {
		return nil, err
	}
	if s.custom6, err = s.staticFile("custom blocklist ipv6", cfg.CustomBlocklistIPv6Path, subnet.IPv6); err != nil {
		return nil, err
	}
	return s, nil
}

// staticList parses a delimiter-separated literal under strict
// validation. An unconfigured literal is nil.
func (s *Service) staticList(what, literal string, family subnet.Family) ([]subnet.Subnet, error) {
	if literal == "" {
		return nil, nil
	}
	subnets, err := subnet.Validate(entriesOf(literal, s.cfg.Delimiter), family, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if len(subnets) == 0 {
		return nil, fmt.Errorf("%w: %s yielded no entries", errdefs.ErrNoAddressesParsed, what)
	}
	return iptrie.Deduplicate(subnets), nil
}

// staticFile is staticList for an administrator-supplied file.
func (s *Service) staticFile(what, path string, family subnet.Family) ([]subnet.Subnet, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := blocklist.ReadFile(path)
	if err != nil {
		return nil, err
	}
	subnets, err := subnet.Validate(entriesOf(raw, s.cfg.Delimiter), family, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if len(subnets) == 0 {
		return nil, fmt.Errorf("%w: %s %s yielded no entries", errdefs.ErrNoAddressesParsed, what, path)
	}
	return iptrie.Deduplicate(subnets), nil
}

// entriesOf splits raw text into candidate entries: line by line, blank
// lines and #-comments dropped, each remaining line split by the
// configured delimiter.
func entriesOf(raw, delimiter string) []string {
	var entries []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, subnet.SplitList(line, delimiter)...)
	}
	return entries
}

// fetchFamily downloads and leniently validates one family's blocklist.
// An unconfigured URL is nil. An endpoint that responds with an empty
// body gets a warning and contributes nothing; an endpoint whose every
// entry fails validation is errdefs.ErrNoAddressesParsed, since that
// almost always means the format changed out from under us.
func (s *Service) fetchFamily(ctx context.Context, url string, family subnet.Family) ([]subnet.Subnet, error) {
	if url == "" {
		return nil, nil
	}
	lines, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		s.log.Warn("blocklist endpoint returned no entries", "family", family.String(), "url", url)
		return nil, nil
	}
	var entries []string
	for _, line := range lines {
		entries = append(entries, subnet.SplitList(line, s.cfg.Delimiter)...)
	}
	subnets, err := subnet.Validate(entries, family, false)
	if err != nil {
		return nil, err
	}
	if len(subnets) == 0 {
		return nil, fmt.Errorf("%w: no valid %s entries from %s", errdefs.ErrNoAddressesParsed, family.String(), url)
	}
	return iptrie.Deduplicate(subnets), nil
}

// Cycle runs one full update: fetch, validate, deduplicate, synthesize,
// apply.
func (s *Service) Cycle(ctx context.Context) error {
	start := s.clock.Now()

	blocklist4, err := s.fetchFamily(ctx, s.cfg.IPv4URL, subnet.IPv4)
	if err != nil {
		return err
	}
	blocklist6, err := s.fetchFamily(ctx, s.cfg.IPv6URL, subnet.IPv6)
	if err != nil {
		return err
	}

	cls := ruleset.Classify(s.names, blocklist4, blocklist6,
		s.antiLockout4, s.antiLockout6, s.custom4, s.custom6)
	doc := ruleset.Synthesize(s.names, cls)

	if err := s.applier.Apply(ctx, doc); err != nil {
		return err
	}
	s.log.Info("ruleset applied",
		"table", s.names.Table,
		"blocklist_ipv4", len(blocklist4),
		"blocklist_ipv6", len(blocklist6),
		"elapsed", s.clock.Since(start).Round(time.Millisecond).String())
	return nil
}

// Preview synthesizes the ruleset from the static sets only, without
// fetching or applying. Used by the check subcommand.
func (s *Service) Preview() *ruleset.Document {
	cls := ruleset.Classify(s.names, nil, nil,
		s.antiLockout4, s.antiLockout6, s.custom4, s.custom6)
	return ruleset.Synthesize(s.names, cls)
}

// Run loops Cycle until the context is cancelled. A successful cycle
// resets the failure count and sleeps the configured interval; a failed
// cycle sleeps a jittered retry delay. After MaxAttempts consecutive
// failures Run returns ErrRetriesExhausted wrapping the last cycle error.
func (s *Service) Run(ctx context.Context) error {
	failures := 0
	for {
		err := s.Cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			failures++
			if failures >= s.retry.MaxAttempts {
				return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, failures, err)
			}
			delay := s.retry.Delay()
			s.log.Warn("update cycle failed, retrying",
				"error", err, "attempt", failures, "max_attempts", s.retry.MaxAttempts,
				"delay", delay.Round(time.Millisecond).String())
			if !s.clock.Sleep(ctx, delay) {
				return nil
			}
			continue
		}
		failures = 0
		if !s.clock.Sleep(ctx, s.cfg.Interval) {
			return nil
		}
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(c clock.Clock) { s.clock = c }
