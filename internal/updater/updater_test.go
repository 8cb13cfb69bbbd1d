package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/nftblockd/internal/clock"
	"grimm.is/nftblockd/internal/config"
	"grimm.is/nftblockd/internal/errdefs"
	"grimm.is/nftblockd/internal/ruleset"
)

// fakeFetcher serves canned bodies per URL.
type fakeFetcher struct {
	lines map[string][]string
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]string, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.lines[url], nil
}

// fakeApplier records applied documents and fails on demand.
type fakeApplier struct {
	docs    []*ruleset.Document
	deleted []string
	errs    []error // consumed per Apply call; nil entry means success
}

func (a *fakeApplier) Apply(ctx context.Context, doc *ruleset.Document) error {
	var err error
	if len(a.errs) > 0 {
		err, a.errs = a.errs[0], a.errs[1:]
	}
	if err != nil {
		return err
	}
	a.docs = append(a.docs, doc)
	return nil
}

func (a *fakeApplier) DeleteTable(ctx context.Context, table string) error {
	a.deleted = append(a.deleted, table)
	return nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Interval = time.Minute
	cfg.RetryAttempts = 3
	cfg.RetryInterval = 5 * time.Second
	return cfg
}

func elementSets(doc *ruleset.Document) map[string]int {
	out := map[string]int{}
	for _, o := range doc.Objects {
		if o.Element != nil {
			out[o.Element.Set] = len(o.Element.Elements)
		}
	}
	return out
}

func TestCycleAppliesFetchedBlocklists(t *testing.T) {
	cfg := testConfig()
	cfg.IPv4URL = "https://example.com/v4"
	cfg.IPv6URL = "https://example.com/v6"

	fetcher := &fakeFetcher{lines: map[string][]string{
		"https://example.com/v4": {"10.0.0.0/8", "10.1.0.0/16", "192.0.2.0/24"},
		"https://example.com/v6": {"2001:db8::/32"},
	}}
	applier := &fakeApplier{}

	svc, err := New(cfg, fetcher, applier)
	require.NoError(t, err)

	require.NoError(t, svc.Cycle(context.Background()))
	require.Len(t, applier.docs, 1)

	sets := elementSets(applier.docs[0])
	// 10.1.0.0/16 is absorbed by 10.0.0.0/8.
	assert.Equal(t, 2, sets["blocklist_set_ipv4"])
	assert.Equal(t, 1, sets["blocklist_set_ipv6"])
	assert.Equal(t, []string{"https://example.com/v4", "https://example.com/v6"}, fetcher.calls)
}

func TestCycleToleratesLenientEntries(t *testing.T) {
	cfg := testConfig()
	cfg.IPv4URL = "https://example.com/v4"

	fetcher := &fakeFetcher{lines: map[string][]string{
		"https://example.com/v4": {"garbage", "10.0.0.5/24", "2001:db8::/32", "192.0.2.0/24"},
	}}
	applier := &fakeApplier{}

	svc, err := New(cfg, fetcher, applier)
	require.NoError(t, err)
	require.NoError(t, svc.Cycle(context.Background()))

	sets := elementSets(applier.docs[0])
	assert.Equal(t, 1, sets["blocklist_set_ipv4"])
}

func TestCycleUnconfiguredEndpointsSkipped(t *testing.T) {
	fetcher := &fakeFetcher{}
	applier := &fakeApplier{}

	svc, err := New(testConfig(), fetcher, applier)
	require.NoError(t, err)
	require.NoError(t, svc.Cycle(context.Background()))

	assert.Empty(t, fetcher.calls)
	require.Len(t, applier.docs, 1)
	// No element payloads, but the document still declares the sets.
	assert.Empty(t, elementSets(applier.docs[0]))
}

func TestCycleEmptyEndpointWarnsOnly(t *testing.T) {
	cfg := testConfig()
	cfg.IPv4URL = "https://example.com/v4"

	fetcher := &fakeFetcher{lines: map[string][]string{}}
	applier := &fakeApplier{}

	svc, err := New(cfg, fetcher, applier)
	require.NoError(t, err)
	require.NoError(t, svc.Cycle(context.Background()))
	require.Len(t, applier.docs, 1)
}

func TestCycleAllInvalidEntriesFails(t *testing.T) {
	cfg := testConfig()
	cfg.IPv4URL = "https://example.com/v4"

	fetcher := &fakeFetcher{lines: map[string][]string{
		"https://example.com/v4": {"garbage", "more garbage"},
	}}
	svc, err := New(cfg, fetcher, &fakeApplier{})
	require.NoError(t, err)

	err = svc.Cycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrNoAddressesParsed))
}

func TestCycleFetchErrorPropagates(t *testing.T) {
	cfg := testConfig()
	cfg.IPv4URL = "https://example.com/v4"

	fetcher := &fakeFetcher{err: fmt.Errorf("%w: boom", errdefs.ErrRequest)}
	svc, err := New(cfg, fetcher, &fakeApplier{})
	require.NoError(t, err)

	err = svc.Cycle(context.Background())
	assert.True(t, errors.Is(err, errdefs.ErrRequest))
}

func TestNewStaticAntiLockout(t *testing.T) {
	cfg := testConfig()
	cfg.IPv4URL = "https://example.com/v4"
	cfg.AntiLockoutIPv4 = "192.0.2.1/32 192.0.2.2/32"

	fetcher := &fakeFetcher{lines: map[string][]string{
		"https://example.com/v4": {"192.0.2.0/24"},
	}}
	applier := &fakeApplier{}

	svc, err := New(cfg, fetcher, applier)
	require.NoError(t, err)
	require.NoError(t, svc.Cycle(context.Background()))

	sets := elementSets(applier.docs[0])
	// Anti-lockout entries go to their own set even when the blocklist
	// covers them; precedence is decided by rule order, not set content.
	assert.Equal(t, 2, sets["anti_lockout_set_ipv4"])
	assert.Equal(t, 1, sets["blocklist_set_ipv4"])
}

func TestNewStaticSetStrictValidation(t *testing.T) {
	cfg := testConfig()
	cfg.AntiLockoutIPv4 = "192.0.2.1/32 garbage"

	_, err := New(cfg, &fakeFetcher{}, &fakeApplier{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrParse))

	// Host bits set is also fatal for administrator sets.
	cfg = testConfig()
	cfg.AntiLockoutIPv4 = "10.0.0.5/24"
	_, err = New(cfg, &fakeFetcher{}, &fakeApplier{})
	require.Error(t, err)
}

func TestNewStaticSetEmptyLiteral(t *testing.T) {
	cfg := testConfig()
	cfg.AntiLockoutIPv4 = "# nothing here"

	_, err := New(cfg, &fakeFetcher{}, &fakeApplier{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrNoAddressesParsed))
}

func TestNewCustomBlocklistFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.txt")
	require.NoError(t, os.WriteFile(path, []byte("# custom drops\n203.0.113.0/24\n198.51.100.7\n"), 0o644))

	cfg := testConfig()
	cfg.CustomBlocklistIPv4Path = path

	applier := &fakeApplier{}
	svc, err := New(cfg, &fakeFetcher{}, applier)
	require.NoError(t, err)
	require.NoError(t, svc.Cycle(context.Background()))

	sets := elementSets(applier.docs[0])
	assert.Equal(t, 2, sets["custom_blocklist_set_ipv4"])
}

func TestNewCustomBlocklistFileMissing(t *testing.T) {
	cfg := testConfig()
	cfg.CustomBlocklistIPv4Path = filepath.Join(t.TempDir(), "absent.txt")

	_, err := New(cfg, &fakeFetcher{}, &fakeApplier{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrFile))
}

func TestNewDelimiter(t *testing.T) {
	cfg := testConfig()
	cfg.Delimiter = ","
	cfg.AntiLockoutIPv4 = "192.0.2.1/32, 192.0.2.2/32"

	applier := &fakeApplier{}
	svc, err := New(cfg, &fakeFetcher{}, applier)
	require.NoError(t, err)
	require.NoError(t, svc.Cycle(context.Background()))

	sets := elementSets(applier.docs[0])
	assert.Equal(t, 2, sets["anti_lockout_set_ipv4"])
}

func TestPreview(t *testing.T) {
	cfg := testConfig()
	cfg.IPv4URL = "https://example.com/v4"
	cfg.AntiLockoutIPv4 = "192.0.2.1/32"

	fetcher := &fakeFetcher{}
	svc, err := New(cfg, fetcher, nil)
	require.NoError(t, err)

	doc := svc.Preview()
	assert.Empty(t, fetcher.calls)
	sets := elementSets(doc)
	assert.Equal(t, 1, sets["anti_lockout_set_ipv4"])
	// Fetched blocklists never appear in a preview.
	assert.NotContains(t, sets, "blocklist_set_ipv4")
}

func TestRunRetriesThenExhausts(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 3

	applyErr := fmt.Errorf("%w: table busy", errdefs.ErrNftables)
	applier := &fakeApplier{errs: []error{applyErr, applyErr, applyErr}}

	svc, err := New(cfg, &fakeFetcher{}, applier)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Now())
	svc.SetClock(fc)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.True(t, errors.Is(err, errdefs.ErrNftables))
	assert.Contains(t, err.Error(), "after 3 attempts")

	// Two retry waits; the third failure exhausts without another wait.
	require.Len(t, fc.Sleeps(), 2)
	for _, d := range fc.Sleeps() {
		assert.Greater(t, d, time.Duration(0))
		assert.Less(t, d, 2*cfg.RetryInterval)
	}
}

func TestRunSuccessResetsFailures(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 2

	applyErr := fmt.Errorf("%w: flap", errdefs.ErrNftables)
	// fail, succeed, fail, fail: the success must reset the counter, so
	// exhaustion happens only after the two consecutive trailing failures.
	applier := &fakeApplier{errs: []error{applyErr, nil, applyErr, applyErr}}

	svc, err := New(cfg, &fakeFetcher{}, applier)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Now())
	svc.SetClock(fc)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.Contains(t, err.Error(), "after 2 attempts")
	require.Len(t, applier.docs, 1)

	// retry wait, interval wait after the success, retry wait.
	sleeps := fc.Sleeps()
	require.Len(t, sleeps, 3)
	assert.Equal(t, cfg.Interval, sleeps[1])
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()

	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &fakeFetcher{}
	applier := &fakeApplier{}

	svc, err := New(cfg, fetcher, applier)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Now())
	svc.SetClock(fc)

	// Cancel during the first interval sleep.
	cancel()
	require.NoError(t, svc.Run(ctx))
}

func TestRetryPolicyDelayBounds(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseInterval: 10 * time.Second}
	for i := 0; i < 100; i++ {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, 7500*time.Millisecond)
		assert.LessOrEqual(t, d, 12500*time.Millisecond)
	}
}
