// Package config builds the daemon's immutable runtime configuration.
//
// Values are layered: built-in defaults, then an optional HCL file, then
// NFTBLOCKD_* environment variables, then CLI flags (applied by the cmd
// package). The result is one explicit struct constructed at startup and
// passed by reference; nothing in the core reads the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/nftblockd/internal/brand"
	"grimm.is/nftblockd/internal/errdefs"
)

// Config holds everything the daemon needs for its lifetime.
type Config struct {
	// Blocklist endpoints. An empty URL means the family is not fetched.
	IPv4URL string `hcl:"ipv4_url,optional"`
	IPv6URL string `hcl:"ipv6_url,optional"`

	// Interval between successful update cycles.
	Interval time.Duration
	// RetryAttempts bounds consecutive failed cycles before giving up.
	RetryAttempts int `hcl:"retry_attempts,optional"`
	// RetryInterval is the base wait between retries; the orchestrator
	// jitters around it.
	RetryInterval time.Duration
	// FetchTimeout bounds a single blocklist download.
	FetchTimeout time.Duration

	// Anti-lockout CIDR literals, delimiter-separated. Validated strictly.
	AntiLockoutIPv4 string `hcl:"anti_lockout_ipv4,optional"`
	AntiLockoutIPv6 string `hcl:"anti_lockout_ipv6,optional"`

	// Optional custom blocklist files. Validated strictly.
	CustomBlocklistIPv4Path string `hcl:"custom_blocklist_ipv4_path,optional"`
	CustomBlocklistIPv6Path string `hcl:"custom_blocklist_ipv6_path,optional"`

	// nftables object names.
	TableName        string `hcl:"table_name,optional"`
	PreroutingChain  string `hcl:"prerouting_chain,optional"`
	PostroutingChain string `hcl:"postrouting_chain,optional"`
	BlocklistSet     string `hcl:"blocklist_set,optional"`
	AntiLockoutSet   string `hcl:"anti_lockout_set,optional"`
	CustomSet        string `hcl:"custom_set,optional"`

	// Delimiter for anti-lockout literals and custom files; empty means
	// any whitespace.
	Delimiter string `hcl:"delimiter,optional"`

	// HeadersJSON is an optional JSON object of extra fetch headers.
	HeadersJSON string `hcl:"headers,optional"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `hcl:"log_level,optional"`

	// Duration fields come out of HCL as strings and are normalized in
	// finalize.
	IntervalStr      string `hcl:"interval,optional"`
	RetryIntervalStr string `hcl:"retry_interval,optional"`
	FetchTimeoutStr  string `hcl:"fetch_timeout,optional"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Interval:         30 * time.Second,
		RetryAttempts:    3,
		RetryInterval:    10 * time.Second,
		FetchTimeout:     30 * time.Second,
		TableName:        "nftblockd",
		PreroutingChain:  "prerouting",
		PostroutingChain: "postrouting",
		BlocklistSet:     "blocklist_set",
		AntiLockoutSet:   "anti_lockout_set",
		CustomSet:        "custom_blocklist_set",
		LogLevel:         "info",
	}
}

// Load builds the configuration from defaults, the optional HCL file at
// path (empty path or a missing default file is fine), and the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
				return cfg, fmt.Errorf("%w: %s: %v", errdefs.ErrDeserialize, path, err)
			}
		} else if path != brand.DefaultConfigFile {
			// An explicitly requested file must exist.
			return cfg, fmt.Errorf("%w: %v", errdefs.ErrFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.finalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(brand.EnvPrefix + key); ok {
			*dst = v
		}
	}
	str("IPV4_URL", &c.IPv4URL)
	str("IPV6_URL", &c.IPv6URL)
	str("INTERVAL", &c.IntervalStr)
	str("RETRY_INTERVAL", &c.RetryIntervalStr)
	str("FETCH_TIMEOUT", &c.FetchTimeoutStr)
	str("ANTI_LOCKOUT_IPV4", &c.AntiLockoutIPv4)
	str("ANTI_LOCKOUT_IPV6", &c.AntiLockoutIPv6)
	str("CUSTOM_BLOCKLIST_PATH_IPV4", &c.CustomBlocklistIPv4Path)
	str("CUSTOM_BLOCKLIST_PATH_IPV6", &c.CustomBlocklistIPv6Path)
	str("TABLE_NAME", &c.TableName)
	str("PREROUTING_CHAIN_NAME", &c.PreroutingChain)
	str("POSTROUTING_CHAIN_NAME", &c.PostroutingChain)
	str("BLOCKLIST_SET_NAME", &c.BlocklistSet)
	str("ANTI_LOCKOUT_SET_NAME", &c.AntiLockoutSet)
	str("CUSTOM_BLOCKLIST_SET_NAME", &c.CustomSet)
	str("DELIMITER", &c.Delimiter)
	str("HEADERS", &c.HeadersJSON)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := os.LookupEnv(brand.EnvPrefix + "RETRY_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sRETRY_ATTEMPTS: %q", errdefs.ErrParse, brand.EnvPrefix, v)
		}
		c.RetryAttempts = n
	}
	return nil
}

// finalize converts string duration fields into their typed counterparts.
func (c *Config) finalize() error {
	conv := func(name, s string, dst *time.Duration) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %q", errdefs.ErrParse, name, s)
		}
		*dst = d
		return nil
	}
	if err := conv("interval", c.IntervalStr, &c.Interval); err != nil {
		return err
	}
	if err := conv("retry_interval", c.RetryIntervalStr, &c.RetryInterval); err != nil {
		return err
	}
	return conv("fetch_timeout", c.FetchTimeoutStr, &c.FetchTimeout)
}

var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validate checks invariants that would otherwise surface as opaque
// nftables failures mid-cycle.
func (c *Config) Validate() error {
	for _, n := range []struct{ what, value string }{
		{"table name", c.TableName},
		{"prerouting chain name", c.PreroutingChain},
		{"postrouting chain name", c.PostroutingChain},
		{"blocklist set name", c.BlocklistSet},
		{"anti-lockout set name", c.AntiLockoutSet},
		{"custom set name", c.CustomSet},
	} {
		if !validName.MatchString(n.value) {
			return fmt.Errorf("%w: invalid %s %q", errdefs.ErrParse, n.what, n.value)
		}
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", errdefs.ErrParse)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry attempts must be at least 1", errdefs.ErrParse)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("%w: retry interval must be positive", errdefs.ErrParse)
	}
	if _, err := c.Headers(); err != nil {
		return err
	}
	return nil
}

// Headers decodes the optional fetch header JSON object.
func (c *Config) Headers() (map[string]string, error) {
	if c.HeadersJSON == "" {
		return nil, nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(c.HeadersJSON), &headers); err != nil {
		return nil, fmt.Errorf("%w: headers: %v", errdefs.ErrDeserialize, err)
	}
	return headers, nil
}
