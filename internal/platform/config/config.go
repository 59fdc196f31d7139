// Package config reads service configuration from environment variables
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"tariffsync/internal/platform/logger"
)

// Conf is a namespaced view over environment variables (e.g. "TARIFFS_", "SERVICE_PGSQL_").
// Must* accessors panic on missing or invalid values and are meant for process bootstrap only.
type Conf struct{ prefix string }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) raw(k string) string { return strings.TrimSpace(os.Getenv(c.key(k))) }

// Has reports whether key is set to a non-blank value
func (c Conf) Has(key string) bool { return c.raw(key) != "" }

// MustString panics if the given key is missing or blank
func (c Conf) MustString(key string) string {
	v := c.raw(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required env")
	}
	return v
}

// MayURL returns the parsed URL or def; a set but invalid value panics
func (c Conf) MayURL(key, def string) *url.URL {
	return c.parseURL(key, c.MayString(key, def))
}

func (c Conf) parseURL(key, s string) *url.URL {
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid absolute URL")
	}
	return u
}

// MaySecret returns a multi-line secret (PEM keys) with literal "\n" sequences expanded,
// so keys pasted into a single-line env file keep working
func (c Conf) MaySecret(key string) string {
	v := c.raw(key)
	if v == "" {
		return ""
	}
	v = strings.Trim(v, `"`)
	return strings.ReplaceAll(v, `\n`, "\n")
}

// MayString returns the value or def if missing or blank
func (c Conf) MayString(key, def string) string {
	if v := c.raw(key); v != "" {
		return v
	}
	return def
}

// MayInt returns the value or def; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	s := c.raw(key)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

// MayBool returns the value or def; logs and returns def if invalid
func (c Conf) MayBool(key string, def bool) bool {
	s := c.raw(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
	return def
}

// MayDuration returns the value or def; logs and returns def if invalid
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.raw(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}

// MayCSV splits a comma separated value, dropping blanks; def when nothing remains
func (c Conf) MayCSV(key string, def []string) []string {
	s := c.raw(key)
	if s == "" {
		return def
	}
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayLocation loads a tz database location; logs and returns time.Local if unknown
func (c Conf) MayLocation(key, def string) *time.Location {
	name := c.MayString(key, def)
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", name).Msg("unknown time zone; using local")
		return time.Local
	}
	return loc
}
