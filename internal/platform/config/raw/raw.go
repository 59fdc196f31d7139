// Package raw reads environment variables during bootstrap.
// It must not import the logger package: the logger reads its own options through here.
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Conf is a prefixed view over the environment (e.g. "LOG_")
type Conf struct{ prefix string }

// New returns a root Conf
func New() Conf { return Conf{} }

// Prefix returns a child Conf with p appended to the current prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) lookup(key string) string {
	return strings.TrimSpace(os.Getenv(c.prefix + key))
}

// Get returns the trimmed value or def when unset or blank
func (c Conf) Get(key, def string) string {
	if v := c.lookup(key); v != "" {
		return v
	}
	return def
}

// GetBool accepts 1/true/yes/on (any case); anything else set is false
func (c Conf) GetBool(key string, def bool) bool {
	v := strings.ToLower(c.lookup(key))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// GetInt parses a non-negative integer; invalid input yields def
func (c Conf) GetInt(key string, def int) int {
	v := c.lookup(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
