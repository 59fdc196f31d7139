// Package testkit holds the small helpers shared by package tests: seam swapping, fixed clocks
// and output assertions
package testkit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var seamMu sync.Mutex

// Swap replaces a package-level seam (clock, pool opener, build stamp) until the test ends
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}

// Serial holds a process-wide lock for the rest of the test.
// Tests that Swap seams read by other parallel tests must call it first
func Serial(t *testing.T) {
	t.Helper()
	seamMu.Lock()
	t.Cleanup(seamMu.Unlock)
}

// Day is midnight UTC of a calendar date, the shape dt_till_max takes once scanned
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Fixed returns a clock frozen at t
func Fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// MustPanic fails unless fn panics
func MustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	fn()
}

// MustNotPanic fails if fn panics, reporting the recovered value
func MustNotPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	fn()
}

// MustContain fails when needle is missing from haystack. The full haystack is dumped to a temp
// file since log output is usually too long for the failure message
func MustContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		return
	}
	dump := filepath.Join(t.TempDir(), "haystack.txt")
	_ = os.WriteFile(dump, []byte(haystack), 0o600)
	t.Fatalf("expected output to contain %q\n\nfull output written to %s", needle, dump)
}
