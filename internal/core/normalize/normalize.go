// Package normalize folds warehouse names into a comparison form.
// Stored names are never rewritten: the folded form only detects blank names and names that
// differ from another one by spacing or invisible characters
//
// Pipeline order
// 1 drop control characters and invalid UTF-8 (Sanitize)
// 2 Unicode NFC composition
// 3 remove format characters (ZWSP ZWJ BOM and friends)
// 4 collapse whitespace runs to a single space and trim
//
// Case and punctuation are left alone: "Коледино" and "КОЛЕДИНО" are different warehouses as
// far as the source is concerned
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// pool of fresh transformer chains, a chain carries state and must not be shared
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)),
		)
	},
}

// WarehouseName returns the comparison form of a warehouse name as received from the source
func WarehouseName(s string) string {
	if s == "" {
		return ""
	}
	s = Sanitize(s)

	tr := chainPool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		// transform only fails on malformed input which Sanitize already dropped
		ns = s
	}

	return collapseSpaces(ns)
}

// collapseSpaces converts every whitespace run (newlines included) to one ASCII space and trims the edges
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}
