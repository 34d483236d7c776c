// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package normalize canonicalizes free-text artist and title strings so
// that detected plays and audience requests compare on equal footing.
//
// Two strings refer to the same song for matching purposes iff their
// canonical forms are equal. Fuzzy comparison also runs on canonical
// forms, never on raw input.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Canonical converts free text into its canonical comparison form:
// lower-cased, accents folded to ASCII, punctuation stripped except
// hyphens between word characters, whitespace collapsed and trimmed.
//
// Canonical is total (never fails, garbage in yields empty string out)
// and idempotent (Canonical(Canonical(s)) == Canonical(s)).
func Canonical(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)

	if folded, _, err := transform.String(accentStripper, s); err == nil {
		s = folded
	}

	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' && isWordRune(rs, i-1) && isWordRune(rs, i+1):
			// intra-word hyphen, as in "a-ha" or "99-problems"
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// apostrophes vanish so "God's Plan" equals "gods plan"
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Track canonicalizes an artist/title pair in one call.
func Track(artist, title string) (string, string) {
	return Canonical(artist), Canonical(title)
}

func isWordRune(rs []rune, i int) bool {
	if i < 0 || i >= len(rs) {
		return false
	}
	return unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])
}
