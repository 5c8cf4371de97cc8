package search

import (
	"regexp"
	"strings"
)

const (
	minQueryLen = 2
	maxQueryLen = 200
	maxHintLen  = 500
)

var (
	queryCharset = regexp.MustCompile(`^[a-zA-Z0-9\s\-]+$`)
	hintStrip    = regexp.MustCompile(`[<>'";` + "`" + `]`)

	bracketSpan  = regexp.MustCompile(`\[[^\]]*\]`)
	parenSpan    = regexp.MustCompile(`\([^)]*\)`)
	punctuation  = regexp.MustCompile(`[,~\[\](){}<>]`)
	inchToken    = regexp.MustCompile(`(?i)\d+\.?\d*-inch`)
	storageCombo = regexp.MustCompile(`(?i)(\d+GB)/\d+GB`)
	fiveG        = regexp.MustCompile(`(?i)\b5G\b`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// stopWords are condition adjectives, colors, and connectives that add noise
// to an aggregator lookup without narrowing the product identity.
// Revisable policy table, not a correctness guarantee.
var stopWords = map[string]bool{
	"refurbished": true, "excellent": true, "good": true, "fair": true,
	"renewed": true, "certified": true, "unlocked": true, "sim-free": true,
	"with": true, "chip": true, "the": true, "and": true, "for": true,
	"black": true, "white": true, "silver": true, "gold": true, "grey": true,
	"gray": true, "blue": true, "red": true, "green": true, "pink": true,
	"purple": true, "midnight": true, "starlight": true, "titanium": true,
	"graphite": true, "space": true, "teal": true, "ultramarine": true,
	"violet": true, "yellow": true, "orange": true, "cream": true,
	"lavender": true, "coral": true, "mint": true,
}

// ValidateQuery enforces the input contract for every search entry point:
// 2–200 characters, letters/digits/spaces/hyphens only. Callers must reject
// the query before performing any I/O.
func ValidateQuery(query string) error {
	if len(query) < minQueryLen || len(query) > maxQueryLen {
		return ErrInvalidQuery
	}
	if !queryCharset.MatchString(query) {
		return ErrInvalidQuery
	}
	return nil
}

// SanitizeHint strips characters with injection potential from a free-form
// model hint and caps its length. Empty input stays empty.
func SanitizeHint(hint string) string {
	hint = hintStrip.ReplaceAllString(hint, "")
	if len(hint) > maxHintLen {
		hint = hint[:maxHintLen]
	}
	return strings.TrimSpace(hint)
}

// NormalizeQuery compacts a verbose catalog name into a short phrase suitable
// for an aggregator product lookup, e.g.
//
//	"Apple MacBook Air 13-inch with M4 Chip, 256GB/16GB (Midnight)"
//	  → "Apple MacBook Air M4 256GB"
func NormalizeQuery(name string) string {
	q := bracketSpan.ReplaceAllString(name, "")
	q = parenSpan.ReplaceAllString(q, "")
	q = punctuation.ReplaceAllString(q, " ")
	q = inchToken.ReplaceAllString(q, "")
	// "256GB/16GB" → keep the storage half
	q = storageCombo.ReplaceAllString(q, "$1")

	words := strings.Fields(q)
	kept := words[:0]
	for _, w := range words {
		if !stopWords[strings.ToLower(strings.Trim(w, "~,-./:"))] {
			kept = append(kept, w)
		}
	}
	q = strings.Join(kept, " ")

	q = fiveG.ReplaceAllString(q, "")
	q = strings.TrimSpace(multiSpace.ReplaceAllString(q, " "))

	words = strings.Fields(q)
	if len(words) > 6 {
		q = strings.Join(words[:6], " ")
	}
	return q
}
