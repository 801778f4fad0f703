// Package textutil provides locale-aware text normalization for user-entered
// fields and command scrubbing for inbound messages.
package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var turkishUpper = cases.Upper(language.Turkish)

// UpperTR trims the value and uppercases it with Turkish casing rules, so the
// dotted/dotless pair maps correctly: "i" → "İ" and "ı" → "I". A generic
// ToUpper would produce "I" for both. Pure function; idempotent on ASCII.
func UpperTR(s string) string {
	return turkishUpper.String(strings.TrimSpace(s))
}

// zeroWidth lists invisible code points that chat clients and copy-paste
// pipelines smuggle into command text.
var zeroWidth = map[rune]struct{}{
	'\u200b': {}, // zero width space
	'\u200c': {}, // zero width non-joiner
	'\u200d': {}, // zero width joiner
	'\u2060': {}, // word joiner
	'\ufeff': {}, // BOM
}

// markup holds the markdown-style wrapper characters stripped before command
// matching ("*`/pdf`*" must still match "/pdf").
var markup = map[rune]struct{}{
	'*': {},
	'_': {},
	'`': {},
	'~': {},
}

// CleanCommand normalizes a raw message line ahead of command matching:
// zero-width characters are dropped everywhere, simple markup wrappers are
// stripped, and surrounding whitespace is trimmed. The matching logic that
// runs afterwards stays a plain prefix/token check.
func CleanCommand(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if _, zw := zeroWidth[r]; zw {
			continue
		}
		if _, mk := markup[r]; mk {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Lines splits text into trimmed, non-empty lines.
func Lines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, ln := range raw {
		if t := strings.TrimSpace(ln); t != "" {
			out = append(out, t)
		}
	}
	return out
}
