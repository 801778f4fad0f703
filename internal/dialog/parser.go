// Package dialog implements the conversational front-end for document
// requests: command recognition, the inline fast path that collapses a whole
// dialog into one message, and the step-by-step state machine used when the
// fast path does not match.
package dialog

import (
	"strings"

	"github.com/Carelightt/pdftelegram/internal/domain"
	"github.com/Carelightt/pdftelegram/internal/textutil"
)

// CommandToken extracts the normalized leading command token of a message:
// zero-width characters and markup are scrubbed, the token is lowercased,
// and a "@botname" suffix is dropped. Returns "" when the message does not
// start with a slash command.
func CommandToken(text string) string {
	clean := textutil.CleanCommand(text)
	fields := strings.Fields(clean)
	if len(fields) == 0 {
		return ""
	}
	tok := strings.ToLower(fields[0])
	if !strings.HasPrefix(tok, "/") {
		return ""
	}
	if at := strings.IndexByte(tok, '@'); at > 0 {
		tok = tok[:at]
	}
	return tok
}

// IsCommand reports whether the message is a slash command of any kind.
// The state machine uses this to refuse commands as field input.
func IsCommand(text string) bool { return CommandToken(text) != "" }

// MatchesCommand reports whether the message's leading token is the entry
// command of dt.
func MatchesCommand(text string, dt domain.DocumentType) bool {
	return CommandToken(text) == "/"+dt.Command
}

// ParseInline attempts the inline fast path for dt against a full message.
// Two shapes are accepted:
//
//   - Multi-line: the command line followed by one line per field, in order;
//     the spacious field absorbs the surplus lines when it is the last one
//     before any trailing fields.
//   - Single-line: the command token followed by whitespace-separated values;
//     fields after the spacious one are filled from the end of the token list
//     and the spacious field joins whatever remains in the middle.
//
// On success it returns the trimmed raw values keyed by field name. Anything
// ambiguous or short returns ok=false so the caller can fall back to the
// step-by-step dialog; this function never fails harder than that.
func ParseInline(text string, dt domain.DocumentType) (map[string]string, bool) {
	lines := textutil.Lines(text)
	if len(lines) == 0 || !MatchesCommand(lines[0], dt) {
		return nil, false
	}

	// Single line first: "/pdf 123 ALI VELI".
	if parts := strings.Fields(lines[0]); len(parts)-1 >= len(dt.Fields) {
		if vals, ok := assignTokens(parts[1:], dt); ok {
			return vals, true
		}
	}

	// Then multi-line: "/pdf\n123\nALI\nVELI".
	if rest := lines[1:]; len(rest) >= len(dt.Fields) {
		return assignTokens(rest, dt)
	}

	return nil, false
}

// assignTokens maps tokens onto dt's fields positionally. Fields before the
// spacious field consume from the front, fields after it consume from the
// back, and the spacious field joins the remainder. Without a spacious field
// the mapping is strictly one token per field (extras rejected).
func assignTokens(tokens []string, dt domain.DocumentType) (map[string]string, bool) {
	n := len(dt.Fields)
	if len(tokens) < n {
		return nil, false
	}

	sp := dt.SpaciousIndex()
	if sp < 0 {
		if len(tokens) != n {
			return nil, false
		}
		out := make(map[string]string, n)
		for i, f := range dt.Fields {
			out[f.Name] = strings.TrimSpace(tokens[i])
		}
		return out, true
	}

	trail := n - sp - 1
	out := make(map[string]string, n)
	for i := 0; i < sp; i++ {
		out[dt.Fields[i].Name] = strings.TrimSpace(tokens[i])
	}
	for i := 0; i < trail; i++ {
		f := dt.Fields[n-1-i]
		out[f.Name] = strings.TrimSpace(tokens[len(tokens)-1-i])
	}
	out[dt.Fields[sp].Name] = strings.TrimSpace(strings.Join(tokens[sp:len(tokens)-trail], " "))
	return out, true
}
