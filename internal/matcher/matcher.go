// Package matcher implements keyword matching over message text.
//
// Matching is case-insensitive and aligned to word boundaries: a keyword is
// found only where its first and last characters are not adjacent to a
// letter, digit, or underscore in the text, so "cat" never matches inside
// "category". Multi-word keywords match as contiguous phrases with internal
// whitespace collapsed.
package matcher

import (
	"fmt"
	"regexp"
	"strings"
)

// nonWord matches a rune that terminates a word (anything but a Unicode
// letter, digit, or underscore).
const nonWord = `[^\p{L}\p{N}_]`

// Matcher holds a pre-compiled keyword set. It is immutable after
// construction and safe for concurrent use.
type Matcher struct {
	keywords []string
	patterns []*regexp.Regexp
}

// New compiles the given keywords. Keywords are lowercased, have internal
// whitespace collapsed, and keep their first-seen order; empty and duplicate
// entries are dropped.
func New(keywords []string) (*Matcher, error) {
	m := &Matcher{}
	seen := make(map[string]bool, len(keywords))

	for _, kw := range keywords {
		kw = strings.ToLower(strings.Join(strings.Fields(kw), " "))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true

		pattern, err := compile(kw)
		if err != nil {
			return nil, fmt.Errorf("compile keyword %q: %w", kw, err)
		}
		m.keywords = append(m.keywords, kw)
		m.patterns = append(m.patterns, pattern)
	}

	return m, nil
}

// compile builds the boundary-guarded pattern for one keyword. Each
// whitespace-separated token is escaped and tokens are joined with \s+ so a
// phrase tolerates any internal whitespace in the text.
func compile(keyword string) (*regexp.Regexp, error) {
	tokens := strings.Fields(keyword)
	escaped := make([]string, len(tokens))
	for i, tok := range tokens {
		escaped[i] = regexp.QuoteMeta(tok)
	}
	body := strings.Join(escaped, `\s+`)

	return regexp.Compile(`(?i)(?:\A|` + nonWord + `)` + body + `(?:\z|` + nonWord + `)`)
}

// Keywords returns the normalized keyword set in match-reporting order.
func (m *Matcher) Keywords() []string {
	out := make([]string, len(m.keywords))
	copy(out, m.keywords)
	return out
}

// Match returns the keywords found in text, each at most once, in keyword
// order. Empty text or an empty keyword set matches nothing.
func (m *Matcher) Match(text string) []string {
	if text == "" {
		return nil
	}

	var matched []string
	for i, pattern := range m.patterns {
		if pattern.MatchString(text) {
			matched = append(matched, m.keywords[i])
		}
	}
	return matched
}

// HasMatch reports whether any keyword is found in text.
func (m *Matcher) HasMatch(text string) bool {
	if text == "" {
		return false
	}
	for _, pattern := range m.patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Summary renders a short human-readable description of a match result.
// Returns "" for an empty result.
func Summary(matched []string) string {
	switch {
	case len(matched) == 0:
		return ""
	case len(matched) == 1:
		return fmt.Sprintf("Keyword matched: '%s'", matched[0])
	default:
		shown := matched
		extra := ""
		if len(matched) > 3 {
			shown = matched[:3]
			extra = fmt.Sprintf(" (+%d more)", len(matched)-3)
		}
		quoted := make([]string, len(shown))
		for i, kw := range shown {
			quoted[i] = "'" + kw + "'"
		}
		return fmt.Sprintf("Keywords matched: %s%s", strings.Join(quoted, ", "), extra)
	}
}
