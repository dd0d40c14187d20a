// Package keyword implements the spoiler keyword matcher.
//
// A Set is an ordered, immutable list of case-insensitive substrings loaded
// once at startup. Matching is plain substring containment: the keyword
// "war" matches "software". That false-positive risk is accepted — keyword
// quality is the list author's problem, not the matcher's.
package keyword

import (
	"fmt"
	"strings"
)

// Set is an immutable keyword list. The zero value matches nothing.
type Set struct {
	words  []string // original casing, for display
	folded []string // lowercased, for matching
}

// NewSet builds a Set from the given keywords. Keywords that are empty or
// whitespace-only are rejected — an empty keyword would match every title.
func NewSet(words []string) (*Set, error) {
	s := &Set{
		words:  make([]string, 0, len(words)),
		folded: make([]string, 0, len(words)),
	}
	for i, w := range words {
		if strings.TrimSpace(w) == "" {
			return nil, fmt.Errorf("keyword: empty keyword at index %d", i)
		}
		s.words = append(s.words, w)
		s.folded = append(s.folded, strings.ToLower(w))
	}
	return s, nil
}

// Matches reports whether any keyword is a case-insensitive substring of
// text. Empty text never matches. Total over all inputs — no error path.
func (s *Set) Matches(text string) bool {
	if s == nil || text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, w := range s.folded {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// Words returns the keywords in their original order and casing. The
// returned slice is a copy.
func (s *Set) Words() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.words))
	copy(out, s.words)
	return out
}

// Len returns the number of keywords.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.words)
}
