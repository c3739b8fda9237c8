package models

import "sort"

// EmailSet is a set of email addresses. Addresses are kept exactly as
// received; no case folding is applied.
type EmailSet map[string]struct{}

// NewEmailSet returns a set holding the non-empty emails given.
func NewEmailSet(emails ...string) EmailSet {
	s := make(EmailSet, len(emails))
	for _, e := range emails {
		s.Add(e)
	}
	return s
}

// Add inserts email; empty strings are ignored.
func (s EmailSet) Add(email string) {
	if email == "" {
		return
	}
	s[email] = struct{}{}
}

// Remove deletes email if present.
func (s EmailSet) Remove(email string) { delete(s, email) }

// Has reports whether email is in the set.
func (s EmailSet) Has(email string) bool {
	_, ok := s[email]
	return ok
}

// Sorted returns the members in lexical order.
func (s EmailSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
