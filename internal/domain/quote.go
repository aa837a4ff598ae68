// Package domain contains core business entities and rules.
package domain

import (
	"strings"
	"time"
)

// Quote represents a stored quotation with its author and optional source.
// This is a domain entity - it has no knowledge of external systems.
// A Quote is never mutated after creation.
type Quote struct {
	// ID is unique within a collection and increases with creation time.
	ID int64

	// Text is the quoted text. Never empty for a stored quote.
	Text string

	// Author is who said or wrote the quote. Never empty for a stored quote.
	Author string

	// Source is where the quote comes from (book, speech, ...). May be empty.
	Source string

	// CreatedAt is when the quote was added.
	CreatedAt time.Time
}

// HasSource reports whether the quote carries a source.
func (q Quote) HasSource() bool {
	return q.Source != ""
}

// ExportText renders the quote as a plain-text line suitable for the clipboard:
//
//	"<text>" — <author> (<source>)
//
// The parenthetical is omitted when the source is empty.
func (q Quote) ExportText() string {
	var b strings.Builder

	b.WriteString(`"`)
	b.WriteString(q.Text)
	b.WriteString(`" — `)
	b.WriteString(q.Author)

	if q.HasSource() {
		b.WriteString(" (")
		b.WriteString(q.Source)
		b.WriteString(")")
	}

	return b.String()
}

// Filter holds the transient search criteria used to derive a visible subset
// of the collection. The zero value matches every quote.
type Filter struct {
	// SearchText is matched case-insensitively against text, author and source.
	SearchText string

	// SelectedAuthor restricts results to one author (exact match). Empty means all.
	SelectedAuthor string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.SearchText == "" && f.SelectedAuthor == ""
}

// Matches reports whether q satisfies both the search and the author predicate.
func (f Filter) Matches(q Quote) bool {
	return f.matchesAuthor(q) && f.matchesSearch(q)
}

func (f Filter) matchesAuthor(q Quote) bool {
	return f.SelectedAuthor == "" || q.Author == f.SelectedAuthor
}

func (f Filter) matchesSearch(q Quote) bool {
	if f.SearchText == "" {
		return true
	}

	needle := strings.ToLower(f.SearchText)

	return containsFold(q.Text, needle) ||
		containsFold(q.Author, needle) ||
		containsFold(q.Source, needle)
}

// containsFold reports whether lowerNeedle occurs in s ignoring case.
// An empty s never matches.
func containsFold(s, lowerNeedle string) bool {
	if s == "" {
		return false
	}

	return strings.Contains(strings.ToLower(s), lowerNeedle)
}
