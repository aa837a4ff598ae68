package dto

import (
	"time"

	"github.com/jsamuelsen/quotebook/internal/app"
	"github.com/jsamuelsen/quotebook/internal/domain"
)

// CreateQuoteRequest is the body of POST /api/v1/quotes.
// The store trims and re-checks text and author; the tags here reject obvious
// garbage before it gets that far.
type CreateQuoteRequest struct {
	Text   string `json:"text"   validate:"notblank,max=2000"`
	Author string `json:"author" validate:"notblank,max=200"`
	Source string `json:"source" validate:"max=300"`
}

// QuoteFilterQuery holds the filter state sent as query parameters.
type QuoteFilterQuery struct {
	Q      string `form:"q"      validate:"max=200"`
	Author string `form:"author" validate:"max=200"`
}

// Filter converts the query into a domain filter.
func (q QuoteFilterQuery) Filter() domain.Filter {
	return domain.Filter{SearchText: q.Q, SelectedAuthor: q.Author}
}

// QuoteResponse is the JSON form of a quote.
type QuoteResponse struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewQuoteResponse converts a domain quote.
func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{
		ID:        q.ID,
		Text:      q.Text,
		Author:    q.Author,
		Source:    q.Source,
		CreatedAt: q.CreatedAt,
	}
}

// QuoteListResponse is one rendered screen of the quote list.
type QuoteListResponse struct {
	Quotes  []QuoteResponse `json:"quotes"`
	Authors []string        `json:"authors"`
	Stats   string          `json:"stats"`
	Visible int             `json:"visible"`
	Total   int             `json:"total"`
	Empty   bool            `json:"empty"`
}

// NewQuoteListResponse converts a store view.
func NewQuoteListResponse(v app.View) QuoteListResponse {
	quotes := make([]QuoteResponse, len(v.Quotes))
	for i, q := range v.Quotes {
		quotes[i] = NewQuoteResponse(q)
	}

	authors := v.Authors
	if authors == nil {
		authors = []string{}
	}

	return QuoteListResponse{
		Quotes:  quotes,
		Authors: authors,
		Stats:   v.Stats,
		Visible: len(quotes),
		Total:   v.Total,
		Empty:   v.Empty,
	}
}

// AuthorsResponse lists the distinct authors.
type AuthorsResponse struct {
	Authors []string `json:"authors"`
}

// StatsResponse is the statistics line for a filter.
type StatsResponse struct {
	Stats   string `json:"stats"`
	Visible int    `json:"visible"`
	Total   int    `json:"total"`
}
